package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	"FinSignal/pkg/logger"
)

// Sink delivers an accepted signal to its downstream consumers.
type Sink interface {
	Deliver(ctx context.Context, s *models.Signal) error
}

type lastEmit struct {
	dir models.Direction
	at  time.Time
}

// SignalEmitter sits between the generator and the sinks. It validates signals,
// drops re-scans of an already emitted bar, throttles repeats of the same
// direction per symbol, and buffers deliveries while downstream is failing.
type SignalEmitter struct {
	sink     Sink
	metrics  domrepo.Metrics
	log      *logger.Logger
	cooldown time.Duration
	bufSize  int
	now      func() time.Time

	mu      sync.Mutex
	seen    map[string]time.Time // signal id -> expiry
	last    map[string]lastEmit
	bufCh   chan *models.Signal
	stopCh  chan struct{}
	started bool
}

type EmitterOption func(*SignalEmitter)

// WithCooldown sets the minimum gap between two same-direction signals of one symbol.
func WithCooldown(d time.Duration) EmitterOption {
	return func(e *SignalEmitter) { e.cooldown = d }
}

func WithBufferSize(n int) EmitterOption {
	return func(e *SignalEmitter) {
		if n > 0 {
			e.bufSize = n
		}
	}
}

func WithEmitterClock(now func() time.Time) EmitterOption {
	return func(e *SignalEmitter) { e.now = now }
}

func NewSignalEmitter(sink Sink, metrics domrepo.Metrics, log *logger.Logger, opts ...EmitterOption) *SignalEmitter {
	e := &SignalEmitter{
		sink:    sink,
		metrics: metrics,
		log:     log,
		bufSize: 256,
		now:     time.Now,
		seen:    make(map[string]time.Time),
		last:    make(map[string]lastEmit),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.bufCh = make(chan *models.Signal, e.bufSize)
	return e
}

// Emit delivers s unless it is a duplicate or throttled. The bool reports whether s went out
// or was queued for retry.
func (e *SignalEmitter) Emit(ctx context.Context, s *models.Signal) (bool, error) {
	if err := validateSignal(s); err != nil {
		e.metrics.RecordError("emitter_validate")
		return false, err
	}
	undo, ok := e.admit(s)
	if !ok {
		return false, nil
	}
	if err := e.sink.Deliver(ctx, s); err != nil {
		e.metrics.RecordError("emitter_deliver")
		select {
		case e.bufCh <- s:
			return true, fmt.Errorf("signal %s queued for retry: %w", s.ID, err)
		default:
			undo()
			e.metrics.RecordError("emitter_buffer_full")
			return false, fmt.Errorf("signal %s dropped: %w", s.ID, err)
		}
	}
	return true, nil
}

// admit applies the duplicate and cooldown rules and records s as emitted.
// undo reverts the record for a signal that was neither delivered nor queued.
func (e *SignalEmitter) admit(s *models.Signal) (undo func(), ok bool) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, exp := range e.seen {
		if now.After(exp) {
			delete(e.seen, id)
		}
	}
	if _, dup := e.seen[s.ID]; dup {
		return nil, false
	}
	prev, hadPrev := e.last[s.Symbol]
	if hadPrev && e.cooldown > 0 &&
		prev.dir == s.Direction && now.Sub(prev.at) < e.cooldown {
		e.metrics.RecordError("emitter_throttle")
		return nil, false
	}
	e.seen[s.ID] = s.ExpiresAt
	e.last[s.Symbol] = lastEmit{dir: s.Direction, at: now}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.seen, s.ID)
		if hadPrev {
			e.last[s.Symbol] = prev
		} else {
			delete(e.last, s.Symbol)
		}
	}, true
}

// Start launches the retry loop for buffered deliveries.
func (e *SignalEmitter) Start(ctx context.Context) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	stop := make(chan struct{})
	e.stopCh = stop
	e.mu.Unlock()

	go func() {
		backoff := 100 * time.Millisecond
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case s := <-e.bufCh:
				if e.now().After(s.ExpiresAt) {
					e.metrics.RecordError("emitter_expired")
					continue
				}
				if err := e.sink.Deliver(ctx, s); err != nil {
					if backoff < 5*time.Second {
						backoff *= 2
					}
					e.log.Warn("signal redelivery failed",
						logger.String("signal_id", s.ID),
						logger.Duration("backoff_ms", backoff),
						logger.Error(err))
					select {
					case <-time.After(backoff):
					case <-stop:
						return
					}
					select {
					case e.bufCh <- s:
					default:
						e.metrics.RecordError("emitter_buffer_drop")
					}
					continue
				}
				backoff = 100 * time.Millisecond
			}
		}
	}()
}

func (e *SignalEmitter) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return
	}
	e.started = false
	close(e.stopCh)
}

// Pending is the number of deliveries waiting for retry.
func (e *SignalEmitter) Pending() int {
	return len(e.bufCh)
}

func validateSignal(s *models.Signal) error {
	switch {
	case s == nil:
		return fmt.Errorf("signal nil")
	case s.ID == "" || s.Symbol == "":
		return fmt.Errorf("signal id and symbol required")
	case s.Direction != models.DirectionLong && s.Direction != models.DirectionShort:
		return fmt.Errorf("signal %s: invalid direction %q", s.ID, s.Direction)
	case s.Confidence < 0 || s.Confidence > 1:
		return fmt.Errorf("signal %s: confidence %.3f out of range", s.ID, s.Confidence)
	case !s.ExpiresAt.After(s.CreatedAt):
		return fmt.Errorf("signal %s: expires before creation", s.ID)
	}
	return nil
}
