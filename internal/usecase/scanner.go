package usecase

import (
	"context"
	"sync"
	"time"

	"FinSignal/pkg/logger"
)

// Runner evaluates one symbol.
type Runner interface {
	Run(ctx context.Context, symbol string) (*Evaluation, error)
}

// ScanResult summarises one pass over all symbols.
type ScanResult struct {
	Scanned  int
	Emitted  int
	Failed   int
	Duration time.Duration
}

// Scanner periodically runs every symbol through the pipeline with a bounded
// worker pool. Each pass shares one deadline; symbols not reached in time are skipped.
type Scanner struct {
	runner   Runner
	symbols  []string
	interval time.Duration
	timeout  time.Duration
	workers  int
	log      *logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func NewScanner(runner Runner, symbols []string, interval, timeout time.Duration, workers int, log *logger.Logger) *Scanner {
	if workers < 1 {
		workers = 1
	}
	return &Scanner{
		runner:   runner,
		symbols:  symbols,
		interval: interval,
		timeout:  timeout,
		workers:  workers,
		log:      log,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start scans immediately and then on every interval until ctx ends or Stop is called.
func (s *Scanner) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			res := s.ScanOnce(ctx)
			s.log.Info("scan complete",
				logger.Int("scanned", res.Scanned),
				logger.Int("emitted", res.Emitted),
				logger.Int("failed", res.Failed),
				logger.Duration("duration_ms", res.Duration))
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop waits for the running pass to finish or ctx to end.
func (s *Scanner) Stop(ctx context.Context) {
	s.stopOnce.Do(func() { close(s.stopCh) })
	select {
	case <-s.done:
	case <-ctx.Done():
	}
}

// ScanOnce runs every symbol once under a shared deadline.
func (s *Scanner) ScanOnce(ctx context.Context) ScanResult {
	start := time.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	jobs := make(chan string)
	var (
		mu  sync.Mutex
		res ScanResult
		wg  sync.WaitGroup
	)
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				ev, err := s.runner.Run(ctx, sym)
				mu.Lock()
				res.Scanned++
				if err != nil {
					res.Failed++
				} else if ev != nil && ev.Emitted {
					res.Emitted++
				}
				mu.Unlock()
				if err != nil {
					s.log.Warn("scan symbol failed", logger.String("symbol", sym), logger.Error(err))
				}
			}
		}()
	}

	fed := 0
feed:
	for _, sym := range s.symbols {
		select {
		case jobs <- sym:
			fed++
		case <-ctx.Done():
			s.log.Warn("scan deadline reached", logger.Int("skipped", len(s.symbols)-fed))
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	res.Duration = time.Since(start)
	return res
}

