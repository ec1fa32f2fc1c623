package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"FinSignal/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying, e.g. an undecodable payload.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

var (
	consumerHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsignal_kafka_consumer_messages_total",
			Help: "Messages handled by the consumer",
		},
		[]string{"topic", "result"},
	)
	consumerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finsignal_kafka_consumer_handle_seconds",
			Help:    "Handling time per message",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer fans messages from one reader per topic into a worker pool.
// Offsets are committed after a message is handled or dead-lettered.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *logger.Logger
	handlers map[string]MessageHandler
	readers  map[string]reader
	msgs     chan kafka.Message
	dlq      writer

	newReader func(topic string) reader

	cancel   context.CancelFunc
	fetchWG  sync.WaitGroup
	workWG   sync.WaitGroup
	stopOnce sync.Once
}

func NewConsumer(log *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:      cfg,
		log:      log,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]reader),
		msgs:     make(chan kafka.Message, cfg.BufferSize),
	}
	c.newReader = func(topic string) reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		})
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

// RegisterHandler must be called before Start. A second handler for the same topic is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, ok := c.handlers[h.Topic()]; ok {
		c.log.Warn("kafka handler already registered", logger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for topic := range c.handlers {
		c.readers[topic] = c.newReader(topic)
	}
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workWG.Add(1)
		go c.worker(runCtx)
	}
	for topic, r := range c.readers {
		c.fetchWG.Add(1)
		go c.fetch(runCtx, topic, r)
	}
	c.log.Info("kafka consumer started",
		logger.Int("workers", c.cfg.WorkerCount),
		logger.Int("topics", len(c.readers)),
		logger.String("group", c.cfg.GroupID))
	return nil
}

// Stop stops fetching, drains queued messages and closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		done := make(chan struct{})
		go func() {
			c.fetchWG.Wait()
			close(c.msgs)
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}
		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.log.Warn("close kafka reader", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("close dlq writer", logger.Error(err))
			}
		}
	})
	return stopErr
}

func (c *Consumer) fetch(ctx context.Context, topic string, r reader) {
	defer c.fetchWG.Done()
	failures := 0
	for {
		m, err := r.FetchMessage(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			c.log.Warn("kafka fetch failed", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, failures)):
				continue
			case <-ctx.Done():
				return
			}
		}
		failures = 0
		select {
		case c.msgs <- m:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker(ctx context.Context) {
	defer c.workWG.Done()
	for m := range c.msgs {
		c.process(ctx, m)
	}
}

func (c *Consumer) process(ctx context.Context, m kafka.Message) {
	h, ok := c.handlers[m.Topic]
	if !ok {
		return
	}
	start := time.Now()
	// Handlers run detached from shutdown so queued messages drain.
	hctx := context.WithoutCancel(ctx)
	err := c.handle(ctx, hctx, h, m.Value)
	consumerLatency.WithLabelValues(m.Topic).Observe(time.Since(start).Seconds())

	commit := err == nil
	if err != nil {
		consumerHandled.WithLabelValues(m.Topic, "error").Inc()
		c.log.Error("kafka message failed",
			logger.String("topic", m.Topic),
			logger.Int64("offset", m.Offset),
			logger.Bool("permanent", IsPermanent(err)),
			logger.Error(err))
		if c.dlq != nil {
			commit = c.deadLetter(hctx, m) == nil
		} else {
			// Permanent failures would loop forever if left uncommitted.
			commit = IsPermanent(err)
		}
	} else {
		consumerHandled.WithLabelValues(m.Topic, "ok").Inc()
	}

	if commit {
		if r := c.readers[m.Topic]; r != nil {
			c.commitWithRetry(hctx, r, m, 3)
		}
	}
}

// handle retries transient failures with backoff. stopCtx only aborts the waits.
func (c *Consumer) handle(stopCtx, ctx context.Context, h MessageHandler, data []byte) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = safeHandle(ctx, h, data)
		if err == nil || IsPermanent(err) || attempt > c.cfg.RetryMax {
			return err
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-stopCtx.Done():
			return err
		}
	}
}

func safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("panic in handler for %s: %v", h.Topic(), r))
		}
	}()
	return h.Handle(ctx, data)
}

func (c *Consumer) deadLetter(ctx context.Context, m kafka.Message) error {
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     m.Key,
		Value:   m.Value,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(m.Topic)}},
	})
	if err != nil {
		c.log.Error("dlq write failed", logger.String("topic", c.cfg.DLQTopic), logger.Error(err))
	}
	return err
}

func (c *Consumer) commitWithRetry(ctx context.Context, r reader, m kafka.Message, max int) {
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = r.CommitMessages(cctx, m)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("kafka commit failed", logger.String("topic", m.Topic), logger.Int("attempts", max), logger.Error(err))
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 32 {
		if d := min << uint(attempt-1); d > 0 && d < max {
			exp = d
		}
	}
	// up to 50% jitter
	if half := int64(exp) / 2; half > 0 {
		exp -= time.Duration(rand.Int63n(half))
	}
	return exp
}
