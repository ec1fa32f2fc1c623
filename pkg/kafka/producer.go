package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

var (
	producerMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsignal_kafka_producer_messages_total",
			Help: "Messages published to Kafka",
		},
		[]string{"topic", "result"},
	)
	producerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finsignal_kafka_producer_publish_seconds",
			Help:    "Publish latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)

// writer is the subset of *kafka.Writer the producer needs.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer wraps a kafka-go writer. Topics are set per message.
type Producer struct {
	w   writer
	now func() time.Time
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            parseCompression(cfg.Compression),
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		ReadTimeout:            cfg.ReadTimeout,
		BatchSize:              cfg.BatchSize,
		BatchBytes:             int64(cfg.BatchBytes),
		BatchTimeout:           cfg.BatchTimeout,
		Async:                  cfg.Async,
		AllowAutoTopicCreation: true,
	}
	return &Producer{w: w, now: time.Now}, nil
}

// Publish sends one message. Values other than []byte and string are JSON encoded.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	start := time.Now()
	v, err := encode(value)
	if err != nil {
		return err
	}
	err = p.w.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: v, Time: p.now()})
	observe(topic, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	return nil
}

// PublishMessage publishes without a key. It satisfies logger.Publisher.
func (p *Producer) PublishMessage(ctx context.Context, topic string, value interface{}) error {
	return p.Publish(ctx, topic, nil, value)
}

func (p *Producer) Close() error {
	if p.w != nil {
		return p.w.Close()
	}
	return nil
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value: %w", err)
		}
		return b, nil
	}
}

func observe(topic string, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMessages.WithLabelValues(topic, result).Inc()
	producerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}
