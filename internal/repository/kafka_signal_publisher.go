package repository

import (
	"context"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
)

// Producer is the subset of pkg/kafka.Producer the publisher needs.
type Producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaSignalPublisher publishes accepted signals as JSON, keyed by symbol so
// one symbol's signals stay ordered on a partition.
type KafkaSignalPublisher struct {
	producer Producer
	topic    string
}

var _ domrepo.SignalPublisher = (*KafkaSignalPublisher)(nil)

func NewKafkaSignalPublisher(producer Producer, topic string) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, s *models.Signal) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Symbol), s)
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
