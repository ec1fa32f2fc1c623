package usecase

import (
	"context"
	"errors"
	"fmt"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
)

// Broadcaster pushes signals to live subscribers.
type Broadcaster interface {
	Broadcast(s *models.Signal)
}

// SignalSink writes an accepted signal to the audit store, the publisher and
// live subscribers. Any of them may be nil.
type SignalSink struct {
	store domrepo.SignalStore
	pub   domrepo.SignalPublisher
	live  Broadcaster
}

func NewSignalSink(store domrepo.SignalStore, pub domrepo.SignalPublisher, live Broadcaster) *SignalSink {
	return &SignalSink{store: store, pub: pub, live: live}
}

// Deliver returns the joined store and publish errors. It may be repeated for
// the same signal; the audit table deduplicates by id.
func (s *SignalSink) Deliver(ctx context.Context, sig *models.Signal) error {
	var errs []error
	if s.store != nil {
		if err := s.store.Store(ctx, sig); err != nil {
			errs = append(errs, fmt.Errorf("audit: %w", err))
		}
	}
	if s.pub != nil {
		if err := s.pub.Publish(ctx, sig); err != nil {
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
	}
	if s.live != nil {
		s.live.Broadcast(sig)
	}
	return errors.Join(errs...)
}
