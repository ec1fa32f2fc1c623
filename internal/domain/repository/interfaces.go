package repository

import (
	"context"
	"time"

	"FinSignal/internal/domain/models"
)

// BarStore provides read-only access to OHLCV bars, oldest first.
type BarStore interface {
	GetBars(ctx context.Context, symbol string, from, to time.Time, tf models.Timeframe) ([]models.MarketBar, error)
	GetLatestNBars(ctx context.Context, symbol string, n int, tf models.Timeframe) ([]models.MarketBar, error)
}

// SignalStore is the audit trail for accepted signals.
type SignalStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, s *models.Signal) error
	Recent(ctx context.Context, symbol string, limit int) ([]*models.Signal, error)
	Health(ctx context.Context) error
	Close() error
}

// SignalPublisher forwards accepted signals downstream.
type SignalPublisher interface {
	Publish(ctx context.Context, s *models.Signal) error
	Close() error
}

// CalibrationStore persists calibrator windows across restarts.
type CalibrationStore interface {
	Save(ctx context.Context, symbol string, window []models.CalibrationSample) error
	Load(ctx context.Context, symbol string) ([]models.CalibrationSample, error)
}

type Metrics interface {
	RecordSignal(symbol, direction string)
	RecordRejection(symbol string)
	RecordScore(symbol string, score, confidence float64)
	RecordDiagnostic(source string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
