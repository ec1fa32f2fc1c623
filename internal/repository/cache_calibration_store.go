package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	"FinSignal/internal/service/cache"
)

// CacheCalibrationStore keeps calibrator windows as JSON in a BytesCache (Redis in production).
type CacheCalibrationStore struct {
	c   cache.BytesCache
	ttl time.Duration
}

var _ domrepo.CalibrationStore = (*CacheCalibrationStore)(nil)

func NewCacheCalibrationStore(c cache.BytesCache, ttl time.Duration) *CacheCalibrationStore {
	return &CacheCalibrationStore{c: c, ttl: ttl}
}

func calibrationKey(symbol string) string {
	return "calibration:" + symbol
}

func (s *CacheCalibrationStore) Save(ctx context.Context, symbol string, window []models.CalibrationSample) error {
	b, err := json.Marshal(window)
	if err != nil {
		return fmt.Errorf("marshal calibration window: %w", err)
	}
	if err := s.c.SetBytes(ctx, calibrationKey(symbol), b, s.ttl); err != nil {
		return fmt.Errorf("save calibration %s: %w", symbol, err)
	}
	return nil
}

// Load returns nil, nil when nothing was saved for symbol.
func (s *CacheCalibrationStore) Load(ctx context.Context, symbol string) ([]models.CalibrationSample, error) {
	b, ok, err := s.c.GetBytes(ctx, calibrationKey(symbol))
	if err != nil {
		return nil, fmt.Errorf("load calibration %s: %w", symbol, err)
	}
	if !ok {
		return nil, nil
	}
	var window []models.CalibrationSample
	if err := json.Unmarshal(b, &window); err != nil {
		return nil, fmt.Errorf("decode calibration %s: %w", symbol, err)
	}
	return window, nil
}
