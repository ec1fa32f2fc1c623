package service

import (
	"context"

	"FinSignal/internal/domain/models"
)

// IndicatorEngine computes the indicator series for one timeframe of bars.
type IndicatorEngine interface {
	Compute(bars []models.MarketBar) models.IndicatorSnapshot
}

// PatternDetector detects chart patterns on a bar sequence.
type PatternDetector interface {
	Detect(ctx context.Context, symbol string, tf models.Timeframe, bars []models.MarketBar) (models.PatternCollection, error)
}

// QualitativeAnalyzer produces an LLM assessment of a symbol.
type QualitativeAnalyzer interface {
	Analyze(ctx context.Context, symbol string, bars models.TimeframeBars) (*models.LLMAnalysis, error)
}
