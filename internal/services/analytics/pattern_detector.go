package analytics

import (
	"context"
	"fmt"
	"strings"

	"FinSignal/internal/domain/models"
	domsvc "FinSignal/internal/domain/service"
)

const patternService = "patterns"

// HTTPPatternDetector asks the pattern service for chart patterns on one timeframe.
type HTTPPatternDetector struct {
	base    *HTTPServiceBase
	maxBars int
}

var _ domsvc.PatternDetector = (*HTTPPatternDetector)(nil)

func NewHTTPPatternDetector(base *HTTPServiceBase, maxBars int) *HTTPPatternDetector {
	return &HTTPPatternDetector{base: base, maxBars: maxBars}
}

type patternRequest struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Bars      []wireBar `json:"bars"`
}

type patternResponse struct {
	Patterns []models.PatternHit `json:"patterns"`
}

func (d *HTTPPatternDetector) Detect(ctx context.Context, symbol string, tf models.Timeframe, bars []models.MarketBar) (models.PatternCollection, error) {
	out := models.PatternCollection{Timeframe: tf}
	var resp patternResponse
	req := patternRequest{Symbol: symbol, Timeframe: string(tf), Bars: toWire(tail(bars, d.maxBars))}
	if err := d.base.PostJSONWithRetry(ctx, patternService, "/patterns/detect", req, &resp); err != nil {
		return out, fmt.Errorf("detect patterns %s %s: %w", symbol, tf, err)
	}
	out.Patterns = make([]models.PatternHit, 0, len(resp.Patterns))
	for _, p := range resp.Patterns {
		if p.Name == "" {
			continue
		}
		out.Patterns = append(out.Patterns, sanitizePattern(p, tf))
	}
	return out, nil
}

// sanitizePattern clamps scores into range and normalises the bias.
func sanitizePattern(p models.PatternHit, tf models.Timeframe) models.PatternHit {
	p.Timeframe = tf
	p.Confidence = clamp(p.Confidence, 0, 1)
	p.Strength = clamp(p.Strength, 0, 10)
	p.Type = models.PatternType(strings.ToUpper(string(p.Type)))
	switch b := models.PatternBias(strings.ToLower(string(p.Bias))); b {
	case models.BiasBullish, models.BiasBearish:
		p.Bias = b
	default:
		p.Bias = models.BiasNeutral
	}
	if p.HistoricalWinR != nil {
		w := clamp(*p.HistoricalWinR, 0, 1)
		p.HistoricalWinR = &w
	}
	if p.TargetPrice != nil && !p.TargetPrice.IsPositive() {
		p.TargetPrice = nil
	}
	if p.StopPrice != nil && !p.StopPrice.IsPositive() {
		p.StopPrice = nil
	}
	return p
}
