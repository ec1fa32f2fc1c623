package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinSignal/internal/domain/models"
	domsvc "FinSignal/internal/domain/service"
	"FinSignal/internal/service/cache"
)

const qualitativeService = "qualitative"

// HTTPQualitativeAnalyzer asks the LLM service for a qualitative read of a symbol.
// Replies are cached per symbol and latest bar, so repeated scans of an unchanged
// market do not repeat the call.
type HTTPQualitativeAnalyzer struct {
	base    *HTTPServiceBase
	maxBars int
	cache   cache.BytesCache
	ttl     time.Duration
}

var _ domsvc.QualitativeAnalyzer = (*HTTPQualitativeAnalyzer)(nil)

func NewHTTPQualitativeAnalyzer(base *HTTPServiceBase, maxBars int, c cache.BytesCache, ttl time.Duration) *HTTPQualitativeAnalyzer {
	return &HTTPQualitativeAnalyzer{base: base, maxBars: maxBars, cache: c, ttl: ttl}
}

type qualitativeRequest struct {
	Symbol     string               `json:"symbol"`
	Timeframes map[string][]wireBar `json:"timeframes"`
}

func (a *HTTPQualitativeAnalyzer) Analyze(ctx context.Context, symbol string, bars models.TimeframeBars) (*models.LLMAnalysis, error) {
	key := qualitativeKey(symbol, bars)
	if a.cache != nil {
		if b, ok, err := a.cache.GetBytes(ctx, key); err == nil && ok {
			var cached models.LLMAnalysis
			if json.Unmarshal(b, &cached) == nil {
				return &cached, nil
			}
		}
	}

	req := qualitativeRequest{Symbol: symbol, Timeframes: make(map[string][]wireBar, len(bars))}
	for _, tf := range bars.Ordered() {
		req.Timeframes[string(tf)] = toWire(tail(bars[tf], a.maxBars))
	}
	var resp models.LLMAnalysis
	if err := a.base.PostJSONWithRetry(ctx, qualitativeService, "/qualitative/analyze", req, &resp); err != nil {
		return nil, fmt.Errorf("qualitative analysis %s: %w", symbol, err)
	}
	resp.BullishScore = clamp(resp.BullishScore, 0, 10)
	resp.BearishScore = clamp(resp.BearishScore, 0, 10)
	resp.Confidence = clamp(resp.Confidence, 0, 1)

	if a.cache != nil {
		if b, err := json.Marshal(resp); err == nil {
			_ = a.cache.SetBytes(ctx, key, b, a.ttl)
		}
	}
	return &resp, nil
}

// qualitativeKey identifies the market state by the newest bar across timeframes.
func qualitativeKey(symbol string, bars models.TimeframeBars) string {
	var latest time.Time
	for _, bs := range bars {
		if n := len(bs); n > 0 && bs[n-1].Timestamp.After(latest) {
			latest = bs[n-1].Timestamp
		}
	}
	return fmt.Sprintf("qualitative:%s:%d", symbol, latest.Unix())
}
