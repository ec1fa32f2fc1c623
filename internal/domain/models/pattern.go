package models

import "github.com/shopspring/decimal"

// PatternType groups detected chart patterns for weighting.
type PatternType string

const (
	PatternBreakout     PatternType = "BREAKOUT"
	PatternReversal     PatternType = "REVERSAL"
	PatternContinuation PatternType = "CONTINUATION"
	PatternCandlestick  PatternType = "CANDLESTICK"
	PatternHarmonic     PatternType = "HARMONIC"
	PatternDivergence   PatternType = "DIVERGENCE"
)

// PatternBias is the directional lean of a pattern.
type PatternBias string

const (
	BiasBullish PatternBias = "bullish"
	BiasBearish PatternBias = "bearish"
	BiasNeutral PatternBias = "neutral"
)

// Sign is -1 for a bearish bias and +1 otherwise. Neutral or missing bias
// leaves the pattern's contribution unsigned.
func (b PatternBias) Sign() float64 {
	if b == BiasBearish {
		return -1
	}
	return 1
}

// PatternHit is one detected pattern.
// Confidence is in [0,1], Strength in [0,10].
type PatternHit struct {
	Name           string           `json:"name"`
	Type           PatternType      `json:"type"`
	Bias           PatternBias      `json:"bias"`
	Confidence     float64          `json:"confidence"`
	Strength       float64          `json:"strength"`
	TargetPrice    *decimal.Decimal `json:"target_price,omitempty"`
	StopPrice      *decimal.Decimal `json:"stop_price,omitempty"`
	HistoricalWinR *float64         `json:"historical_win_rate,omitempty"`
	Timeframe      Timeframe        `json:"timeframe"`
}

// PatternCollection is the set of patterns found on one timeframe.
type PatternCollection struct {
	Timeframe Timeframe    `json:"timeframe"`
	Patterns  []PatternHit `json:"patterns"`
}

// Strongest returns the highest pattern confidence, 0 for an empty collection.
func (c PatternCollection) Strongest() float64 {
	best := 0.0
	for _, p := range c.Patterns {
		if p.Confidence > best {
			best = p.Confidence
		}
	}
	return best
}

// TimeframePatterns maps timeframes to their patterns; timeframes may be absent.
type TimeframePatterns map[Timeframe]PatternCollection

// Ordered returns the timeframes present in canonical order.
func (m TimeframePatterns) Ordered() []Timeframe {
	bars := make(TimeframeBars, len(m))
	for tf := range m {
		bars[tf] = nil
	}
	return bars.Ordered()
}
