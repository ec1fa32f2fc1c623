package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeframeAnalysis summarises one analysed timeframe inside a Signal.
type TimeframeAnalysis struct {
	Timeframe                  Timeframe `json:"timeframe"`
	BarCount                   int       `json:"bar_count"`
	PatternCount               int       `json:"pattern_count"`
	StrongestPatternConfidence float64   `json:"strongest_pattern_confidence"`
	Trend                      string    `json:"trend"`
	Momentum                   string    `json:"momentum"`
	Weight                     float64   `json:"weight"`
}

// Signal is the final, immutable output handed to the caller.
type Signal struct {
	ID               string              `json:"id"`
	Symbol           string              `json:"symbol"`
	Direction        Direction           `json:"direction"`
	ConfluenceScore  float64             `json:"confluence_score"`
	Confidence       float64             `json:"confidence"`
	RawConfidence    float64             `json:"raw_confidence"`
	Regime           Regime              `json:"regime"`
	PrimaryTimeframe Timeframe           `json:"primary_timeframe"`
	Analyses         []TimeframeAnalysis `json:"analyses"`
	Patterns         []PatternHit        `json:"patterns"`
	Qualitative      *LLMAnalysis        `json:"qualitative,omitempty"`
	EntryPrice       *decimal.Decimal    `json:"entry_price,omitempty"`
	StopLoss         *decimal.Decimal    `json:"stop_loss,omitempty"`
	TakeProfit       *decimal.Decimal    `json:"take_profit,omitempty"`
	Reasoning        string              `json:"reasoning"`
	CreatedAt        time.Time           `json:"created_at"`
	ExpiresAt        time.Time           `json:"expires_at"`
	Priority         int                 `json:"priority"`
}

// Outcome is the realised result of a previously emitted signal, fed back into calibration.
// RawConfidence is the signal's pre-calibration confidence; Confidence is what was published.
type Outcome struct {
	SignalID      string    `json:"signal_id"`
	Symbol        string    `json:"symbol"`
	Confidence    float64   `json:"confidence"`
	RawConfidence *float64  `json:"raw_confidence,omitempty"`
	Success       bool      `json:"success"`
	ClosedAt      time.Time `json:"closed_at"`
}

// Predicted is the confidence the calibrator learns from. Outcomes without a
// raw value fall back to the published one.
func (o Outcome) Predicted() float64 {
	if o.RawConfidence != nil {
		return *o.RawConfidence
	}
	return o.Confidence
}

// CalibrationSample is one (predicted confidence, realised outcome) pair.
type CalibrationSample struct {
	Predicted float64 `json:"p"`
	Success   bool    `json:"s"`
}
