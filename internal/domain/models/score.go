package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWeights is returned when confluence weights are negative or do not sum to 1.
var ErrInvalidWeights = errors.New("invalid confluence weights")

// ErrorFactor marks a score that could not be computed.
const ErrorFactor = "Error in calculation"

// Direction is the trade side of a score or signal.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// ConfluenceWeights are the component weights. Immutable after construction.
type ConfluenceWeights struct {
	trend       float64
	momentum    float64
	volatility  float64
	volume      float64
	pattern     float64
	qualitative float64
}

// NewConfluenceWeights validates that every weight is non-negative and that they sum to 1.0 ±1%.
func NewConfluenceWeights(trend, momentum, volatility, volume, pattern, qualitative float64) (ConfluenceWeights, error) {
	ws := []float64{trend, momentum, volatility, volume, pattern, qualitative}
	sum := 0.0
	for _, w := range ws {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return ConfluenceWeights{}, fmt.Errorf("%w: weight %v", ErrInvalidWeights, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 0.01 {
		return ConfluenceWeights{}, fmt.Errorf("%w: sum %.4f", ErrInvalidWeights, sum)
	}
	return ConfluenceWeights{
		trend:       trend,
		momentum:    momentum,
		volatility:  volatility,
		volume:      volume,
		pattern:     pattern,
		qualitative: qualitative,
	}, nil
}

// DefaultConfluenceWeights returns the stock weighting.
func DefaultConfluenceWeights() ConfluenceWeights {
	return ConfluenceWeights{
		trend:       0.25,
		momentum:    0.20,
		volatility:  0.10,
		volume:      0.10,
		pattern:     0.20,
		qualitative: 0.15,
	}
}

func (w ConfluenceWeights) Trend() float64       { return w.trend }
func (w ConfluenceWeights) Momentum() float64    { return w.momentum }
func (w ConfluenceWeights) Volatility() float64  { return w.volatility }
func (w ConfluenceWeights) Volume() float64      { return w.volume }
func (w ConfluenceWeights) Pattern() float64     { return w.pattern }
func (w ConfluenceWeights) Qualitative() float64 { return w.qualitative }

// IsZero reports whether w was never constructed.
func (w ConfluenceWeights) IsZero() bool { return w == ConfluenceWeights{} }

// ComponentScores holds the six component scores.
type ComponentScores struct {
	Trend       float64 `json:"trend"`
	Momentum    float64 `json:"momentum"`
	Volatility  float64 `json:"volatility"`
	Volume      float64 `json:"volume"`
	Pattern     float64 `json:"pattern"`
	Qualitative float64 `json:"qualitative"`
}

// ConfluenceScore is the fused output of the scorer. It is consumed immediately.
type ConfluenceScore struct {
	Symbol           string                        `json:"symbol"`
	TotalScore       float64                       `json:"total_score"`
	Direction        Direction                     `json:"direction"`
	Confidence       float64                       `json:"confidence"`
	RawConfidence    float64                       `json:"raw_confidence"`
	Components       ComponentScores               `json:"components"`
	RegimeMultiplier float64                       `json:"regime_multiplier"`
	Regime           RegimeData                    `json:"regime"`
	PrimaryTimeframe Timeframe                     `json:"primary_timeframe,omitempty"`
	TimeframeWeights map[Timeframe]float64         `json:"timeframe_weights"`
	TimeframeScores  map[Timeframe]ComponentScores `json:"timeframe_scores,omitempty"`
	KeyFactors       []string                      `json:"key_factors"`
	RiskFactors      []string                      `json:"risk_factors"`
	Diagnostics      []Diagnostic                  `json:"diagnostics,omitempty"`
}

// ErrorScore is the sentinel returned when no timeframe can be scored.
func ErrorScore(symbol string) ConfluenceScore {
	return ConfluenceScore{
		Symbol:           symbol,
		TotalScore:       0,
		Direction:        DirectionShort,
		Confidence:       0.1,
		RawConfidence:    0.1,
		RegimeMultiplier: 1.0,
		Regime:           NeutralRegime(),
		TimeframeWeights: map[Timeframe]float64{},
		KeyFactors:       []string{ErrorFactor},
		RiskFactors:      []string{},
	}
}

// Unscorable reports whether s is the error sentinel rather than a genuine low reading.
func (s ConfluenceScore) Unscorable() bool {
	return len(s.KeyFactors) == 1 && s.KeyFactors[0] == ErrorFactor
}
