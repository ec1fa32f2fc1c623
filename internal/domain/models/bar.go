package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MarketBar is one OHLCV bar. Prices and volume are exact decimals.
// Invariant: Low <= {Open, Close} <= High and Volume >= 0.
type MarketBar struct {
	Symbol    string          `json:"symbol"`
	Timeframe Timeframe       `json:"timeframe"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Valid checks the OHLCV invariant.
func (b MarketBar) Valid() bool {
	if b.Volume.IsNegative() {
		return false
	}
	if b.Low.GreaterThan(b.High) {
		return false
	}
	for _, p := range []decimal.Decimal{b.Open, b.Close} {
		if p.LessThan(b.Low) || p.GreaterThan(b.High) {
			return false
		}
	}
	return true
}

// TimeframeBars maps each timeframe to its bars, oldest first.
type TimeframeBars map[Timeframe][]MarketBar

// Ordered returns the timeframes present in canonical (shortest first) order.
func (m TimeframeBars) Ordered() []Timeframe {
	out := make([]Timeframe, 0, len(m))
	for _, tf := range Timeframes {
		if _, ok := m[tf]; ok {
			out = append(out, tf)
		}
	}
	// unknown timeframes are appended in name order to keep iteration deterministic
	var extra []Timeframe
	for tf := range m {
		if tf.Rank() == len(Timeframes) {
			extra = append(extra, tf)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
