package models

import "math"

// IndicatorKind enumerates the indicator series an IndicatorSnapshot may carry.
type IndicatorKind int

const (
	IndicatorEMA20 IndicatorKind = iota + 1
	IndicatorEMA50
	IndicatorEMA200
	IndicatorMACD
	IndicatorRSI
	IndicatorStochastic
	IndicatorCCI
	IndicatorMFI
	IndicatorATR
	IndicatorBollinger
	IndicatorVolumeProfile
)

var indicatorNames = map[IndicatorKind]string{
	IndicatorEMA20:         "ema_20",
	IndicatorEMA50:         "ema_50",
	IndicatorEMA200:        "ema_200",
	IndicatorMACD:          "macd",
	IndicatorRSI:           "rsi",
	IndicatorStochastic:    "stochastic",
	IndicatorCCI:           "cci",
	IndicatorMFI:           "mfi",
	IndicatorATR:           "atr",
	IndicatorBollinger:     "bollinger",
	IndicatorVolumeProfile: "volume_profile",
}

func (k IndicatorKind) String() string {
	if s, ok := indicatorNames[k]; ok {
		return s
	}
	return "unknown"
}

// Indicator is implemented by every concrete indicator series type.
type Indicator interface {
	Kind() IndicatorKind
	Len() int
}

// LineSeries is a single-valued series (EMA, RSI, CCI, MFI, ATR).
type LineSeries struct {
	K      IndicatorKind
	Values []float64
}

func (s LineSeries) Kind() IndicatorKind { return s.K }
func (s LineSeries) Len() int            { return len(s.Values) }

// Last returns the value n bars back from the newest (0 = newest).
func (s LineSeries) Last(n int) (float64, bool) {
	return lastN(s.Values, n)
}

// MACDSeries holds the MACD line, its signal line and the histogram.
type MACDSeries struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

func (s MACDSeries) Kind() IndicatorKind { return IndicatorMACD }
func (s MACDSeries) Len() int            { return len(s.Histogram) }

// StochasticSeries holds %K and %D.
type StochasticSeries struct {
	K []float64
	D []float64
}

func (s StochasticSeries) Kind() IndicatorKind { return IndicatorStochastic }
func (s StochasticSeries) Len() int            { return len(s.D) }

// BandSeries holds volatility bands.
type BandSeries struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

func (s BandSeries) Kind() IndicatorKind { return IndicatorBollinger }
func (s BandSeries) Len() int            { return len(s.Middle) }

// VolumeProfile summarises traded volume by price level.
type VolumeProfile struct {
	PointOfControl float64
	ValueAreaHigh  float64
	ValueAreaLow   float64
}

func (p VolumeProfile) Kind() IndicatorKind { return IndicatorVolumeProfile }
func (p VolumeProfile) Len() int {
	if p.PointOfControl > 0 {
		return 1
	}
	return 0
}

// IndicatorSnapshot is a read-only, kind-keyed set of indicator series for one timeframe.
type IndicatorSnapshot struct {
	series map[IndicatorKind]Indicator
}

// NewIndicatorSnapshot builds a snapshot from the given series. Later duplicates win.
func NewIndicatorSnapshot(items ...Indicator) IndicatorSnapshot {
	m := make(map[IndicatorKind]Indicator, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		m[it.Kind()] = it
	}
	return IndicatorSnapshot{series: m}
}

// Has reports whether a non-empty series of kind k is present.
func (s IndicatorSnapshot) Has(k IndicatorKind) bool {
	it, ok := s.series[k]
	return ok && it.Len() > 0
}

// Line returns a single-valued series.
func (s IndicatorSnapshot) Line(k IndicatorKind) (LineSeries, bool) {
	it, ok := s.series[k].(LineSeries)
	return it, ok && it.Len() > 0
}

// Latest returns the newest value of a single-valued series.
func (s IndicatorSnapshot) Latest(k IndicatorKind) (float64, bool) {
	l, ok := s.Line(k)
	if !ok {
		return 0, false
	}
	return l.Last(0)
}

func (s IndicatorSnapshot) MACD() (MACDSeries, bool) {
	it, ok := s.series[IndicatorMACD].(MACDSeries)
	return it, ok && it.Len() > 0
}

func (s IndicatorSnapshot) Stochastic() (StochasticSeries, bool) {
	it, ok := s.series[IndicatorStochastic].(StochasticSeries)
	return it, ok && it.Len() > 0
}

func (s IndicatorSnapshot) Bollinger() (BandSeries, bool) {
	it, ok := s.series[IndicatorBollinger].(BandSeries)
	return it, ok && it.Len() > 0
}

func (s IndicatorSnapshot) VolumeProfile() (VolumeProfile, bool) {
	it, ok := s.series[IndicatorVolumeProfile].(VolumeProfile)
	return it, ok && it.Len() > 0
}

func lastN(xs []float64, n int) (float64, bool) {
	i := len(xs) - 1 - n
	if n < 0 || i < 0 {
		return 0, false
	}
	v := xs[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
