// Package indicators computes the technical indicator series consumed by the scorer and regime detector.
package indicators

import (
	"FinSignal/internal/domain/models"
)

// Params configures indicator periods.
type Params struct {
	EMAFast       int
	EMAMid        int
	EMASlow       int
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	RSI           int
	StochPeriod   int
	StochSmooth   int
	CCI           int
	MFI           int
	ATR           int
	BBPeriod      int
	BBMult        float64
	ProfileBins   int
	ProfileWindow int
}

// DefaultParams are the conventional periods.
func DefaultParams() Params {
	return Params{
		EMAFast:       20,
		EMAMid:        50,
		EMASlow:       200,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		RSI:           14,
		StochPeriod:   14,
		StochSmooth:   3,
		CCI:           20,
		MFI:           14,
		ATR:           14,
		BBPeriod:      20,
		BBMult:        2,
		ProfileBins:   24,
		ProfileWindow: 100,
	}
}

// Engine is stateless and safe for concurrent use.
type Engine struct {
	p Params
}

func NewEngine(p Params) *Engine {
	return &Engine{p: p}
}

// NewDefaultEngine uses DefaultParams.
func NewDefaultEngine() *Engine { return NewEngine(DefaultParams()) }

// Compute builds a snapshot. Series that lack enough bars are simply omitted.
func (e *Engine) Compute(bars []models.MarketBar) models.IndicatorSnapshot {
	h, l, c, v := columns(bars)
	var items []models.Indicator
	line := func(k models.IndicatorKind, xs []float64) {
		if len(xs) > 0 {
			items = append(items, models.LineSeries{K: k, Values: xs})
		}
	}

	line(models.IndicatorEMA20, EMA(c, e.p.EMAFast))
	line(models.IndicatorEMA50, EMA(c, e.p.EMAMid))
	line(models.IndicatorEMA200, EMA(c, e.p.EMASlow))
	line(models.IndicatorRSI, RSI(c, e.p.RSI))
	line(models.IndicatorCCI, CCI(h, l, c, e.p.CCI))
	line(models.IndicatorMFI, MFI(h, l, c, v, e.p.MFI))
	line(models.IndicatorATR, ATR(h, l, c, e.p.ATR))

	if ml, ms, mh := MACD(c, e.p.MACDFast, e.p.MACDSlow, e.p.MACDSignal); len(mh) > 0 {
		items = append(items, models.MACDSeries{Line: ml, Signal: ms, Histogram: mh})
	}
	if k, d := Stochastic(h, l, c, e.p.StochPeriod, e.p.StochSmooth); len(d) > 0 {
		items = append(items, models.StochasticSeries{K: k, D: d})
	}
	if up, mid, lo := Bollinger(c, e.p.BBPeriod, e.p.BBMult); len(mid) > 0 {
		items = append(items, models.BandSeries{Upper: up, Middle: mid, Lower: lo})
	}

	w := len(c)
	if e.p.ProfileWindow > 0 && w > e.p.ProfileWindow {
		w = e.p.ProfileWindow
	}
	s := len(c) - w
	if poc, vah, val, ok := Profile(h[s:], l[s:], c[s:], v[s:], e.p.ProfileBins); ok {
		items = append(items, models.VolumeProfile{PointOfControl: poc, ValueAreaHigh: vah, ValueAreaLow: val})
	}
	return models.NewIndicatorSnapshot(items...)
}

// Closes extracts close prices as float64.
func Closes(bars []models.MarketBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close.InexactFloat64()
	}
	return out
}

// Volumes extracts volumes as float64.
func Volumes(bars []models.MarketBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume.InexactFloat64()
	}
	return out
}

func columns(bars []models.MarketBar) (h, l, c, v []float64) {
	n := len(bars)
	h, l, c, v = make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, b := range bars {
		h[i] = b.High.InexactFloat64()
		l[i] = b.Low.InexactFloat64()
		c[i] = b.Close.InexactFloat64()
		v[i] = b.Volume.InexactFloat64()
	}
	return
}
