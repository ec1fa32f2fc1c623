// Package regime classifies a symbol's prevailing trend character.
package regime

import (
	"fmt"
	"math"
	"sort"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/services/indicators"
)

const (
	DefaultLookback = 50

	percentileMinBars = 100
	percentileWindow  = 20
	annualisation     = 252
)

type Config struct {
	Lookback int
	// BullThreshold and BearThreshold bound the combined trend/alignment reading.
	BullThreshold float64
	BearThreshold float64
}

func DefaultConfig() Config {
	return Config{Lookback: DefaultLookback, BullThreshold: 0.3, BearThreshold: -0.3}
}

// Detector is read-only after construction and safe to share.
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) *Detector {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.BullThreshold == 0 && cfg.BearThreshold == 0 {
		cfg.BullThreshold, cfg.BearThreshold = 0.3, -0.3
	}
	return &Detector{cfg: cfg}
}

// DetectRegime never fails. Short input yields NeutralRegime; faulty sub-terms read as 0
// and are reported in RegimeData.Diagnostics.
func (d *Detector) DetectRegime(bars []models.MarketBar, ind models.IndicatorSnapshot) models.RegimeData {
	if len(bars) < d.cfg.Lookback {
		return models.NeutralRegime()
	}
	tf := bars[len(bars)-1].Timeframe
	closes := indicators.Closes(bars)
	price := closes[len(closes)-1]

	var diags []models.Diagnostic
	guard := func(source string, fn func() (float64, error)) float64 {
		v, err := fn()
		if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
			err = models.ErrNonFinite
		}
		if err != nil {
			diags = append(diags, models.NewDiagnostic("regime."+source, tf, err))
			return 0
		}
		return v
	}

	ema := emaLevels(ind)
	out := models.RegimeData{
		TrendStrength: guard("trend_strength", func() (float64, error) {
			return trendStrength(price, closes, ema)
		}),
		VolatilityLevel: guard("volatility_level", func() (float64, error) {
			return volatilityLevel(price, closes, ind)
		}),
		VolumeTrend: guard("volume_trend", func() (float64, error) {
			return volumeTrend(indicators.Volumes(bars))
		}),
		EMAAlignment: guard("ema_alignment", func() (float64, error) {
			return emaAlignment(ema)
		}),
		PriceMomentum: guard("price_momentum", func() (float64, error) {
			return priceMomentum(closes)
		}),
	}
	if len(bars) >= percentileMinBars {
		out.VolatilityPercentile = guard("volatility_percentile", func() (float64, error) {
			return volatilityPercentile(closes)
		})
	} else {
		out.VolatilityPercentile = 0.5
	}

	combined := (out.TrendStrength + out.EMAAlignment) / 2
	switch {
	case combined > d.cfg.BullThreshold:
		out.Regime = models.RegimeBull
	case combined < d.cfg.BearThreshold:
		out.Regime = models.RegimeBear
	default:
		out.Regime = models.RegimeSideways
	}

	conf := math.Min(0.95, 0.5+math.Abs(combined))
	if out.VolatilityLevel > 0.7 {
		conf *= 0.8
	}
	if math.Abs(out.VolumeTrend) > 0.5 {
		conf = math.Min(0.95, conf*1.2)
	}
	out.Confidence = conf
	out.Diagnostics = diags
	return out
}

type emas struct {
	e20, e50, e200       float64
	has20, has50, has200 bool
}

func emaLevels(ind models.IndicatorSnapshot) emas {
	var e emas
	e.e20, e.has20 = ind.Latest(models.IndicatorEMA20)
	e.e50, e.has50 = ind.Latest(models.IndicatorEMA50)
	e.e200, e.has200 = ind.Latest(models.IndicatorEMA200)
	return e
}

func (e emas) complete() bool { return e.has20 && e.has50 && e.has200 }

func trendStrength(price float64, closes []float64, e emas) (float64, error) {
	var align float64
	switch {
	case !e.has20 && !e.has50 && !e.has200:
		return 0, fmt.Errorf("ema series: %w", models.ErrMissingIndicator)
	case e.complete() && price > e.e20 && e.e20 > e.e50 && e.e50 > e.e200:
		align = 1
	case e.complete() && price < e.e20 && e.e20 < e.e50 && e.e50 < e.e200:
		align = -1
	default:
		sum, n := 0.0, 0
		for _, lv := range []struct {
			v  float64
			ok bool
		}{{e.e20, e.has20}, {e.e50, e.has50}, {e.e200, e.has200}} {
			if !lv.ok {
				continue
			}
			sum += sign(price - lv.v)
			n++
		}
		align = sum / float64(n)
	}
	mom, err := change(closes, 10)
	if err != nil {
		return 0, err
	}
	return clamp(0.7*align+0.3*math.Tanh(10*mom), -1, 1), nil
}

func volatilityLevel(price float64, closes []float64, ind models.IndicatorSnapshot) (float64, error) {
	if atr, ok := ind.Latest(models.IndicatorATR); ok {
		if price <= 0 {
			return 0, models.ErrZeroDivision
		}
		return clamp(atr/price*40, 0, 1), nil
	}
	rets, err := returns(closes)
	if err != nil {
		return 0, err
	}
	return clamp(2*stdev(rets)*math.Sqrt(annualisation), 0, 1), nil
}

func volumeTrend(vols []float64) (float64, error) {
	if len(vols) < 30 {
		return 0, models.ErrInsufficientData
	}
	n := len(vols)
	recent := mean(vols[n-10:])
	prior := mean(vols[n-30 : n-10])
	if prior <= 0 {
		return 0, fmt.Errorf("prior volume: %w", models.ErrZeroDivision)
	}
	return math.Tanh(2 * (recent/prior - 1)), nil
}

func emaAlignment(e emas) (float64, error) {
	if !e.complete() {
		return 0, fmt.Errorf("ema 20/50/200: %w", models.ErrMissingIndicator)
	}
	switch {
	case e.e20 > e.e50 && e.e50 > e.e200:
		return 1, nil
	case e.e20 < e.e50 && e.e50 < e.e200:
		return -1, nil
	default:
		return (sign(e.e20-e.e50) + sign(e.e50-e.e200)) / 2, nil
	}
}

func priceMomentum(closes []float64) (float64, error) {
	sum := 0.0
	for _, w := range []int{5, 10, 20} {
		d, err := change(closes, w)
		if err != nil {
			return 0, err
		}
		sum += math.Tanh(10 * d)
	}
	return sum / 3, nil
}

// volatilityPercentile ranks the latest rolling stdev of returns among all rolling windows.
func volatilityPercentile(closes []float64) (float64, error) {
	rets, err := returns(closes)
	if err != nil {
		return 0, err
	}
	sd := indicators.StdDev(rets, percentileWindow)
	if len(sd) == 0 {
		return 0, models.ErrInsufficientData
	}
	cur := sd[len(sd)-1]
	sorted := append([]float64(nil), sd...)
	sort.Float64s(sorted)
	below := sort.Search(len(sorted), func(i int) bool { return sorted[i] > cur })
	return float64(below) / float64(len(sorted)), nil
}

// change is the relative close change over the last w bars.
func change(closes []float64, w int) (float64, error) {
	n := len(closes)
	if n <= w {
		return 0, models.ErrInsufficientData
	}
	base := closes[n-1-w]
	if base == 0 {
		return 0, models.ErrZeroDivision
	}
	return (closes[n-1] - base) / base, nil
}

func returns(closes []float64) ([]float64, error) {
	if len(closes) < 2 {
		return nil, models.ErrInsufficientData
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			return nil, models.ErrZeroDivision
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out, nil
}

// sign votes +1 above, -1 below and 0 on a tie.
func sign(d float64) float64 {
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	default:
		return 0
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range xs {
		s += v
	}
	return s / float64(len(xs))
}

func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	ss := 0.0
	for _, v := range xs {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
