package confluence

import (
	"fmt"
	"math"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/services/indicators"
)

var patternTypeMultiplier = map[models.PatternType]float64{
	models.PatternBreakout:     1.2,
	models.PatternReversal:     1.1,
	models.PatternContinuation: 1.0,
	models.PatternDivergence:   1.0,
	models.PatternHarmonic:     0.9,
	models.PatternCandlestick:  0.8,
}

// defaultWinRate is assumed for patterns without history.
const defaultWinRate = 0.5

// faults collects degraded sub-terms for one timeframe.
type faults struct {
	tf  models.Timeframe
	out []models.Diagnostic
}

func (f *faults) add(source string, err error) {
	f.out = append(f.out, models.NewDiagnostic("confluence."+source, f.tf, err))
}

// finite returns v, or 0 with a recorded fault when v is NaN or infinite.
func (f *faults) finite(source string, v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		f.add(source, models.ErrNonFinite)
		return 0
	}
	return v
}

// frame is the per-timeframe input of the component scorers.
type frame struct {
	bars    []models.MarketBar
	closes  []float64
	volumes []float64
	ind     models.IndicatorSnapshot
	f       *faults
}

func newFrame(tf models.Timeframe, bars []models.MarketBar, ind models.IndicatorSnapshot) *frame {
	return &frame{
		bars:    bars,
		closes:  indicators.Closes(bars),
		volumes: indicators.Volumes(bars),
		ind:     ind,
		f:       &faults{tf: tf},
	}
}

func (fr *frame) price() float64 { return fr.closes[len(fr.closes)-1] }

// trendScore in [-10, 10]: EMA ordering, MACD sign and histogram slope, 20-bar change.
func (fr *frame) trendScore() float64 {
	score := fr.f.finite("trend.ema", fr.emaTerm())
	score += fr.f.finite("trend.macd", fr.macdTerm())
	if d, err := relChange(fr.closes, 20); err != nil {
		fr.f.add("trend.change", err)
	} else {
		score += fr.f.finite("trend.change", 3*math.Tanh(10*d))
	}
	return clamp(score, -10, 10)
}

func (fr *frame) emaTerm() float64 {
	p := fr.price()
	e20, ok20 := fr.ind.Latest(models.IndicatorEMA20)
	e50, ok50 := fr.ind.Latest(models.IndicatorEMA50)
	if !ok20 || !ok50 {
		fr.f.add("trend.ema", fmt.Errorf("ema 20/50: %w", models.ErrMissingIndicator))
		return 0
	}
	// EMA200 is legitimately absent below 200 bars
	if e200, ok := fr.ind.Latest(models.IndicatorEMA200); ok {
		switch {
		case p > e20 && e20 > e50 && e50 > e200:
			return 4
		case p < e20 && e20 < e50 && e50 < e200:
			return -4
		}
	} else {
		switch {
		case p > e20 && e20 > e50:
			return 3
		case p < e20 && e20 < e50:
			return -3
		}
	}
	return sign(p-e20) + sign(e20-e50)
}

func (fr *frame) macdTerm() float64 {
	m, ok := fr.ind.MACD()
	if !ok {
		fr.f.add("trend.macd", fmt.Errorf("macd: %w", models.ErrMissingIndicator))
		return 0
	}
	line, okL := lastOf(m.Line, 0)
	sig, okS := lastOf(m.Signal, 0)
	if !okL || !okS {
		fr.f.add("trend.macd", models.ErrNonFinite)
		return 0
	}
	score := 2 * sign(line-sig)
	if h0, ok := lastOf(m.Histogram, 0); ok {
		if h1, ok := lastOf(m.Histogram, 1); ok {
			score += sign(h0 - h1)
		}
	}
	return score
}

// momentumScore in [-10, 10]. Overbought readings count as bullish momentum.
func (fr *frame) momentumScore() float64 {
	score := 0.0

	if rsi, ok := fr.ind.Latest(models.IndicatorRSI); ok {
		switch {
		case rsi > 70:
			score += 3
		case rsi > 60:
			score += 2
		case rsi < 30:
			score -= 3
		case rsi < 40:
			score -= 2
		}
	} else {
		fr.f.add("momentum.rsi", models.ErrMissingIndicator)
	}

	if st, ok := fr.ind.Stochastic(); ok {
		k0, okK0 := lastOf(st.K, 0)
		d0, okD0 := lastOf(st.D, 0)
		if okK0 && okD0 {
			switch {
			case k0 > 80:
				score += 2
			case k0 < 20:
				score -= 2
			}
			k1, okK1 := lastOf(st.K, 1)
			d1, okD1 := lastOf(st.D, 1)
			if okK1 && okD1 {
				switch {
				case k1 <= d1 && k0 > d0:
					score++
				case k1 >= d1 && k0 < d0:
					score--
				}
			}
		}
	} else {
		fr.f.add("momentum.stochastic", models.ErrMissingIndicator)
	}

	if cci, ok := fr.ind.Latest(models.IndicatorCCI); ok {
		switch {
		case cci > 100:
			score += 2
		case cci < -100:
			score -= 2
		}
	} else {
		fr.f.add("momentum.cci", models.ErrMissingIndicator)
	}

	if mfi, ok := fr.ind.Latest(models.IndicatorMFI); ok {
		switch {
		case mfi > 80:
			score += 2
		case mfi < 20:
			score -= 2
		}
	} else {
		fr.f.add("momentum.mfi", models.ErrMissingIndicator)
	}

	return clamp(score, -10, 10)
}

// volatilityScore in [0, 10].
func (fr *frame) volatilityScore() float64 {
	score := 0.0
	atrSeries, hasATR := fr.ind.Line(models.IndicatorATR)
	atr, _ := atrSeries.Last(0)

	if hasATR {
		window := atrSeries.Values
		if len(window) > 20 {
			window = window[len(window)-20:]
		}
		avg := mean(window)
		if avg <= 0 {
			fr.f.add("volatility.atr_ratio", models.ErrZeroDivision)
		} else {
			switch r := atr / avg; {
			case r > 1.2:
				score += 5
			case r >= 0.8:
				score += 3
			default:
				score++
			}
		}
	} else {
		fr.f.add("volatility.atr_ratio", models.ErrMissingIndicator)
	}

	if bb, ok := fr.ind.Bollinger(); ok {
		up, okU := lastOf(bb.Upper, 0)
		lo, okL := lastOf(bb.Lower, 0)
		switch {
		case !okU || !okL:
			fr.f.add("volatility.band", models.ErrNonFinite)
		case up <= lo:
			fr.f.add("volatility.band", models.ErrZeroDivision)
		default:
			pos := (fr.price() - lo) / (up - lo)
			switch {
			case pos >= 0.9 || pos <= 0.1:
				score += 3
			case pos >= 0.4 && pos <= 0.6:
				score += 1.5
			}
		}
	} else {
		fr.f.add("volatility.band", models.ErrMissingIndicator)
	}

	if hasATR && atr > 0 {
		hi, lo := rangeOf(fr.bars, 10)
		if (hi-lo)/atr > 3 {
			score += 2
		} else {
			score++
		}
	} else if hasATR {
		fr.f.add("volatility.range", models.ErrZeroDivision)
	}

	return clamp(fr.f.finite("volatility", score), 0, 10)
}

// volumeScore in [0, 10].
func (fr *frame) volumeScore() float64 {
	score := 0.0
	n := len(fr.volumes)
	if n >= 20 {
		long := mean(fr.volumes[n-20:])
		if long <= 0 {
			fr.f.add("volume.ratio", models.ErrZeroDivision)
		} else {
			switch r := mean(fr.volumes[n-10:]) / long; {
			case r > 1.5:
				score += 4
			case r > 1.2:
				score += 3
			case r > 0.8:
				score += 2
			default:
				score++
			}
		}
	} else {
		fr.f.add("volume.ratio", models.ErrInsufficientData)
	}

	if vp, ok := fr.ind.VolumeProfile(); ok {
		p := fr.price()
		if p <= 0 {
			fr.f.add("volume.poc", models.ErrZeroDivision)
		} else {
			switch d := math.Abs(p-vp.PointOfControl) / p; {
			case d > 0.03:
				score += 3
			case d >= 0.01:
				score += 2
			default:
				score++
			}
		}
	} else {
		fr.f.add("volume.poc", models.ErrMissingIndicator)
	}

	if fr.volumeConfirms(10) {
		score += 3
	}
	return clamp(fr.f.finite("volume", score), 0, 10)
}

// volumeConfirms reports whether more volume traded on bars moving with the net w-bar change.
func (fr *frame) volumeConfirms(w int) bool {
	n := len(fr.closes)
	if n <= w {
		return false
	}
	net := fr.closes[n-1] - fr.closes[n-1-w]
	if net == 0 {
		return false
	}
	with, against := 0.0, 0.0
	for i := n - w; i < n; i++ {
		d := fr.closes[i] - fr.closes[i-1]
		switch {
		case d*net > 0:
			with += fr.volumes[i]
		case d*net < 0:
			against += fr.volumes[i]
		}
	}
	return with > against
}

// patternScore in [-10, 10].
func patternScore(c models.PatternCollection, f *faults) float64 {
	if len(c.Patterns) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range c.Patterns {
		mult, ok := patternTypeMultiplier[p.Type]
		if !ok {
			mult = 1.0
		}
		wr := defaultWinRate
		if p.HistoricalWinR != nil {
			wr = *p.HistoricalWinR
		}
		sum += p.Confidence * p.Strength * mult * (0.5 + wr) * p.Bias.Sign()
	}
	if len(c.Patterns) > 1 {
		sum /= math.Sqrt(float64(len(c.Patterns)))
	}
	return clamp(f.finite("pattern", sum), -10, 10)
}

// qualitativeScore in [-10, 10], 0 without an analysis.
func qualitativeScore(llm *models.LLMAnalysis) float64 {
	if llm == nil {
		return 0
	}
	v := (llm.BullishScore - llm.BearishScore) * llm.Confidence
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, -10, 10)
}

func relChange(xs []float64, w int) (float64, error) {
	n := len(xs)
	if n <= w {
		return 0, models.ErrInsufficientData
	}
	base := xs[n-1-w]
	if base == 0 {
		return 0, models.ErrZeroDivision
	}
	return (xs[n-1] - base) / base, nil
}

func rangeOf(bars []models.MarketBar, w int) (hi, lo float64) {
	if w > len(bars) {
		w = len(bars)
	}
	tail := bars[len(bars)-w:]
	hi, lo = tail[0].High.InexactFloat64(), tail[0].Low.InexactFloat64()
	for _, b := range tail[1:] {
		hi = math.Max(hi, b.High.InexactFloat64())
		lo = math.Min(lo, b.Low.InexactFloat64())
	}
	return hi, lo
}

func lastOf(xs []float64, n int) (float64, bool) {
	i := len(xs) - 1 - n
	if i < 0 {
		return 0, false
	}
	v := xs[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

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

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
