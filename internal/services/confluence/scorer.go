// Package confluence fuses per-timeframe technical scores, chart patterns and an optional
// qualitative assessment into one directional score.
package confluence

import (
	"fmt"
	"math"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/domain/service"
)

const DefaultMinBars = 50

// RegimeDetector classifies the primary timeframe.
type RegimeDetector interface {
	DetectRegime(bars []models.MarketBar, ind models.IndicatorSnapshot) models.RegimeData
}

// Calibrator maps a raw confidence to a calibrated one.
type Calibrator interface {
	CalibrateConfidence(raw float64) float64
}

type identity struct{}

func (identity) CalibrateConfidence(raw float64) float64 { return raw }

type Option func(*Scorer)

func WithWeights(w models.ConfluenceWeights) Option {
	return func(s *Scorer) { s.weights = w }
}

func WithCalibrator(c Calibrator) Option {
	return func(s *Scorer) { s.calibrator = c }
}

func WithMinBars(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.minBars = n
		}
	}
}

// Scorer is safe for concurrent use as long as its Calibrator is.
type Scorer struct {
	engine     service.IndicatorEngine
	detector   RegimeDetector
	calibrator Calibrator
	weights    models.ConfluenceWeights
	minBars    int
}

func NewScorer(engine service.IndicatorEngine, detector RegimeDetector, opts ...Option) *Scorer {
	s := &Scorer{
		engine:     engine,
		detector:   detector,
		calibrator: identity{},
		weights:    models.DefaultConfluenceWeights(),
		minBars:    DefaultMinBars,
	}
	for _, o := range opts {
		o(s)
	}
	if s.weights.IsZero() {
		s.weights = models.DefaultConfluenceWeights()
	}
	return s
}

func (s *Scorer) Weights() models.ConfluenceWeights { return s.weights }

// CalculateConfluenceScore never fails. When no timeframe has enough bars it returns
// models.ErrorScore, which callers detect with Unscorable.
func (s *Scorer) CalculateConfluenceScore(symbol string, bars models.TimeframeBars, patterns models.TimeframePatterns, llm *models.LLMAnalysis) models.ConfluenceScore {
	var usable []models.Timeframe
	var diags []models.Diagnostic
	for _, tf := range bars.Ordered() {
		if len(bars[tf]) >= s.minBars {
			usable = append(usable, tf)
			continue
		}
		diags = append(diags, models.NewDiagnostic("confluence.timeframe", tf,
			fmt.Errorf("%d bars, need %d: %w", len(bars[tf]), s.minBars, models.ErrInsufficientData)))
	}
	if len(usable) == 0 {
		out := models.ErrorScore(symbol)
		out.Diagnostics = diags
		return out
	}

	perTF := make(map[models.Timeframe]models.ComponentScores, len(usable))
	snaps := make(map[models.Timeframe]models.IndicatorSnapshot, len(usable))
	for _, tf := range usable {
		snap := s.engine.Compute(bars[tf])
		snaps[tf] = snap
		fr := newFrame(tf, bars[tf], snap)
		perTF[tf] = models.ComponentScores{
			Trend:      fr.trendScore(),
			Momentum:   fr.momentumScore(),
			Volatility: fr.volatilityScore(),
			Volume:     fr.volumeScore(),
			Pattern:    patternScore(patterns[tf], fr.f),
		}
		diags = append(diags, fr.f.out...)
	}

	primary := primaryTimeframe(usable)
	rd := s.detector.DetectRegime(bars[primary], snaps[primary])
	diags = append(diags, rd.Diagnostics...)

	tfw := TimeframeWeights(usable, rd)
	var agg models.ComponentScores
	for _, tf := range usable {
		w, c := tfw[tf], perTF[tf]
		agg.Trend += c.Trend * w
		agg.Momentum += c.Momentum * w
		agg.Volatility += c.Volatility * w
		agg.Volume += c.Volume * w
		agg.Pattern += c.Pattern * w
	}
	agg.Qualitative = qualitativeScore(llm)

	signed := weightedSum(agg, s.weights)

	dir := models.DirectionShort
	if signed > 0 {
		dir = models.DirectionLong
	}
	mult := regimeMultiplier(rd, dir)
	total := math.Min(100, math.Abs(10*signed*mult))
	if math.IsNaN(total) {
		diags = append(diags, models.NewDiagnostic("confluence.total", primary, models.ErrNonFinite))
		total = 0
	}

	raw := math.Min(0.95, total/100+0.1)
	conf := s.calibrator.CalibrateConfidence(raw)
	if math.IsNaN(conf) {
		conf = raw
	}

	out := models.ConfluenceScore{
		Symbol:           symbol,
		TotalScore:       total,
		Direction:        dir,
		Confidence:       clamp(conf, 0, 1),
		RawConfidence:    raw,
		Components:       agg,
		RegimeMultiplier: mult,
		Regime:           rd,
		PrimaryTimeframe: primary,
		TimeframeWeights: tfw,
		TimeframeScores:  perTF,
		Diagnostics:      diags,
	}
	out.KeyFactors, out.RiskFactors = factors(out, llm)
	return out
}

// weightedSum is the signed six-component blend; its sign is the direction.
func weightedSum(c models.ComponentScores, w models.ConfluenceWeights) float64 {
	return c.Trend*w.Trend() +
		c.Momentum*w.Momentum() +
		c.Volatility*w.Volatility() +
		c.Volume*w.Volume() +
		c.Pattern*w.Pattern() +
		c.Qualitative*w.Qualitative()
}

// regimeMultiplier in [0.5, 1.5].
func regimeMultiplier(rd models.RegimeData, dir models.Direction) float64 {
	confFactor := 0.8 + 0.4*rd.Confidence

	trendFactor := 0.9
	if rd.Regime != models.RegimeSideways {
		ts := math.Abs(rd.TrendStrength)
		if withRegime(rd.Regime, dir) {
			trendFactor = 1 + 0.2*ts
		} else {
			trendFactor = 1 - 0.2*ts
		}
	}

	volFactor := 1.0
	switch {
	case rd.VolatilityLevel > 0.8:
		volFactor = 0.9
	case rd.VolatilityLevel < 0.2:
		volFactor = 0.95
	}

	m := confFactor * trendFactor * volFactor
	if math.IsNaN(m) {
		return 1
	}
	return clamp(m, 0.5, 1.5)
}
