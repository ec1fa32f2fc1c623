package confluence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/services/calibration"
	"FinSignal/internal/services/indicators"
	"FinSignal/internal/services/regime"
	"FinSignal/internal/testutil"
)

func newTestScorer(opts ...Option) *Scorer {
	return NewScorer(indicators.NewDefaultEngine(), regime.NewDetector(regime.DefaultConfig()), opts...)
}

func breakout() models.TimeframePatterns {
	return models.TimeframePatterns{
		models.TFH1: {Timeframe: models.TFH1, Patterns: []models.PatternHit{{
			Name: "ascending triangle", Type: models.PatternBreakout, Bias: models.BiasBullish,
			Confidence: 0.85, Strength: 8.2, Timeframe: models.TFH1,
		}}},
	}
}

func bullishLLM() *models.LLMAnalysis {
	return &models.LLMAnalysis{
		BullishScore: 8.2, BearishScore: 2.8, Confidence: 0.87,
		Insights: []string{"Earnings beat", "Sector rotation", "Buyback"},
		Risks:    []string{"Macro data"},
	}
}

func TestCalculateConfluenceScoreUptrend(t *testing.T) {
	bars := models.TimeframeBars{models.TFH1: testutil.TrendBars("AAPL", models.TFH1, 200, 100, 0.002)}
	got := newTestScorer().CalculateConfluenceScore("AAPL", bars, breakout(), bullishLLM())

	require.False(t, got.Unscorable())
	assert.Equal(t, models.DirectionLong, got.Direction)
	assert.Greater(t, got.TotalScore, 60.0)
	assert.LessOrEqual(t, got.TotalScore, 100.0)
	assert.Greater(t, got.Confidence, 0.5)
	assert.Equal(t, models.TFH1, got.PrimaryTimeframe)
	assert.Equal(t, models.RegimeBull, got.Regime.Regime)
	assert.InDelta(t, 1.0, got.TimeframeWeights[models.TFH1], 1e-12)
	assert.Greater(t, got.Components.Trend, 0.0)
	assert.Greater(t, got.Components.Momentum, 0.0)
	assert.InDelta(t, 8.364, got.Components.Pattern, 1e-9)
	assert.InDelta(t, (8.2-2.8)*0.87, got.Components.Qualitative, 1e-9)
	assert.LessOrEqual(t, len(got.KeyFactors), 5)
	assert.LessOrEqual(t, len(got.RiskFactors), 5)
}

func TestCalculateConfluenceScoreUnbiasedBreakout(t *testing.T) {
	bars := models.TimeframeBars{models.TFH1: testutil.TrendBars("AAPL", models.TFH1, 200, 100, 0.002)}
	patterns := breakout()
	hits := patterns[models.TFH1]
	hits.Patterns[0].Bias = ""
	patterns[models.TFH1] = hits

	got := newTestScorer().CalculateConfluenceScore("AAPL", bars, patterns, bullishLLM())
	assert.InDelta(t, 8.364, got.Components.Pattern, 1e-9)
	assert.Equal(t, models.DirectionLong, got.Direction)
	assert.Greater(t, got.TotalScore, 60.0)
}

func TestCalculateConfluenceScoreDowntrend(t *testing.T) {
	bars := models.TimeframeBars{
		models.TFH1: testutil.TrendBars("X", models.TFH1, 200, 100, -0.002),
		models.TFH4: testutil.TrendBars("X", models.TFH4, 200, 100, -0.002),
	}
	got := newTestScorer().CalculateConfluenceScore("X", bars, nil, nil)
	assert.Equal(t, models.DirectionShort, got.Direction)
	assert.Equal(t, models.RegimeBear, got.Regime.Regime)
	assert.Less(t, got.Components.Trend, 0.0)
}

func TestCalculateConfluenceScoreNoUsableTimeframe(t *testing.T) {
	bars := models.TimeframeBars{
		models.TFH1: testutil.TrendBars("X", models.TFH1, 49, 100, 0.002),
		models.TFD1: testutil.TrendBars("X", models.TFD1, 10, 100, 0.002),
	}
	got := newTestScorer().CalculateConfluenceScore("X", bars, breakout(), bullishLLM())

	assert.True(t, got.Unscorable())
	assert.Equal(t, 0.0, got.TotalScore)
	assert.Equal(t, 0.1, got.Confidence)
	assert.Equal(t, []string{models.ErrorFactor}, got.KeyFactors)
	assert.Len(t, got.Diagnostics, 2)

	empty := newTestScorer().CalculateConfluenceScore("X", nil, nil, nil)
	assert.True(t, empty.Unscorable())
}

func TestCalculateConfluenceScoreDeterministic(t *testing.T) {
	bars := models.TimeframeBars{
		models.TFM15: testutil.WaveBars("X", models.TFM15, 120, 100, 0.03, 30),
		models.TFH1:  testutil.TrendBars("X", models.TFH1, 200, 100, 0.001),
		models.TFH4:  testutil.WaveBars("X", models.TFH4, 150, 100, 0.05, 50),
		models.TFD1:  testutil.TrendBars("X", models.TFD1, 90, 100, -0.001),
	}
	s := newTestScorer()
	first := s.CalculateConfluenceScore("X", bars, breakout(), bullishLLM())
	for i := 0; i < 5; i++ {
		again := s.CalculateConfluenceScore("X", bars, breakout(), bullishLLM())
		assert.Equal(t, first, again)
		assert.Equal(t, math.Float64bits(first.TotalScore), math.Float64bits(again.TotalScore))
	}
}

func TestCalculateConfluenceScoreBounds(t *testing.T) {
	cases := map[string]models.TimeframeBars{
		"wave": {models.TFH1: testutil.WaveBars("X", models.TFH1, 120, 100, 0.1, 20)},
		"flat": {models.TFH1: testutil.FlatBars("X", models.TFH1, 80, 50)},
		"mixed": {
			models.TFM15: testutil.TrendBars("X", models.TFM15, 60, 100, 0.01),
			models.TFD1:  testutil.TrendBars("X", models.TFD1, 60, 100, -0.01),
		},
	}
	for name, bars := range cases {
		t.Run(name, func(t *testing.T) {
			got := newTestScorer().CalculateConfluenceScore("X", bars, nil, nil)
			assert.GreaterOrEqual(t, got.TotalScore, 0.0)
			assert.LessOrEqual(t, got.TotalScore, 100.0)
			assert.GreaterOrEqual(t, got.Confidence, 0.0)
			assert.LessOrEqual(t, got.Confidence, 1.0)
			assert.GreaterOrEqual(t, got.RegimeMultiplier, 0.5)
			assert.LessOrEqual(t, got.RegimeMultiplier, 1.5)
			sum := 0.0
			for _, w := range got.TimeframeWeights {
				assert.Greater(t, w, 0.0)
				sum += w
			}
			assert.InDelta(t, 1.0, sum, 1e-6)
		})
	}
}

func TestCalculateConfluenceScoreFlatDegrades(t *testing.T) {
	bars := models.TimeframeBars{models.TFH1: testutil.FlatBars("X", models.TFH1, 80, 50)}
	got := newTestScorer().CalculateConfluenceScore("X", bars, nil, nil)
	assert.False(t, got.Unscorable())
	assert.NotEmpty(t, got.Diagnostics)
	assert.Equal(t, 0.0, got.Components.Volume)
}

func TestCalculateConfluenceScoreUsesCalibrator(t *testing.T) {
	cal := calibration.New(100)
	for i := 0; i < 40; i++ {
		p := 0.5 + float64(i%10)*0.05
		require.NoError(t, cal.AddPrediction(p, false))
	}
	bars := models.TimeframeBars{models.TFH1: testutil.TrendBars("X", models.TFH1, 200, 100, 0.002)}
	got := newTestScorer(WithCalibrator(cal)).CalculateConfluenceScore("X", bars, breakout(), bullishLLM())
	assert.Less(t, got.Confidence, got.RawConfidence)
}

func TestWeightedSum(t *testing.T) {
	w := models.DefaultConfluenceWeights()
	// volatility and volume outweigh a weak bearish trend
	got := weightedSum(models.ComponentScores{Trend: -4, Volatility: 5, Volume: 8}, w)
	assert.InDelta(t, 0.3, got, 1e-12)

	all := models.ComponentScores{Trend: 1, Momentum: 1, Volatility: 1, Volume: 1, Pattern: 1, Qualitative: 1}
	assert.InDelta(t, 1.0, weightedSum(all, w), 1e-12)
}

func TestCalculateConfluenceScoreMatchesWeightedSum(t *testing.T) {
	w, err := models.NewConfluenceWeights(0.2, 0.15, 0.2, 0.2, 0.15, 0.1)
	require.NoError(t, err)
	scorers := map[string]*Scorer{
		"default": newTestScorer(),
		"custom":  newTestScorer(WithWeights(w)),
	}
	for name, s := range scorers {
		for n := 60; n <= 160; n += 7 {
			bars := models.TimeframeBars{models.TFH1: testutil.WaveBars("X", models.TFH1, n, 100, 0.05, 20)}
			got := s.CalculateConfluenceScore("X", bars, nil, nil)
			require.False(t, got.Unscorable())

			signed := weightedSum(got.Components, s.Weights())
			want := models.DirectionShort
			if signed > 0 {
				want = models.DirectionLong
			}
			assert.Equal(t, want, got.Direction, "%s n=%d", name, n)
			assert.InDelta(t, math.Min(100, math.Abs(10*signed*got.RegimeMultiplier)), got.TotalScore, 1e-9, "%s n=%d", name, n)
		}
	}
}

func TestRegimeMultiplier(t *testing.T) {
	tests := []struct {
		name string
		rd   models.RegimeData
		dir  models.Direction
		want float64
	}{
		{"bull aligned", models.RegimeData{Regime: models.RegimeBull, Confidence: 0.5, TrendStrength: 0.5, VolatilityLevel: 0.5}, models.DirectionLong, 1.0 * 1.1},
		{"bull against", models.RegimeData{Regime: models.RegimeBull, Confidence: 0.5, TrendStrength: 0.5, VolatilityLevel: 0.5}, models.DirectionShort, 1.0 * 0.9},
		{"sideways calm", models.RegimeData{Regime: models.RegimeSideways, Confidence: 0.5, VolatilityLevel: 0.1}, models.DirectionLong, 0.9 * 0.95},
		{"bear wild", models.RegimeData{Regime: models.RegimeBear, Confidence: 1, TrendStrength: 1, VolatilityLevel: 0.9}, models.DirectionShort, 1.2 * 1.2 * 0.9},
		{"against bear, low confidence", models.RegimeData{Regime: models.RegimeBear, Confidence: 0, TrendStrength: 1, VolatilityLevel: 0.9}, models.DirectionLong, 0.8 * 0.8 * 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, regimeMultiplier(tt.rd, tt.dir), 1e-12)
		})
	}
	assert.LessOrEqual(t, regimeMultiplier(models.RegimeData{Regime: models.RegimeBull, Confidence: 1, TrendStrength: 1, VolatilityLevel: 0.5}, models.DirectionLong), 1.5)
}
