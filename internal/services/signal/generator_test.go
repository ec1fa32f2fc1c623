package signal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/services/confluence"
	"FinSignal/internal/services/indicators"
	"FinSignal/internal/services/regime"
	"FinSignal/internal/testutil"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type stubScorer struct{ score models.ConfluenceScore }

func (s stubScorer) CalculateConfluenceScore(symbol string, _ models.TimeframeBars, _ models.TimeframePatterns, _ *models.LLMAnalysis) models.ConfluenceScore {
	out := s.score
	out.Symbol = symbol
	return out
}

func stubScore(total, conf float64, dir models.Direction) models.ConfluenceScore {
	return models.ConfluenceScore{
		TotalScore:       total,
		Confidence:       conf,
		Direction:        dir,
		PrimaryTimeframe: models.TFH1,
		Regime:           models.NeutralRegime(),
		TimeframeWeights: map[models.Timeframe]float64{models.TFH1: 1},
		TimeframeScores:  map[models.Timeframe]models.ComponentScores{models.TFH1: {Trend: 5, Momentum: -3}},
	}
}

func h1Bars(n int, step float64) models.TimeframeBars {
	return models.TimeframeBars{models.TFH1: testutil.TrendBars("X", models.TFH1, n, 100, step)}
}

func TestGenerateSignalThreshold(t *testing.T) {
	tests := []struct {
		name   string
		total  float64
		conf   float64
		accept bool
	}{
		{"low confidence", 80, 0.29, false},
		{"low score", 19.99, 0.9, false},
		{"both low", 5, 0.1, false},
		{"at thresholds", 20, 0.3, true},
		{"strong", 85, 0.8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(stubScorer{stubScore(tt.total, tt.conf, models.DirectionLong)}, WithClock(func() time.Time { return fixedNow }))
			sig := g.GenerateSignal("X", h1Bars(60, 0.002), nil, nil)
			if !tt.accept {
				assert.Nil(t, sig)
				assert.NotEmpty(t, RejectionReason(stubScore(tt.total, tt.conf, models.DirectionLong)))
				return
			}
			require.NotNil(t, sig)
			assert.Empty(t, RejectionReason(stubScore(tt.total, tt.conf, models.DirectionLong)))
		})
	}
}

func TestGenerateSignalRejectsSentinel(t *testing.T) {
	g := NewGenerator(stubScorer{models.ErrorScore("X")})
	sig, score := g.Evaluate("X", nil, nil, nil)
	assert.Nil(t, sig)
	assert.True(t, score.Unscorable())
	assert.Contains(t, RejectionReason(score), "insufficient data")
}

func TestGenerateSignalPriceLevels(t *testing.T) {
	for _, dir := range []models.Direction{models.DirectionLong, models.DirectionShort} {
		t.Run(string(dir), func(t *testing.T) {
			bars := h1Bars(60, 0.002)
			g := NewGenerator(stubScorer{stubScore(70, 0.7, dir)}, WithClock(func() time.Time { return fixedNow }))
			sig := g.GenerateSignal("X", bars, nil, nil)
			require.NotNil(t, sig)
			require.NotNil(t, sig.EntryPrice)
			require.NotNil(t, sig.StopLoss)
			require.NotNil(t, sig.TakeProfit)

			last := bars[models.TFH1][59].Close
			assert.True(t, sig.EntryPrice.Equal(last))

			atr, ok := AverageTrueRange(bars[models.TFH1], 14)
			require.True(t, ok)
			if dir == models.DirectionLong {
				assert.True(t, sig.StopLoss.LessThan(*sig.EntryPrice))
				assert.True(t, sig.EntryPrice.LessThan(*sig.TakeProfit))
				assert.True(t, sig.StopLoss.Equal(last.Sub(atr.Mul(decimal.NewFromInt(2)))))
				assert.True(t, sig.TakeProfit.Equal(last.Add(atr.Mul(decimal.NewFromInt(3)))))
			} else {
				assert.True(t, sig.TakeProfit.LessThan(*sig.EntryPrice))
				assert.True(t, sig.EntryPrice.LessThan(*sig.StopLoss))
			}
		})
	}
}

func TestGenerateSignalFewBarsEntryOnly(t *testing.T) {
	g := NewGenerator(stubScorer{stubScore(70, 0.7, models.DirectionLong)})
	sig := g.GenerateSignal("X", h1Bars(10, 0.002), nil, nil)
	require.NotNil(t, sig)
	require.NotNil(t, sig.EntryPrice)
	assert.Nil(t, sig.StopLoss)
	assert.Nil(t, sig.TakeProfit)
}

func TestGenerateSignalFlatRangeHasNoStops(t *testing.T) {
	g := NewGenerator(stubScorer{stubScore(70, 0.7, models.DirectionLong)})
	bars := models.TimeframeBars{models.TFH1: testutil.FlatBars("X", models.TFH1, 30, 10)}
	sig := g.GenerateSignal("X", bars, nil, nil)
	require.NotNil(t, sig)
	assert.NotNil(t, sig.EntryPrice)
	assert.Nil(t, sig.StopLoss)
}

func TestGenerateSignalDropsNonPositiveLevels(t *testing.T) {
	// closes swing 150/100/50/100, so three ATRs below entry is negative
	bars := models.TimeframeBars{models.TFH1: testutil.WaveBars("X", models.TFH1, 30, 100, 0.5, 4)}
	for _, dir := range []models.Direction{models.DirectionShort, models.DirectionLong} {
		g := NewGenerator(stubScorer{stubScore(70, 0.7, dir)})
		sig := g.GenerateSignal("X", bars, nil, nil)
		require.NotNil(t, sig)
		require.NotNil(t, sig.EntryPrice)
		assert.Nil(t, sig.StopLoss, dir)
		assert.Nil(t, sig.TakeProfit, dir)
	}
}

func TestGenerateSignalKeepsRawConfidence(t *testing.T) {
	score := stubScore(70, 0.45, models.DirectionLong)
	score.RawConfidence = 0.8
	sig := NewGenerator(stubScorer{score}).GenerateSignal("X", h1Bars(30, 0.002), nil, nil)
	require.NotNil(t, sig)
	assert.Equal(t, 0.45, sig.Confidence)
	assert.Equal(t, 0.8, sig.RawConfidence)
}

func TestGenerateSignalMetadata(t *testing.T) {
	g := NewGenerator(stubScorer{stubScore(92, 0.8, models.DirectionLong)}, WithClock(func() time.Time { return fixedNow }))
	bars := h1Bars(60, 0.002)
	bars[models.TFD1] = testutil.TrendBars("X", models.TFD1, 5, 100, 0.002)

	a := g.GenerateSignal("X", bars, nil, nil)
	b := g.GenerateSignal("X", bars, nil, nil)
	require.NotNil(t, a)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, fixedNow.Add(4*time.Hour), a.ExpiresAt)
	assert.Equal(t, 5, a.Priority)
	assert.Contains(t, a.Reasoning, "LONG X")

	require.Len(t, a.Analyses, 2)
	assert.Equal(t, models.TFH1, a.Analyses[0].Timeframe)
	assert.Equal(t, "bullish", a.Analyses[0].Trend)
	assert.Equal(t, "bearish", a.Analyses[0].Momentum)
	assert.Equal(t, "insufficient_data", a.Analyses[1].Trend)

	other := g.GenerateSignal("Y", bars, nil, nil)
	require.NotNil(t, other)
	assert.NotEqual(t, a.ID, other.ID)
}

func TestPriority(t *testing.T) {
	cases := map[float64]int{0: 1, 39.9: 1, 40: 2, 59: 2, 60: 3, 74.9: 3, 75: 4, 89: 4, 90: 5, 100: 5}
	for score, want := range cases {
		assert.Equal(t, want, Priority(score), "score %v", score)
	}
}

func TestSelectPatterns(t *testing.T) {
	hit := func(tf models.Timeframe, conf float64) models.PatternHit {
		return models.PatternHit{Name: string(tf), Confidence: conf, Timeframe: tf}
	}
	patterns := models.TimeframePatterns{
		models.TFH1:  {Patterns: []models.PatternHit{hit(models.TFH1, 0.7), hit(models.TFH1, 0.95), hit(models.TFH1, 0.9)}},
		models.TFH4:  {Patterns: []models.PatternHit{hit(models.TFH4, 0.65), hit(models.TFH4, 0.6)}},
		models.TFD1:  {Patterns: []models.PatternHit{hit(models.TFD1, 0.8), hit(models.TFD1, 0.85)}},
		models.TFM15: {Patterns: []models.PatternHit{hit(models.TFM15, 0.99), hit(models.TFM15, 0.61)}},
	}
	got := selectPatterns(patterns)
	require.Len(t, got, 5)
	want := []float64{0.99, 0.95, 0.9, 0.85, 0.8}
	for i, p := range got {
		assert.Equal(t, want[i], p.Confidence)
	}
	assert.Empty(t, selectPatterns(nil))
}

func TestGenerateSignalEndToEnd(t *testing.T) {
	scorer := confluence.NewScorer(indicators.NewDefaultEngine(), regime.NewDetector(regime.DefaultConfig()))
	g := NewGenerator(scorer, WithClock(func() time.Time { return fixedNow }))

	bars := h1Bars(200, 0.002)
	patterns := models.TimeframePatterns{
		models.TFH1: {Timeframe: models.TFH1, Patterns: []models.PatternHit{{
			Name: "flag breakout", Type: models.PatternBreakout, Bias: models.BiasBullish,
			Confidence: 0.85, Strength: 8.2, Timeframe: models.TFH1,
		}}},
	}
	llm := &models.LLMAnalysis{BullishScore: 8.2, BearishScore: 2.8, Confidence: 0.87}

	sig, score := g.Evaluate("AAPL", bars, patterns, llm)
	require.NotNil(t, sig, RejectionReason(score))
	assert.Equal(t, models.DirectionLong, sig.Direction)
	assert.Greater(t, sig.ConfluenceScore, 60.0)
	assert.Greater(t, sig.Confidence, 0.5)
	require.NotNil(t, sig.EntryPrice)
	require.NotNil(t, sig.StopLoss)
	require.NotNil(t, sig.TakeProfit)
	assert.True(t, sig.StopLoss.LessThan(*sig.EntryPrice))
	assert.True(t, sig.EntryPrice.LessThan(*sig.TakeProfit))
	require.Len(t, sig.Patterns, 1)
	assert.Equal(t, llm, sig.Qualitative)
	assert.Equal(t, models.RegimeBull, sig.Regime)
}
