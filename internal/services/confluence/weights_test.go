package confluence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"FinSignal/internal/domain/models"
)

func TestTimeframeWeights(t *testing.T) {
	all := []models.Timeframe{models.TFM15, models.TFH1, models.TFH4, models.TFD1}
	regimes := []models.RegimeData{
		{Regime: models.RegimeSideways, VolatilityLevel: 0.5},
		{Regime: models.RegimeBull, VolatilityLevel: 0.9},
		{Regime: models.RegimeBear, VolatilityLevel: 0.1},
	}
	for _, rd := range regimes {
		ws := TimeframeWeights(all, rd)
		sum := 0.0
		for _, tf := range all {
			assert.Greater(t, ws[tf], 0.0)
			sum += ws[tf]
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	neutral := TimeframeWeights(all, models.RegimeData{Regime: models.RegimeSideways, VolatilityLevel: 0.5})
	assert.InDelta(t, 0.35, neutral[models.TFH1], 1e-12)
	assert.InDelta(t, 0.15, neutral[models.TFM15], 1e-12)

	bull := TimeframeWeights(all, models.RegimeData{Regime: models.RegimeBull, VolatilityLevel: 0.5})
	assert.Greater(t, bull[models.TFH4], bull[models.TFH1])

	bear := TimeframeWeights(all, models.RegimeData{Regime: models.RegimeBear, VolatilityLevel: 0.5})
	assert.Greater(t, bear[models.TFH1], bear[models.TFH4])

	calm := TimeframeWeights(all, models.RegimeData{Regime: models.RegimeSideways, VolatilityLevel: 0.1})
	assert.Greater(t, calm[models.TFD1], calm[models.TFM15])
}

func TestTimeframeWeightsEmpty(t *testing.T) {
	assert.Empty(t, TimeframeWeights(nil, models.NeutralRegime()))
}

func TestPrimaryTimeframe(t *testing.T) {
	assert.Equal(t, models.TFH1, primaryTimeframe([]models.Timeframe{models.TFM15, models.TFH1, models.TFH4}))
	assert.Equal(t, models.TFH4, primaryTimeframe([]models.Timeframe{models.TFM15, models.TFH4, models.TFD1}))
	assert.Equal(t, models.TFD1, primaryTimeframe([]models.Timeframe{models.TFM5, models.TFD1}))
	assert.Equal(t, models.TFM5, primaryTimeframe([]models.Timeframe{models.TFM5, models.TFM15}))
}
