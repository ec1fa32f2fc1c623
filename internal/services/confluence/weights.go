package confluence

import "FinSignal/internal/domain/models"

var baseTimeframeWeights = map[models.Timeframe]float64{
	models.TFM1:  0.05,
	models.TFM5:  0.10,
	models.TFM15: 0.15,
	models.TFM30: 0.20,
	models.TFH1:  0.35,
	models.TFH4:  0.35,
	models.TFD1:  0.15,
	models.TFW1:  0.10,
}

const fallbackTimeframeWeight = 0.10

// TimeframeWeights returns renormalised weights for the given timeframes, biased by regime and
// volatility. Every weight is positive and they sum to 1.
func TimeframeWeights(tfs []models.Timeframe, rd models.RegimeData) map[models.Timeframe]float64 {
	out := make(map[models.Timeframe]float64, len(tfs))
	if len(tfs) == 0 {
		return out
	}
	total := 0.0
	for _, tf := range tfs {
		w, ok := baseTimeframeWeights[tf]
		if !ok {
			w = fallbackTimeframeWeight
		}
		w *= regimeBias(tf, rd.Regime) * volatilityBias(tf, rd.VolatilityLevel)
		out[tf] = w
		total += w
	}
	for tf := range out {
		out[tf] /= total
	}
	return out
}

func regimeBias(tf models.Timeframe, r models.Regime) float64 {
	switch r {
	case models.RegimeBull:
		if tf.IsLong() {
			return 1.2
		}
		return 0.9
	case models.RegimeBear:
		if tf.IsLong() {
			return 0.9
		}
		return 1.2
	default:
		return 1
	}
}

func volatilityBias(tf models.Timeframe, level float64) float64 {
	switch {
	case level > 0.7:
		if tf.IsLong() {
			return 0.95
		}
		return 1.1
	case level < 0.3:
		if tf.IsLong() {
			return 1.1
		}
		return 0.95
	default:
		return 1
	}
}

// primaryTimeframe prefers H1, then H4, then D1, else the first usable timeframe.
func primaryTimeframe(usable []models.Timeframe) models.Timeframe {
	for _, want := range []models.Timeframe{models.TFH1, models.TFH4, models.TFD1} {
		for _, tf := range usable {
			if tf == want {
				return tf
			}
		}
	}
	return usable[0]
}
