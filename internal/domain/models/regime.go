package models

// Regime is the prevailing trend character of a symbol.
type Regime string

const (
	RegimeBull     Regime = "BULL"
	RegimeBear     Regime = "BEAR"
	RegimeSideways Regime = "SIDEWAYS"
)

// RegimeData is recomputed on every call and never persisted.
type RegimeData struct {
	Regime               Regime       `json:"regime"`
	Confidence           float64      `json:"confidence"`
	TrendStrength        float64      `json:"trend_strength"`
	VolatilityLevel      float64      `json:"volatility_level"`
	VolumeTrend          float64      `json:"volume_trend"`
	EMAAlignment         float64      `json:"ema_alignment"`
	PriceMomentum        float64      `json:"price_momentum"`
	VolatilityPercentile float64      `json:"volatility_percentile"`
	Diagnostics          []Diagnostic `json:"diagnostics,omitempty"`
}

// NeutralRegime is returned when there is not enough data to classify.
func NeutralRegime() RegimeData {
	return RegimeData{
		Regime:               RegimeSideways,
		Confidence:           0.5,
		VolatilityPercentile: 0.5,
	}
}
