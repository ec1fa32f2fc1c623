package confluence

import (
	"fmt"
	"math"

	"FinSignal/internal/domain/models"
)

const maxFactors = 5

type namedScore struct {
	name  string
	score float64
}

func factors(s models.ConfluenceScore, llm *models.LLMAnalysis) (key, risk []string) {
	comps := []namedScore{
		{"trend", s.Components.Trend},
		{"momentum", s.Components.Momentum},
		{"volatility", s.Components.Volatility},
		{"volume", s.Components.Volume},
		{"pattern", s.Components.Pattern},
	}
	if llm != nil {
		comps = append(comps, namedScore{"qualitative", s.Components.Qualitative})
	}
	for _, c := range comps {
		switch a := math.Abs(c.score); {
		case a > 5:
			key = append(key, fmt.Sprintf("Strong %s signal (%.1f)", c.name, c.score))
		case a < 2:
			risk = append(risk, fmt.Sprintf("Weak %s signal (%.1f)", c.name, c.score))
		}
	}

	rd := s.Regime
	switch {
	case rd.Regime == models.RegimeSideways:
		risk = append(risk, "Sideways market regime")
	case withRegime(rd.Regime, s.Direction):
		key = append(key, fmt.Sprintf("%s regime (confidence %.2f)", rd.Regime, rd.Confidence))
	default:
		risk = append(risk, fmt.Sprintf("Counter-regime %s signal in %s market", s.Direction, rd.Regime))
	}
	if rd.VolatilityLevel > 0.7 {
		risk = append(risk, fmt.Sprintf("Elevated volatility (%.2f)", rd.VolatilityLevel))
	}

	if tf, w := dominant(s.TimeframeWeights); tf != "" {
		key = append(key, fmt.Sprintf("Dominant timeframe %s (weight %.2f)", tf, w))
	}

	if llm != nil {
		key = append(key, head(llm.Insights, 2)...)
		risk = append(risk, head(llm.Risks, 2)...)
	}
	return truncate(key), truncate(risk)
}

// dominant picks the heaviest timeframe; ties go to the shorter one.
func dominant(ws map[models.Timeframe]float64) (models.Timeframe, float64) {
	var best models.Timeframe
	bw := 0.0
	for _, tf := range models.Timeframes {
		if w, ok := ws[tf]; ok && w > bw {
			best, bw = tf, w
		}
	}
	return best, bw
}

func withRegime(r models.Regime, d models.Direction) bool {
	return (r == models.RegimeBull && d == models.DirectionLong) ||
		(r == models.RegimeBear && d == models.DirectionShort)
}

func head(xs []string, n int) []string {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}

func truncate(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	if len(xs) > maxFactors {
		return xs[:maxFactors]
	}
	return xs
}
