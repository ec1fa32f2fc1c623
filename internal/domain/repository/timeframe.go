package repository

import (
	"strings"

	"FinSignal/internal/domain/models"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf models.Timeframe) bool {
	return tf.Duration() > 0
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() models.Timeframe { return models.TFH1 }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
// Accepts both "H1" and the lowercase short forms "1h", "15m", "1d".
func NormalizeTimeframe(s string) models.Timeframe {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultTimeframe()
	}
	tf := models.Timeframe(strings.ToUpper(s))
	if IsValidTimeframe(tf) {
		return tf
	}
	if alias, ok := timeframeAliases[strings.ToLower(s)]; ok {
		return alias
	}
	return DefaultTimeframe()
}

var timeframeAliases = map[string]models.Timeframe{
	"1m":  models.TFM1,
	"5m":  models.TFM5,
	"15m": models.TFM15,
	"30m": models.TFM30,
	"1h":  models.TFH1,
	"4h":  models.TFH4,
	"1d":  models.TFD1,
	"1w":  models.TFW1,
}

// ParseTimeframes normalizes a list and drops duplicates, keeping first occurrence order.
func ParseTimeframes(raw []string) []models.Timeframe {
	seen := make(map[models.Timeframe]bool, len(raw))
	out := make([]models.Timeframe, 0, len(raw))
	for _, r := range raw {
		tf := NormalizeTimeframe(r)
		if seen[tf] {
			continue
		}
		seen[tf] = true
		out = append(out, tf)
	}
	return out
}
