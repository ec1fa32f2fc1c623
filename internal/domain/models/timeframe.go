package models

import "time"

// Timeframe represents a bar resolution.
type Timeframe string

const (
	TFM1  Timeframe = "M1"
	TFM5  Timeframe = "M5"
	TFM15 Timeframe = "M15"
	TFM30 Timeframe = "M30"
	TFH1  Timeframe = "H1"
	TFH4  Timeframe = "H4"
	TFD1  Timeframe = "D1"
	TFW1  Timeframe = "W1"
)

// Timeframes lists every supported timeframe, shortest first.
var Timeframes = []Timeframe{TFM1, TFM5, TFM15, TFM30, TFH1, TFH4, TFD1, TFW1}

// Duration returns the wall-clock span of one bar, or 0 for unknown timeframes.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TFM1:
		return time.Minute
	case TFM5:
		return 5 * time.Minute
	case TFM15:
		return 15 * time.Minute
	case TFM30:
		return 30 * time.Minute
	case TFH1:
		return time.Hour
	case TFH4:
		return 4 * time.Hour
	case TFD1:
		return 24 * time.Hour
	case TFW1:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// IsLong reports whether tf belongs to the higher-timeframe group (H4 and above).
func (tf Timeframe) IsLong() bool {
	return tf.Duration() >= 4*time.Hour
}

// Rank orders timeframes shortest first; unknown timeframes sort last.
func (tf Timeframe) Rank() int {
	for i, t := range Timeframes {
		if t == tf {
			return i
		}
	}
	return len(Timeframes)
}

func (tf Timeframe) String() string { return string(tf) }
