package analytics

import (
	"math"
	"time"

	"FinSignal/internal/domain/models"
)

// wireBar is the float encoding of a bar sent to the analytics services.
type wireBar struct {
	T time.Time `json:"t"`
	O float64   `json:"o"`
	H float64   `json:"h"`
	L float64   `json:"l"`
	C float64   `json:"c"`
	V float64   `json:"v"`
}

func toWire(bars []models.MarketBar) []wireBar {
	out := make([]wireBar, len(bars))
	for i, b := range bars {
		out[i] = wireBar{
			T: b.Timestamp,
			O: b.Open.InexactFloat64(),
			H: b.High.InexactFloat64(),
			L: b.Low.InexactFloat64(),
			C: b.Close.InexactFloat64(),
			V: b.Volume.InexactFloat64(),
		}
	}
	return out
}

func tail(bars []models.MarketBar, n int) []models.MarketBar {
	if n > 0 && len(bars) > n {
		return bars[len(bars)-n:]
	}
	return bars
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
