// Package testutil builds deterministic bar fixtures for tests.
package testutil

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"FinSignal/internal/domain/models"
)

// Epoch is the timestamp of the first fixture bar.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// TrendBars returns n bars whose close moves by step (relative, e.g. 0.002) each bar.
// Volume is constant so volume-driven terms stay neutral.
func TrendBars(symbol string, tf models.Timeframe, n int, start, step float64) []models.MarketBar {
	bars := make([]models.MarketBar, 0, n)
	prev := start
	for i := 0; i < n; i++ {
		cl := prev * (1 + step)
		bars = append(bars, bar(symbol, tf, i, prev, cl, 1000))
		prev = cl
	}
	return bars
}

// WaveBars oscillates around start with the given relative amplitude and period.
func WaveBars(symbol string, tf models.Timeframe, n int, start, amp float64, period int) []models.MarketBar {
	bars := make([]models.MarketBar, 0, n)
	prev := start
	for i := 0; i < n; i++ {
		cl := start * (1 + amp*math.Sin(2*math.Pi*float64(i+1)/float64(period)))
		bars = append(bars, bar(symbol, tf, i, prev, cl, 1000+float64(i%7)*10))
		prev = cl
	}
	return bars
}

// FlatBars returns n identical bars with zero range.
func FlatBars(symbol string, tf models.Timeframe, n int, price float64) []models.MarketBar {
	bars := make([]models.MarketBar, 0, n)
	p := decimal.NewFromFloat(price)
	for i := 0; i < n; i++ {
		bars = append(bars, models.MarketBar{
			Symbol:    symbol,
			Timeframe: tf,
			Timestamp: Epoch.Add(time.Duration(i) * tf.Duration()),
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
			Volume:    decimal.Zero,
		})
	}
	return bars
}

func bar(symbol string, tf models.Timeframe, i int, open, cl, vol float64) models.MarketBar {
	hi := math.Max(open, cl) * 1.001
	lo := math.Min(open, cl) * 0.999
	return models.MarketBar{
		Symbol:    symbol,
		Timeframe: tf,
		Timestamp: Epoch.Add(time.Duration(i) * tf.Duration()),
		Open:      round(open),
		High:      round(hi),
		Low:       round(lo),
		Close:     round(cl),
		Volume:    decimal.NewFromFloat(vol),
	}
}

func round(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(6)
}

// Closes extracts close prices.
func Closes(bars []models.MarketBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close.InexactFloat64()
	}
	return out
}
