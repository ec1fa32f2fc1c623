// Package calibration maps raw confidences onto historically observed success rates.
package calibration

import (
	"errors"
	"fmt"
	"math"

	"FinSignal/internal/domain/models"
)

const (
	DefaultCapacity = 100

	minSamples   = 10
	minNeighbors = 5
	neighborBand = 0.1
	maxAlpha     = 0.7
)

var ErrInvalidPrediction = errors.New("invalid prediction")

// Calibrator keeps a fixed-capacity window of (predicted, outcome) pairs.
// The global estimate is an ordinary least squares line of outcome on prediction,
// maintained through running sums so it never rescans the window.
//
// A Calibrator is not safe for concurrent use.
type Calibrator struct {
	buf  []models.CalibrationSample
	head int
	n    int

	sx, sy, sxx, sxy float64
}

func New(capacity int) *Calibrator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Calibrator{buf: make([]models.CalibrationSample, capacity)}
}

func (c *Calibrator) Len() int      { return c.n }
func (c *Calibrator) Capacity() int { return len(c.buf) }

// AddPrediction records an outcome, evicting the oldest sample once full.
func (c *Calibrator) AddPrediction(predicted float64, success bool) error {
	if math.IsNaN(predicted) || predicted < 0 || predicted > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidPrediction, predicted)
	}
	s := models.CalibrationSample{Predicted: predicted, Success: success}
	if c.n == len(c.buf) {
		c.remove(c.buf[c.head])
	} else {
		c.n++
	}
	c.buf[c.head] = s
	c.head = (c.head + 1) % len(c.buf)
	c.include(s)
	return nil
}

// CalibrateConfidence returns raw unchanged until enough samples exist, or on any numeric fault.
func (c *Calibrator) CalibrateConfidence(raw float64) float64 {
	if c.n < minSamples || math.IsNaN(raw) || math.IsInf(raw, 0) {
		return raw
	}

	global, ok := c.global(raw)
	if !ok {
		return raw
	}

	hits, count := 0.0, 0
	c.each(func(s models.CalibrationSample) {
		if math.Abs(s.Predicted-raw) <= neighborBand {
			count++
			hits += outcome(s)
		}
	})
	if count < minNeighbors {
		return global
	}

	local := hits / float64(count)
	alpha := math.Min(maxAlpha, float64(count)/20)
	out := alpha*local + (1-alpha)*global
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return raw
	}
	return out
}

// Snapshot returns the window oldest first.
func (c *Calibrator) Snapshot() []models.CalibrationSample {
	out := make([]models.CalibrationSample, 0, c.n)
	c.each(func(s models.CalibrationSample) { out = append(out, s) })
	return out
}

// Restore replaces the window. Only the newest Capacity() valid samples are kept.
func (c *Calibrator) Restore(samples []models.CalibrationSample) {
	c.head, c.n = 0, 0
	c.sx, c.sy, c.sxx, c.sxy = 0, 0, 0, 0
	for _, s := range samples {
		_ = c.AddPrediction(s.Predicted, s.Success)
	}
}

func (c *Calibrator) global(raw float64) (float64, bool) {
	n := float64(c.n)
	den := n*c.sxx - c.sx*c.sx
	// running sums drift, so a near-zero prediction variance counts as degenerate
	if math.IsNaN(den) || den/(n*n) < 1e-12 {
		return 0, false
	}
	slope := (n*c.sxy - c.sx*c.sy) / den
	intercept := (c.sy - slope*c.sx) / n
	v := intercept + slope*raw
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return math.Max(0.01, math.Min(0.99, v)), true
}

func (c *Calibrator) each(fn func(models.CalibrationSample)) {
	start := (c.head - c.n + len(c.buf)) % len(c.buf)
	for i := 0; i < c.n; i++ {
		fn(c.buf[(start+i)%len(c.buf)])
	}
}

func (c *Calibrator) include(s models.CalibrationSample) {
	y := outcome(s)
	c.sx += s.Predicted
	c.sy += y
	c.sxx += s.Predicted * s.Predicted
	c.sxy += s.Predicted * y
}

func (c *Calibrator) remove(s models.CalibrationSample) {
	y := outcome(s)
	c.sx -= s.Predicted
	c.sy -= y
	c.sxx -= s.Predicted * s.Predicted
	c.sxy -= s.Predicted * y
}

func outcome(s models.CalibrationSample) float64 {
	if s.Success {
		return 1
	}
	return 0
}
