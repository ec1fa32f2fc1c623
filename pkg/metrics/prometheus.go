package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signals     *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	score       *prometheus.GaugeVec
	confidence  *prometheus.GaugeVec
	diagnostics *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers the collectors with the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with reg, e.g. a fresh registry per test.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_signals_total",
				Help: "Accepted signals by symbol and direction",
			},
			[]string{"symbol", "direction"},
		),
		rejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_rejections_total",
				Help: "Scores that did not pass the signal gate",
			},
			[]string{"symbol"},
		),
		score: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finsignal_confluence_score",
				Help: "Latest confluence score per symbol",
			},
			[]string{"symbol"},
		),
		confidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finsignal_confidence",
				Help: "Latest calibrated confidence per symbol",
			},
			[]string{"symbol"},
		),
		diagnostics: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_diagnostics_total",
				Help: "Sub-computations that degraded to a neutral value",
			},
			[]string{"source"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finsignal_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordSignal(symbol, direction string) {
	r.signals.WithLabelValues(symbol, direction).Inc()
}

func (r *Recorder) RecordRejection(symbol string) {
	r.rejections.WithLabelValues(symbol).Inc()
}

// RecordScore stores the latest score and confidence for a symbol.
func (r *Recorder) RecordScore(symbol string, score, confidence float64) {
	r.score.WithLabelValues(symbol).Set(score)
	r.confidence.WithLabelValues(symbol).Set(confidence)
}

func (r *Recorder) RecordDiagnostic(source string) {
	r.diagnostics.WithLabelValues(source).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
