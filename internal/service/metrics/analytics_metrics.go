package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// UpstreamLatency times calls to the pattern and qualitative services.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finsignal",
			Subsystem: "analytics",
			Name:      "upstream_latency_seconds",
			Help:      "Latency of calls to external analytics services",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	UpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsignal",
			Subsystem: "analytics",
			Name:      "upstream_errors_total",
			Help:      "Failed calls to external analytics services",
		},
		[]string{"service"},
	)

	// BreakerState is the gobreaker state per service: 0 closed, 1 half-open, 2 open.
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "finsignal",
			Subsystem: "analytics",
			Name:      "breaker_state",
			Help:      "Circuit breaker state of external analytics services",
		},
		[]string{"service"},
	)

	EndpointLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finsignal",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of signal API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finsignal",
			Subsystem: "api",
			Name:      "cache_hits_total",
			Help:      "Responses served from cache",
		},
		[]string{"endpoint"},
	)
)

// Register adds the collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(UpstreamLatency, UpstreamErrors, BreakerState, EndpointLatency, CacheHits)
	})
}
