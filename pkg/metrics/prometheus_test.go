package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordSignal("AAPL", "LONG")
	r.RecordSignal("AAPL", "LONG")
	r.RecordRejection("MSFT")
	r.RecordScore("AAPL", 72.5, 0.81)
	r.RecordDiagnostic("confluence.volume.ratio")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.signals.WithLabelValues("AAPL", "LONG")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejections.WithLabelValues("MSFT")))
	assert.Equal(t, 72.5, testutil.ToFloat64(r.score.WithLabelValues("AAPL")))
	assert.Equal(t, 0.81, testutil.ToFloat64(r.confidence.WithLabelValues("AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.diagnostics.WithLabelValues("confluence.volume.ratio")))
}
