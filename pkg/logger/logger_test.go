package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel)
	l.Info("scored", String("symbol", "AAPL"), Float("score", 71.5), Int("bars", 200), Error(errors.New("boom")))

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "scored", m["message"])
	assert.Equal(t, "AAPL", m["symbol"])
	assert.Equal(t, 71.5, m["score"])
	assert.Equal(t, float64(200), m["bars"])
	assert.Equal(t, "boom", m["error"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.WarnLevel)
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestCollectorAggregatesRepeats(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Warn("degraded sub-score", String("source", "confluence.volume.ratio"), Error(errors.New("division by zero")))
	}
	l.Error("fetch failed", String("symbol", "AAPL"))
	assert.Equal(t, 2, l.collector.Pending())

	l.RemoveCollector()
	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	batch := pub.batches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, 3, batch[0].Count)
	assert.Equal(t, "warn", batch[0].Level)
}

func TestEntryKeyIgnoresErrorText(t *testing.T) {
	a := entryKey("warn", "m", map[string]interface{}{"source": "x", "error": "a"})
	b := entryKey("warn", "m", map[string]interface{}{"source": "x", "error": "b"})
	c := entryKey("warn", "m", map[string]interface{}{"source": "y"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
