package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSignal/internal/domain/models"
	"FinSignal/internal/service/cache"
	"FinSignal/internal/testutil"
	"FinSignal/pkg/config"
)

func newBase(url string, retries int) *HTTPServiceBase {
	return NewHTTPServiceBase(config.AnalyticsConfig{ServiceURL: url + "/", Timeout: time.Second, Retries: retries})
}

func TestPatternDetectorSanitizesReply(t *testing.T) {
	var got patternRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/patterns/detect", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"patterns":[
            {"name":"bull flag","type":"continuation","bias":"BULLISH","confidence":1.4,"strength":12,"historical_win_rate":0.6},
            {"name":"","type":"breakout","bias":"bullish","confidence":0.5,"strength":5},
            {"name":"doji","type":"candlestick","bias":"sideways","confidence":-0.2,"strength":3,"target_price":"-1"}
        ]}`))
	}))
	defer srv.Close()

	bars := testutil.TrendBars("BTCUSD", models.TFH1, 120, 100, 0.002)
	d := NewHTTPPatternDetector(newBase(srv.URL, 0), 100)
	pc, err := d.Detect(context.Background(), "BTCUSD", models.TFH1, bars)
	require.NoError(t, err)

	assert.Equal(t, "H1", got.Timeframe)
	assert.Len(t, got.Bars, 100, "only the most recent bars are sent")
	assert.InDelta(t, bars[119].Close.InexactFloat64(), got.Bars[99].C, 1e-9)

	require.Len(t, pc.Patterns, 2)
	flag := pc.Patterns[0]
	assert.Equal(t, models.PatternContinuation, flag.Type)
	assert.Equal(t, models.BiasBullish, flag.Bias)
	assert.Equal(t, 1.0, flag.Confidence)
	assert.Equal(t, 10.0, flag.Strength)
	assert.Equal(t, models.TFH1, flag.Timeframe)

	doji := pc.Patterns[1]
	assert.Equal(t, models.BiasNeutral, doji.Bias)
	assert.Equal(t, 0.0, doji.Confidence)
	assert.Nil(t, doji.TargetPrice)
}

func TestPostJSONWithRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"patterns":[]}`))
	}))
	defer srv.Close()

	d := NewHTTPPatternDetector(newBase(srv.URL, 2), 50)
	_, err := d.Detect(context.Background(), "BTCUSD", models.TFH4, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestPostJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewHTTPPatternDetector(newBase(srv.URL, 3), 50)
	_, err := d.Detect(context.Background(), "BTCUSD", models.TFH4, nil)
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestPostJSONRequiresURL(t *testing.T) {
	d := NewHTTPPatternDetector(newBase("", 0), 50)
	_, err := d.Detect(context.Background(), "BTCUSD", models.TFH4, nil)
	assert.Error(t, err)
}

func TestQualitativeAnalyzerCachesPerLatestBar(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var req qualitativeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Timeframes["H1"], 30)
		_, _ = w.Write([]byte(`{"bullish_score":11,"bearish_score":2,"confidence":0.8,"insights":["volume rising"]}`))
	}))
	defer srv.Close()

	a := NewHTTPQualitativeAnalyzer(newBase(srv.URL, 0), 30, cache.NewTTLCache(), time.Minute)
	bars := models.TimeframeBars{models.TFH1: testutil.TrendBars("BTCUSD", models.TFH1, 60, 100, 0.001)}

	llm, err := a.Analyze(context.Background(), "BTCUSD", bars)
	require.NoError(t, err)
	assert.Equal(t, 10.0, llm.BullishScore)
	assert.Equal(t, []string{"volume rising"}, llm.Insights)

	again, err := a.Analyze(context.Background(), "BTCUSD", bars)
	require.NoError(t, err)
	assert.Equal(t, llm, again)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	bars[models.TFH1] = testutil.TrendBars("BTCUSD", models.TFH1, 61, 100, 0.001)
	_, err = a.Analyze(context.Background(), "BTCUSD", bars)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	base := NewHTTPServiceBase(config.AnalyticsConfig{
		ServiceURL:      srv.URL,
		Timeout:         time.Second,
		BreakerFailures: 2,
		BreakerTimeout:  time.Minute,
	})
	d := NewHTTPPatternDetector(base, 50)
	for i := 0; i < 2; i++ {
		_, err := d.Detect(context.Background(), "BTCUSD", models.TFH1, nil)
		require.Error(t, err)
	}
	_, err := d.Detect(context.Background(), "BTCUSD", models.TFH1, nil)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
