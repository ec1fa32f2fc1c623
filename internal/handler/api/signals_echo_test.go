package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSignal/internal/domain/models"
	icache "FinSignal/internal/service/cache"
	"FinSignal/internal/usecase"
	xlogger "FinSignal/pkg/logger"
)

type fakePipeline struct {
	runs   int
	scores int
	tfs    []models.Timeframe
	err    error
}

func (p *fakePipeline) Run(_ context.Context, symbol string) (*usecase.Evaluation, error) {
	p.runs++
	if p.err != nil {
		return nil, p.err
	}
	return &usecase.Evaluation{Symbol: symbol, Emitted: true, Signal: &models.Signal{ID: "sig-1", Symbol: symbol, Direction: models.DirectionLong}}, nil
}

func (p *fakePipeline) Score(_ context.Context, symbol string, tfs []models.Timeframe) (*usecase.Evaluation, error) {
	p.scores++
	p.tfs = tfs
	if p.err != nil {
		return &usecase.Evaluation{Symbol: symbol}, p.err
	}
	return &usecase.Evaluation{Symbol: symbol, Score: models.ConfluenceScore{TotalScore: 42}}, nil
}

func (p *fakePipeline) Regime(_ context.Context, symbol string, tf models.Timeframe) (*usecase.RegimeView, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &usecase.RegimeView{Symbol: symbol, Timeframe: tf, Bars: 10, Regime: models.RegimeData{Regime: models.RegimeBull}}, nil
}

type fakeStore struct {
	limit int
	rows  []*models.Signal
}

func (s *fakeStore) Init(context.Context) error                   { return nil }
func (s *fakeStore) Store(context.Context, *models.Signal) error { return nil }
func (s *fakeStore) Recent(_ context.Context, _ string, limit int) ([]*models.Signal, error) {
	s.limit = limit
	return s.rows, nil
}
func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

type fakeRecorder struct {
	got []models.Outcome
	err error
}

func (r *fakeRecorder) Record(o models.Outcome) error {
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, o)
	return nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newServer(h *SignalsEchoHandler) *echo.Echo {
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestSignalEndpoint(t *testing.T) {
	p := &fakePipeline{}
	e := newServer(NewSignalsEchoHandler(xlogger.Nop(), p, nil, &fakeRecorder{}))

	rec, env := do(t, e, http.MethodGet, "/api/signal?symbol=aapl", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var ev usecase.Evaluation
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	assert.Equal(t, "AAPL", ev.Symbol)
	assert.True(t, ev.Emitted)
	require.NotNil(t, ev.Signal)
	assert.Equal(t, "sig-1", ev.Signal.ID)

	rec, _ = do(t, e, http.MethodGet, "/api/signal", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, p.runs)
}

func TestSignalEndpointErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("score X: %w", usecase.ErrNoData), http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("clickhouse down"), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			e := newServer(NewSignalsEchoHandler(xlogger.Nop(), &fakePipeline{err: tc.err}, nil, &fakeRecorder{}))
			rec, env := do(t, e, http.MethodGet, "/api/signal?symbol=X", "")
			assert.Equal(t, tc.want, rec.Code)
			assert.Equal(t, tc.want, env.Status)
		})
	}
}

func TestScoreEndpointCaches(t *testing.T) {
	p := &fakePipeline{}
	cache := icache.NewTTLCache()
	e := newServer(NewSignalsEchoHandler(xlogger.Nop(), p, nil, &fakeRecorder{}, WithScoreCache(cache, time.Minute)))

	for i := 0; i < 2; i++ {
		rec, env := do(t, e, http.MethodGet, "/api/score?symbol=MSFT&tf=h1,4h,H1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var ev usecase.Evaluation
		require.NoError(t, json.Unmarshal(env.Data, &ev))
		assert.Equal(t, 42.0, ev.Score.TotalScore)
	}
	assert.Equal(t, 1, p.scores)
	assert.Equal(t, []models.Timeframe{models.TFH1, models.TFH4}, p.tfs)
	assert.Equal(t, 1, cache.Len())
}

func TestRegimeEndpoint(t *testing.T) {
	e := newServer(NewSignalsEchoHandler(xlogger.Nop(), &fakePipeline{}, nil, &fakeRecorder{}))

	rec, env := do(t, e, http.MethodGet, "/api/regime?symbol=BTCUSD&tf=4h", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "private, max-age=15", rec.Header().Get(echo.HeaderCacheControl))
	var view usecase.RegimeView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, models.TFH4, view.Timeframe)
	assert.Equal(t, models.RegimeBull, view.Regime.Regime)
}

func TestRecentEndpoint(t *testing.T) {
	store := &fakeStore{rows: []*models.Signal{{ID: "a"}, {ID: "b"}}}
	e := newServer(NewSignalsEchoHandler(xlogger.Nop(), &fakePipeline{}, store, &fakeRecorder{}))

	rec, env := do(t, e, http.MethodGet, "/api/signals/recent?symbol=AAPL", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, store.limit)
	var list struct {
		Rows  []models.Signal `json:"rows"`
		Total int64           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Rows, 2)
	assert.EqualValues(t, 2, list.Total)

	rec, _ = do(t, e, http.MethodGet, "/api/signals/recent?symbol=AAPL&limit=1000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e = newServer(NewSignalsEchoHandler(xlogger.Nop(), &fakePipeline{}, nil, &fakeRecorder{}))
	rec, _ = do(t, e, http.MethodGet, "/api/signals/recent?symbol=AAPL", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOutcomeEndpoint(t *testing.T) {
	r := &fakeRecorder{}
	h := NewSignalsEchoHandler(xlogger.Nop(), &fakePipeline{}, nil, r)
	fixed := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }
	e := newServer(h)

	rec, _ := do(t, e, http.MethodPost, "/api/outcome", `{"signal_id":"s1","symbol":"aapl","confidence":0.7,"success":true}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, r.got, 1)
	assert.Equal(t, "AAPL", r.got[0].Symbol)
	assert.Equal(t, fixed, r.got[0].ClosedAt)

	rec, _ = do(t, e, http.MethodPost, "/api/outcome", `{"signal_id":"s2","symbol":"AAPL","confidence":1.4}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/outcome", `{"signal_id":"s4","symbol":"AAPL","confidence":0.7,"raw_confidence":0.52}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, r.got, 2)
	require.NotNil(t, r.got[1].RawConfidence)
	assert.Equal(t, 0.52, r.got[1].Predicted())

	rec, _ = do(t, e, http.MethodPost, "/api/outcome", `{"signal_id":"s5","symbol":"AAPL","confidence":0.7,"raw_confidence":1.2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	r.err = errors.New("invalid prediction")
	rec, _ = do(t, e, http.MethodPost, "/api/outcome", `{"signal_id":"s3","symbol":"AAPL","confidence":0.4}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
