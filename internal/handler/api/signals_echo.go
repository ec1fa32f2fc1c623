package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	icache "FinSignal/internal/service/cache"
	"FinSignal/internal/service/metrics"
	"FinSignal/internal/usecase"
	xhttp "FinSignal/pkg/http"
	xlogger "FinSignal/pkg/logger"
)

// Pipeline is the part of the signal pipeline the API drives.
type Pipeline interface {
	Run(ctx context.Context, symbol string) (*usecase.Evaluation, error)
	Score(ctx context.Context, symbol string, tfs []models.Timeframe) (*usecase.Evaluation, error)
	Regime(ctx context.Context, symbol string, tf models.Timeframe) (*usecase.RegimeView, error)
}

// OutcomeRecorder applies a realised outcome to calibration.
type OutcomeRecorder interface {
	Record(o models.Outcome) error
}

type signalRequest struct {
	Symbol string `query:"symbol" validate:"required,max=32"`
}

type scoreRequest struct {
	Symbol string `query:"symbol" validate:"required,max=32"`
	TF     string `query:"tf"`
}

type regimeRequest struct {
	Symbol string `query:"symbol" validate:"required,max=32"`
	TF     string `query:"tf" default:"H1"`
}

type recentRequest struct {
	Symbol string `query:"symbol" validate:"required,max=32"`
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=500"`
}

type outcomeRequest struct {
	SignalID      string    `json:"signal_id" validate:"required"`
	Symbol        string    `json:"symbol" validate:"required,max=32"`
	Confidence    float64   `json:"confidence" validate:"gte=0,lte=1"`
	RawConfidence *float64  `json:"raw_confidence" validate:"omitempty,gte=0,lte=1"`
	Success       bool      `json:"success"`
	ClosedAt      time.Time `json:"closed_at"`
}

// SignalsEchoHandler serves the signal API under /api.
type SignalsEchoHandler struct {
	logger   *xlogger.Logger
	pipeline Pipeline
	store    domrepo.SignalStore
	outcomes OutcomeRecorder
	cache    icache.BytesCache
	cacheTTL time.Duration
	now      func() time.Time
}

type Option func(*SignalsEchoHandler)

// WithScoreCache caches /api/score responses for ttl.
func WithScoreCache(c icache.BytesCache, ttl time.Duration) Option {
	return func(h *SignalsEchoHandler) {
		h.cache = c
		h.cacheTTL = ttl
	}
}

func NewSignalsEchoHandler(logger *xlogger.Logger, pipeline Pipeline, store domrepo.SignalStore, outcomes OutcomeRecorder, opts ...Option) *SignalsEchoHandler {
	metrics.Register()
	h := &SignalsEchoHandler{logger: logger, pipeline: pipeline, store: store, outcomes: outcomes, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signal", h.Signal)
	g.GET("/score", h.Score)
	g.GET("/regime", h.Regime)
	g.GET("/signals/recent", h.Recent)
	g.POST("/outcome", h.Outcome)
}

// Signal runs the full pipeline for a symbol and emits an accepted signal.
func (h *SignalsEchoHandler) Signal(c echo.Context) error {
	defer observe("signal", time.Now())
	req := &signalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ev, err := h.pipeline.Run(c.Request().Context(), normalizeSymbol(req.Symbol))
	if err != nil {
		return h.usecaseError(c, "signal", err)
	}
	return xhttp.SuccessResponse(c, ev)
}

// Score evaluates a symbol without emitting. tf is an optional comma separated list.
func (h *SignalsEchoHandler) Score(c echo.Context) error {
	defer observe("score", time.Now())
	req := &scoreRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := normalizeSymbol(req.Symbol)
	var tfs []models.Timeframe
	if req.TF != "" {
		tfs = domrepo.ParseTimeframes(strings.Split(req.TF, ","))
	}

	ctx := c.Request().Context()
	key := scoreKey(symbol, tfs)
	if b, ok := h.cached(ctx, key); ok {
		metrics.CacheHits.WithLabelValues("score").Inc()
		return xhttp.SuccessResponse(c, json.RawMessage(b))
	}

	ev, err := h.pipeline.Score(ctx, symbol, tfs)
	if err != nil {
		return h.usecaseError(c, "score", err)
	}
	h.storeCached(ctx, key, ev)
	return xhttp.SuccessResponse(c, ev)
}

func (h *SignalsEchoHandler) Regime(c echo.Context) error {
	defer observe("regime", time.Now())
	req := &regimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	view, err := h.pipeline.Regime(c.Request().Context(), normalizeSymbol(req.Symbol), tf)
	if err != nil {
		return h.usecaseError(c, "regime", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, view)
}

// Recent lists the latest audited signals for a symbol, newest first.
func (h *SignalsEchoHandler) Recent(c echo.Context) error {
	defer observe("recent", time.Now())
	req := &recentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.store == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("signal store disabled"))
	}

	rows, err := h.store.Recent(c.Request().Context(), normalizeSymbol(req.Symbol), req.Limit)
	if err != nil {
		h.logger.Error("recent signals error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("signal store unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Outcome feeds a realised outcome into calibration.
func (h *SignalsEchoHandler) Outcome(c echo.Context) error {
	defer observe("outcome", time.Now())
	req := &outcomeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	o := models.Outcome{
		SignalID:      req.SignalID,
		Symbol:        normalizeSymbol(req.Symbol),
		Confidence:    req.Confidence,
		RawConfidence: req.RawConfidence,
		Success:       req.Success,
		ClosedAt:      req.ClosedAt,
	}
	if o.ClosedAt.IsZero() {
		o.ClosedAt = h.now().UTC()
	}
	if err := h.outcomes.Record(o); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.UnprocessableErrorf("outcome rejected").WithError(err))
	}
	return xhttp.AcceptedResponse(c, o)
}

func (h *SignalsEchoHandler) usecaseError(c echo.Context, endpoint string, err error) error {
	if errors.Is(err, usecase.ErrNoData) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no bars for symbol").WithError(err))
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("evaluation timed out").WithError(err))
	}
	h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("bar store unavailable").WithError(err))
}

func (h *SignalsEchoHandler) cached(ctx context.Context, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(ctx, key)
	if err != nil {
		h.logger.Warn("score cache get error", xlogger.String("key", key), xlogger.Error(err))
		return nil, false
	}
	return b, ok
}

func (h *SignalsEchoHandler) storeCached(ctx context.Context, key string, ev *usecase.Evaluation) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("score marshal error", xlogger.Error(err))
		return
	}
	if err := h.cache.SetBytes(ctx, key, b, h.cacheTTL); err != nil {
		h.logger.Warn("score cache set error", xlogger.String("key", key), xlogger.Error(err))
	}
}

func scoreKey(symbol string, tfs []models.Timeframe) string {
	parts := make([]string, len(tfs))
	for i, tf := range tfs {
		parts[i] = string(tf)
	}
	return "score:" + symbol + ":" + strings.Join(parts, ",")
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func observe(endpoint string, start time.Time) {
	metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
