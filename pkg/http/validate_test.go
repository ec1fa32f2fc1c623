package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=100"`
}

type outcomeBody struct {
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

func ctxFor(method, target, body string) echo.Context {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestReadAndValidateRequestDefaults(t *testing.T) {
	var req scanRequest
	errs := ReadAndValidateRequest(ctxFor(http.MethodGet, "/?symbol=BTCUSD", ""), &req)
	assert.Nil(t, errs)
	assert.Equal(t, "BTCUSD", req.Symbol)
	assert.Equal(t, 20, req.Limit)
}

func TestReadAndValidateRequestReportsFieldNames(t *testing.T) {
	var req scanRequest
	errs := ReadAndValidateRequest(ctxFor(http.MethodGet, "/?limit=500", ""), &req)
	require.Len(t, errs, 2)
	assert.Equal(t, "symbol", errs[0].Field)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "limit", errs[1].Field)
	assert.Equal(t, "100", errs[1].Params["max"])
}

func TestReadAndValidateRequestBody(t *testing.T) {
	var body outcomeBody
	errs := ReadAndValidateRequest(ctxFor(http.MethodPost, "/", `{"confidence":1.5}`), &body)
	require.Len(t, errs, 1)
	assert.Equal(t, "confidence", errs[0].Field)

	errs = ReadAndValidateRequest(ctxFor(http.MethodPost, "/", `{"confidence":`), &body)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_UNKNOWN", errs[0].Code)
}

func TestStatusErrorRetryable(t *testing.T) {
	assert.True(t, (&StatusError{Code: 503}).Retryable())
	assert.True(t, (&StatusError{Code: 429}).Retryable())
	assert.False(t, (&StatusError{Code: 404}).Retryable())
}
