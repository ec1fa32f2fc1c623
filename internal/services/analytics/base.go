package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"FinSignal/internal/service/metrics"
	"FinSignal/pkg/config"
	xhttp "FinSignal/pkg/http"
)

// HTTPServiceBase is the shared JSON POST client for the analytics services.
// Each service gets its own circuit breaker; 4xx replies do not count as failures.
type HTTPServiceBase struct {
	baseURL string
	retries int
	client  *xhttp.Client

	breakerFailures uint32
	breakerTimeout  time.Duration
	mu              sync.Mutex
	breakers        map[string]*gobreaker.CircuitBreaker
}

func NewHTTPServiceBase(cfg config.AnalyticsConfig, opts ...xhttp.ClientOption) *HTTPServiceBase {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)
	return &HTTPServiceBase{
		baseURL:         strings.TrimRight(cfg.ServiceURL, "/"),
		retries:         cfg.Retries,
		client:          xhttp.NewClient(opts...),
		breakerFailures: failures,
		breakerTimeout:  cfg.BreakerTimeout,
		breakers:        make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *HTTPServiceBase) breaker(service string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[service]; ok {
		return cb
	}
	failures := b.breakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: 1,
		Timeout:     b.breakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	b.breakers[service] = cb
	return cb
}

// PostJSON posts payload to path under the base URL and decodes the reply into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, service, path string, payload, dest interface{}) error {
	if b.baseURL == "" {
		return fmt.Errorf("analytics service url not configured")
	}
	start := time.Now()
	_, err := b.breaker(service).Execute(func() (interface{}, error) {
		return nil, b.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: http.MethodPost,
			URL:    b.baseURL + path,
			Body:   payload,
		}, dest)
	})
	metrics.UpstreamLatency.WithLabelValues(service).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues(service).Inc()
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry retries transport failures and retryable statuses with
// exponential backoff. An open circuit fails immediately.
func (b *HTTPServiceBase) PostJSONWithRetry(ctx context.Context, service, path string, payload, dest interface{}) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 50 * time.Millisecond
	eb.MaxInterval = time.Second
	retries := b.retries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)

	return backoff.Retry(func() error {
		err := b.PostJSON(ctx, service, path, payload, dest)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func retryable(err error) bool {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
