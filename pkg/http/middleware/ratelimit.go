package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Allower decides whether a request for key may proceed.
type Allower interface {
	Allow(key string) bool
}

// RateLimit rejects requests with 429 once the client IP's budget is spent.
// Paths in skip are never limited.
func RateLimit(a Allower, skip ...string) echo.MiddlewareFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := skipped[c.Path()]; ok {
				return next(c)
			}
			if !a.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status":  http.StatusTooManyRequests,
					"message": http.StatusText(http.StatusTooManyRequests),
				})
			}
			return next(c)
		}
	}
}
