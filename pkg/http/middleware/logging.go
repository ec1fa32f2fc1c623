package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"FinSignal/pkg/logger"
)

// RequestLogging logs every request at debug level, 5xx at error and slow requests at warn.
func RequestLogging(l *logger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			dur := time.Since(start)
			fields := []logger.Field{
				logger.String("method", c.Request().Method),
				logger.String("route", routeLabel(c)),
				logger.Int("status", c.Response().Status),
				logger.String("remote", c.RealIP()),
				logger.Duration("duration_ms", dur),
			}
			switch {
			case c.Response().Status >= 500:
				l.Error("http request failed", fields...)
			case slow > 0 && dur >= slow:
				l.Warn("http request slow", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}
