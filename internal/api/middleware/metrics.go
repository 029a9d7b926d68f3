package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fraktlabs/fencewatch/internal/errors"
)

// RequestRecorder receives one observation per served request.
type RequestRecorder interface {
	RecordRequest(method, path string, status int, d time.Duration)
}

// NewMetrics records every request by its route pattern, not the raw URI,
// so ids in paths do not explode label cardinality.
func NewMetrics(rec RequestRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			rec.RecordRequest(c.Request().Method, path, status, time.Since(start))
			return err
		}
	}
}
