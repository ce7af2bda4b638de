package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/observability/metrics"
)

// NewMetrics records the count, latency and response size of every request
// under its route pattern. Unmatched requests are grouped under "unmatched"
// to bound label cardinality.
func NewMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if m == nil {
			return next
		}
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.RecordHTTPRequest(c.Request().Method, path, status, time.Since(start), c.Response().Size)
			return err
		}
	}
}
