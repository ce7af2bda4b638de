// Package middleware provides the echo middleware of the APLOSE HTTP server.
package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

// NewRequestLogger creates a request logging middleware using echo's
// RequestLoggerWithConfig.
func NewRequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return NewRequestLoggerWithSkipper(log, nil)
}

// NewRequestLoggerWithSkipper creates a request logging middleware with a custom skipper.
func NewRequestLoggerWithSkipper(log logger.Logger, skipper middleware.Skipper) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:     skipper,
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if log == nil {
				return nil
			}

			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if id := RequestIDFrom(c); id != "" {
				fields = append(fields, logger.String("request_id", id))
			}

			switch {
			case v.Error != nil && v.Status >= 500:
				log.Error("request", append(fields, logger.Error(v.Error))...)
			case v.Error != nil:
				log.Info("request", append(fields, logger.Error(v.Error))...)
			default:
				log.Info("request", fields...)
			}
			return nil
		},
	})
}
