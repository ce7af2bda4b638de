package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// CtxKeyRequestID holds the request ID in echo.Context.
const CtxKeyRequestID = "request_id"

// NewRequestID assigns every request an ID, reusing a valid incoming
// X-Request-ID header, and echoes it in the response.
func NewRequestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return uuid.NewString()
		},
		RequestIDHandler: func(c echo.Context, id string) {
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
				c.Response().Header().Set(echo.HeaderXRequestID, id)
			}
			c.Set(CtxKeyRequestID, id)
		},
	})
}

// RequestIDFrom returns the ID of the request, or an empty string outside
// the request ID middleware.
func RequestIDFrom(c echo.Context) string {
	id, _ := c.Get(CtxKeyRequestID).(string)
	return id
}
