package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

// bearerTokenParts is the expected number of parts when splitting Authorization header.
const bearerTokenParts = 2

// CtxKeyUser holds the authenticated *entities.User in echo.Context.
const CtxKeyUser = "auth:user"

// Middleware authenticates API requests with bearer tokens.
type Middleware struct {
	service *Service
}

// NewMiddleware creates the auth middleware.
func NewMiddleware(service *Service) *Middleware {
	return &Middleware{service: service}
}

// Authenticate rejects requests without a valid bearer token with 401 and
// stores the user of valid ones.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			return unauthorized(c, "Authentication credentials were not provided.")
		}

		parts := strings.SplitN(header, " ", bearerTokenParts)
		if len(parts) != bearerTokenParts || !strings.EqualFold(parts[0], "bearer") {
			GetLogger().Warn("malformed Authorization header",
				logger.String("path", c.Request().URL.Path),
				logger.String("ip", c.RealIP()))
			return unauthorized(c, "Invalid Authorization header.")
		}

		user, err := m.service.Authenticate(c.Request().Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.IsCategory(err, errors.CategoryUnauthorized) {
				GetLogger().Debug("token rejected",
					logger.String("path", c.Request().URL.Path),
					logger.String("ip", c.RealIP()))
				c.Response().Header().Set("WWW-Authenticate",
					`Bearer realm="api", error="invalid_token", error_description="Invalid or expired token"`)
				return unauthorized(c, "Invalid or expired token.")
			}
			return err
		}

		c.Set(CtxKeyUser, user)
		return next(c)
	}
}

// RequireStaff rejects authenticated users that are not staff with 403.
func RequireStaff(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !UserFrom(c).IsAdmin() {
			return c.JSON(http.StatusForbidden, map[string]string{
				"detail": "You do not have permission to perform this action.",
			})
		}
		return next(c)
	}
}

// UserFrom returns the authenticated user of the request, or nil.
func UserFrom(c echo.Context) *entities.User {
	user, _ := c.Get(CtxKeyUser).(*entities.User)
	return user
}

func unauthorized(c echo.Context, detail string) error {
	if c.Response().Header().Get("WWW-Authenticate") == "" {
		c.Response().Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	return c.JSON(http.StatusUnauthorized, map[string]string{"detail": detail})
}
