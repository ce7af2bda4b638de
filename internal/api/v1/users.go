package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/auth"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/repository"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
)

// LoginRequest holds the credentials of a login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /auth/login.
func (c *Controller) Login(ctx echo.Context) error {
	var in LoginRequest
	if err := bind(ctx, &in); err != nil {
		return c.HandleError(ctx, err, "Invalid login request")
	}

	fe := errors.FieldErrors{}
	if in.Username == "" {
		fe.Add("username", errors.CodeRequired, "This field is required.")
	}
	if in.Password == "" {
		fe.Add("password", errors.CodeRequired, "This field is required.")
	}
	if !fe.Empty() {
		return c.HandleError(ctx, errors.New(fe).Category(errors.CategoryValidation).Build(), "Invalid login request")
	}

	session, err := c.authService.Login(ctx.Request().Context(), ctx.RealIP(), in.Username, in.Password)
	if err != nil {
		return c.HandleError(ctx, err, "Login failed")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      newUserResponse(session.User),
	})
}

// ListUsers handles GET /users.
func (c *Controller) ListUsers(ctx echo.Context) error {
	users, err := repository.NewUserRepository(c.DB).List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list users")
	}
	out := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	return ctx.JSON(http.StatusOK, out)
}

// CurrentUser handles GET /users/me.
func (c *Controller) CurrentUser(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, newUserResponse(currentUser(ctx)))
}

// CreateUser handles POST /users. Staff only.
func (c *Controller) CreateUser(ctx echo.Context) error {
	var in auth.CreateUserInput
	if err := bind(ctx, &in); err != nil {
		return c.HandleError(ctx, err, "Invalid user")
	}
	user, err := c.authService.CreateUser(ctx.Request().Context(), &in)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create user")
	}
	return ctx.JSON(http.StatusCreated, newUserResponse(user))
}
