package v1_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/Project-OSmOSE/osmose-app-sub000/internal/api/v1"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/testutil"
)

func TestAuthenticationRequired(t *testing.T) {
	h := newHarness(t, 1)

	rec := h.do(http.MethodGet, "/users/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, v1.Prefix+"/users/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-token")
	rec = h.send(req, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginThenCurrentUser(t *testing.T) {
	h := newHarness(t, 1)

	rec := h.do(http.MethodPost, "/auth/login", nil, v1.LoginRequest{
		Username: h.f.Annotator.Username,
		Password: testutil.FixturePassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[v1.LoginResponse](t, rec)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, h.f.Annotator.Username, login.User.Username)

	req := httptest.NewRequest(http.MethodGet, v1.Prefix+"/users/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+login.Token)
	rec = h.send(req, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[v1.UserResponse](t, rec)
	assert.Equal(t, h.f.Annotator.ID, me.ID)
	assert.False(t, me.IsStaff)
}

func TestLoginRejections(t *testing.T) {
	h := newHarness(t, 1)

	fe := fieldErrors(t, h.do(http.MethodPost, "/auth/login", nil, v1.LoginRequest{}))
	assert.True(t, fe.Has("username", errors.CodeRequired))
	assert.True(t, fe.Has("password", errors.CodeRequired))

	rec := h.do(http.MethodPost, "/auth/login", nil, v1.LoginRequest{
		Username: h.f.Annotator.Username,
		Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateUserIsStaffOnly(t *testing.T) {
	h := newHarness(t, 1)
	in := map[string]any{"username": "newcomer", "password": "s3cret-pass"}

	rec := h.do(http.MethodPost, "/users", h.f.Annotator, in)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, "/users", h.f.Staff, in)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "newcomer", decode[v1.UserResponse](t, rec).Username)

	rec = h.do(http.MethodGet, "/users", h.f.Annotator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]v1.UserResponse](t, rec), 4)
}
