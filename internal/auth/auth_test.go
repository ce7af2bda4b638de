package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/auth"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/testutil"
)

type authRecorder struct {
	calls map[string]int
}

func (r *authRecorder) RecordAuthOperation(operation, status string) {
	r.calls[operation+":"+status]++
}

func TestLoginAndAuthenticate(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.AddUser(t, db, "alice", false)
	rec := &authRecorder{calls: map[string]int{}}
	svc := auth.NewService(db, auth.NewTokenService("secret", time.Hour), nil, rec)
	ctx := context.Background()

	_, err := svc.Login(ctx, "10.0.0.1", "alice", "wrong")
	assert.True(t, errors.IsCategory(err, errors.CategoryUnauthorized))
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "10.0.0.1", "nobody", testutil.FixturePassword)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	session, err := svc.Login(ctx, "10.0.0.1", "alice", testutil.FixturePassword)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)

	got, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, session.Token+"x")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	other := auth.NewService(db, auth.NewTokenService("other-secret", time.Hour), nil, nil)
	_, err = other.Authenticate(ctx, session.Token)
	assert.True(t, errors.IsCategory(err, errors.CategoryUnauthorized), "tokens are bound to the secret")

	assert.Equal(t, 2, rec.calls["login:error"])
	assert.Equal(t, 1, rec.calls["login:success"])
	assert.Equal(t, 1, rec.calls["token:success"])
}

func TestExpiredToken(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.AddUser(t, db, "alice", false)

	tokens := auth.NewTokenService("secret", time.Millisecond)
	token, _, err := tokens.Issue(user)
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	_, err = tokens.Validate(token)
	assert.Error(t, err)
}

func TestLoginRateLimit(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.AddUser(t, db, "alice", false)
	svc := auth.NewService(db, auth.NewTokenService("secret", time.Hour), auth.NewLoginLimiter(2), nil)
	ctx := context.Background()

	for range 2 {
		_, err := svc.Login(ctx, "10.0.0.1", "alice", "wrong")
		assert.True(t, errors.IsCategory(err, errors.CategoryUnauthorized))
	}
	_, err := svc.Login(ctx, "10.0.0.1", "alice", testutil.FixturePassword)
	assert.True(t, errors.IsCategory(err, errors.CategoryRateLimit))

	_, err = svc.Login(ctx, "10.0.0.2", "alice", testutil.FixturePassword)
	assert.NoError(t, err, "limits are per client")
}

func TestCreateUser(t *testing.T) {
	db := testutil.NewDB(t)
	svc := auth.NewService(db, auth.NewTokenService("secret", time.Hour), nil, nil)
	ctx := context.Background()

	bad := entities.ExpertiseLevel("GURU")
	_, err := svc.CreateUser(ctx, &auth.CreateUserInput{Username: " ", Password: "short", ExpertiseLevel: &bad})
	var fe errors.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.True(t, fe.Has("username", errors.CodeBlank))
	assert.True(t, fe.Has("password", errors.CodeMinValue))
	assert.True(t, fe.Has("expertise_level", errors.CodeInvalid))

	user, err := svc.CreateUser(ctx, &auth.CreateUserInput{Username: "bob", Password: "long enough", IsStaff: true})
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())
	assert.True(t, auth.CheckPassword(user.PasswordHash, "long enough"))

	_, err = svc.CreateUser(ctx, &auth.CreateUserInput{Username: "bob", Password: "long enough"})
	require.True(t, errors.As(err, &fe))
	assert.True(t, fe.Has("username", errors.CodeUnique))
}

func TestMiddleware(t *testing.T) {
	db := testutil.NewDB(t)
	staff := testutil.AddUser(t, db, "staff", true)
	plain := testutil.AddUser(t, db, "plain", false)
	tokens := auth.NewTokenService("secret", time.Hour)
	mw := auth.NewMiddleware(auth.NewService(db, tokens, nil, nil))

	e := echo.New()
	handler := mw.Authenticate(auth.RequireStaff(func(c echo.Context) error {
		return c.String(http.StatusOK, auth.UserFrom(c).Username)
	}))

	tokenFor := func(u *entities.User) string {
		token, _, err := tokens.Issue(u)
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"invalid", "Bearer abc", http.StatusUnauthorized},
		{"not staff", "Bearer " + tokenFor(plain), http.StatusForbidden},
		{"staff", "Bearer " + tokenFor(staff), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			require.NoError(t, handler(e.NewContext(req, rec)))
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
			if tt.status == http.StatusOK {
				assert.Equal(t, "staff", rec.Body.String())
			}
		})
	}
}
