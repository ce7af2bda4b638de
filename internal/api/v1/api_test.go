package v1_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/Project-OSmOSE/osmose-app-sub000/internal/api/v1"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/auth"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore/entities"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/errors"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/events"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/testutil"
)

const testSecret = "test-secret"

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) TryPublish(e events.Event) bool {
	p.events = append(p.events, e)
	return true
}

func (p *recordingPublisher) types() []events.Type {
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// harness serves the API over an in-memory fixture.
type harness struct {
	t      *testing.T
	f      *testutil.Fixture
	e      *echo.Echo
	tokens *auth.TokenService
	pub    *recordingPublisher
}

func newHarness(t *testing.T, fileCount int, opts ...v1.Option) *harness {
	t.Helper()

	h := &harness{
		t:      t,
		f:      testutil.NewFixture(t, fileCount),
		e:      echo.New(),
		tokens: auth.NewTokenService(testSecret, time.Hour),
		pub:    &recordingPublisher{},
	}
	settings := &conf.Settings{}
	settings.Security.JWTSecret = testSecret
	settings.Security.TokenTTL = time.Hour

	opts = append([]v1.Option{v1.WithPublisher(h.pub)}, opts...)
	_, err := v1.New(h.e, h.f.DB, settings, opts...)
	require.NoError(t, err)
	return h
}

// do sends a JSON request as user. A nil user sends no token.
func (h *harness) do(method, path string, user *entities.User, body any) *httptest.ResponseRecorder {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, v1.Prefix+path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return h.send(req, user)
}

func (h *harness) send(req *http.Request, user *entities.User) *httptest.ResponseRecorder {
	h.t.Helper()
	if user != nil {
		token, _, err := h.tokens.Issue(user)
		require.NoError(h.t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func (h *harness) campaignPath(format string, args ...any) string {
	return fmt.Sprintf("/campaigns/%d", h.f.Campaign.ID) + fmt.Sprintf(format, args...)
}

func (h *harness) phasePath(format string, args ...any) string {
	return h.campaignPath("/phases/annotation") + fmt.Sprintf(format, args...)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// fieldErrors decodes a 400 body holding a single FieldErrors payload.
func fieldErrors(t *testing.T, rec *httptest.ResponseRecorder) errors.FieldErrors {
	t.Helper()
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	body := decode[struct {
		Errors        errors.FieldErrors `json:"errors"`
		CorrelationID string             `json:"correlation_id"`
	}](t, rec)
	assert.NotEmpty(t, body.CorrelationID)
	return body.Errors
}

func TestNewRequiresDatabaseAndSecret(t *testing.T) {
	_, err := v1.New(echo.New(), nil, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	f := testutil.NewFixture(t, 1)
	_, err = v1.New(echo.New(), f.DB, &conf.Settings{})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errors.Fields("name", errors.CodeBlank, "blank"), http.StatusBadRequest},
		{"not found", errors.NotFoundError("campaign"), http.StatusNotFound},
		{"forbidden", errors.ForbiddenError("no"), http.StatusForbidden},
		{"unauthorized", errors.UnauthorizedError("no"), http.StatusUnauthorized},
		{"rate limit", errors.Newf("slow down").Category(errors.CategoryRateLimit).Build(), http.StatusTooManyRequests},
		{"state", errors.Newf("ended").Category(errors.CategoryState).Build(), http.StatusConflict},
		{"configuration", errors.Newf("missing").Category(errors.CategoryConfiguration).Build(), http.StatusServiceUnavailable},
		{"plain", errors.NewStd("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v1.StatusOf(tt.err))
		})
	}
}

func TestUnknownPhaseAndMalformedIDs(t *testing.T) {
	h := newHarness(t, 2)

	rec := h.do(http.MethodGet, h.campaignPath("/phases/review/progress"), h.f.Owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/campaigns/abc", h.f.Owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/campaigns/9999", h.f.Staff, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerErrorsHideDetails(t *testing.T) {
	h := newHarness(t, 1)
	sqlDB, err := h.f.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	rec := h.do(http.MethodGet, "/label-sets", h.f.Owner, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sql:")
}
