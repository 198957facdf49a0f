package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portpilot/portal/internal/domain"
	"github.com/portpilot/portal/internal/middleware"
	"github.com/portpilot/portal/internal/session"
)

// ---- mock SessionResolver --------------------------------------------------

type mockResolver struct {
	resolve func(ctx context.Context, id string) (session.Context, error)
}

func (m *mockResolver) Resolve(ctx context.Context, id string) (session.Context, error) {
	return m.resolve(ctx, id)
}

var _ middleware.SessionResolver = (*mockResolver)(nil)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func roleSession(role string) session.Context {
	return session.New(&domain.Session{ID: uuid.New(), OK: true, User: domain.User{Email: "a@b.co", Role: role}})
}

// captureSession records the session.Context the handler sees.
func captureSession(got *session.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = session.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionLoader_ResolvesCookie(t *testing.T) {
	want := roleSession(domain.RoleAdmin)
	var got session.Context
	h := middleware.NewSessionLoader(&mockResolver{
		resolve: func(_ context.Context, id string) (session.Context, error) {
			assert.Equal(t, "abc", id)
			return want, nil
		},
	}, quietLogger())(captureSession(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "abc"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, got.IsAdmin())
	assert.Equal(t, want.Key(), got.Key())
}

func TestSessionLoader_NoCookie(t *testing.T) {
	var got session.Context
	h := middleware.NewSessionLoader(&mockResolver{}, quietLogger())(captureSession(&got))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/session", nil))

	assert.False(t, got.IsSignedIn())
}

func TestSessionLoader_StoreErrorIsSignedOut(t *testing.T) {
	var got session.Context
	h := middleware.NewSessionLoader(&mockResolver{
		resolve: func(context.Context, string) (session.Context, error) {
			return session.Anonymous(), errors.New("db down")
		},
	}, quietLogger())(captureSession(&got))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "abc"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, got.IsSignedIn())
}

func TestRequireSignedIn_And_RequireAdmin(t *testing.T) {
	tests := []struct {
		name       string
		sc         session.Context
		wrap       func(http.Handler) http.Handler
		wantStatus int
	}{
		{"anonymous signed-in route", session.Anonymous(), middleware.RequireSignedIn, http.StatusUnauthorized},
		{"dispatcher signed-in route", roleSession(domain.RoleDispatcher), middleware.RequireSignedIn, http.StatusOK},
		{"anonymous admin route", session.Anonymous(), middleware.RequireAdmin, http.StatusUnauthorized},
		{"dispatcher admin route", roleSession(domain.RoleDispatcher), middleware.RequireAdmin, http.StatusForbidden},
		{"admin admin route", roleSession(domain.RoleAdmin), middleware.RequireAdmin, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/nav", nil)
			req = req.WithContext(session.WithContext(req.Context(), tc.sc))
			rec := httptest.NewRecorder()

			tc.wrap(trivialHandler).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}
