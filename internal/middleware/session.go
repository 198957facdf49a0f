package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/portpilot/portal/internal/session"
)

// SessionCookie is the cookie holding the portal session ID.
const SessionCookie = "pp_session"

// SessionResolver maps a session cookie value to the caller's session.
type SessionResolver interface {
	Resolve(ctx context.Context, id string) (session.Context, error)
}

// NewSessionLoader returns a middleware that attaches the caller's
// session.Context to the request context. Requests without a valid session
// cookie carry a signed-out context. A failing session store is logged and
// treated as signed out.
func NewSessionLoader(resolver SessionResolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := session.Anonymous()
			if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
				resolved, err := resolver.Resolve(r.Context(), c.Value)
				if err != nil {
					log.WarnContext(r.Context(), "session lookup failed", "error", err)
				} else {
					sc = resolved
				}
			}
			next.ServeHTTP(w, r.WithContext(session.WithContext(r.Context(), sc)))
		})
	}
}

// RequireSignedIn rejects requests without a signed-in session with 401.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).IsSignedIn() {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Please sign in.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers who are not signed in (401) or not an Admin (403).
func RequireAdmin(next http.Handler) http.Handler {
	return RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden", "Administrators only.")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// writeError writes the portal's JSON error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
