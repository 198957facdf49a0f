package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ClientCookie identifies a browser across sessions. Preferences are keyed by it.
const ClientCookie = "pp_client"

const clientCookieMaxAge = 400 * 24 * time.Hour

type clientIDKey struct{}

// NewClientID returns a middleware that makes sure every browser carries a
// client ID cookie and puts the ID in the request context. A missing or
// malformed cookie is replaced by a fresh ID.
func NewClientID(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id uuid.UUID
			if c, err := r.Cookie(ClientCookie); err == nil {
				id, _ = uuid.Parse(c.Value)
			}
			if id == uuid.Nil {
				id = uuid.New()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookie,
					Value:    id.String(),
					Path:     "/",
					MaxAge:   int(clientCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIDKey{}, id)))
		})
	}
}

// ClientIDFrom returns the browser client ID set by NewClientID, or uuid.Nil.
func ClientIDFrom(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(clientIDKey{}).(uuid.UUID)
	return id
}
