package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/portpilot/portal/internal/domain"
	"github.com/portpilot/portal/internal/middleware"
	"github.com/portpilot/portal/internal/session"
)

// LoginRequest is the body of POST /api/session.
type LoginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	RecaptchaToken string `json:"recaptcha_token"`
}

// SessionResponse describes the caller's session.
type SessionResponse struct {
	OK   bool         `json:"ok"`
	User *domain.User `json:"user,omitempty"`
}

// PasswordRequest is the body of PATCH /api/session/password.
type PasswordRequest struct {
	Password string `json:"password"`
}

// CreateSession handles POST /api/session: sign in and set the session cookie.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		requestError(w, "request body must be JSON")
		return
	}

	sess, err := s.auth.Login(r.Context(), body.Email, body.Password, body.RecaptchaToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, s.sessionCookie(sess.ID.String(), 0))
	writeJSON(w, http.StatusCreated, SessionResponse{OK: true, User: &sess.User})
}

// GetSession handles GET /api/session. A signed-out caller gets ok=false.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sc := session.FromContext(r.Context())
	if !sc.IsSignedIn() {
		writeJSON(w, http.StatusOK, SessionResponse{OK: false})
		return
	}
	u := sc.CurrentUser()
	writeJSON(w, http.StatusOK, SessionResponse{OK: true, User: &u})
}

// DeleteSession handles DELETE /api/session: sign out, drop the caller's
// unsaved page work and clear the cookie.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sc := session.FromContext(r.Context())
	if err := s.auth.Logout(r.Context(), sc); err != nil {
		s.writeError(w, r, err)
		return
	}
	if key := sc.Key(); key != "" {
		s.pages.Discard(key)
	}
	http.SetCookie(w, s.sessionCookie("", -1))
	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword handles PATCH /api/session/password.
func (s *Server) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var body PasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		requestError(w, "request body must be JSON")
		return
	}
	if err := s.auth.ChangePassword(r.Context(), session.FromContext(r.Context()), body.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionCookie builds the session cookie. A negative maxAge deletes it; zero
// makes it last for the browser session.
func (s *Server) sessionCookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.Expires = time.Unix(0, 0)
	}
	return c
}
