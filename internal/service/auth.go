package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/portpilot/portal/internal/domain"
	"github.com/portpilot/portal/internal/repo"
	"github.com/portpilot/portal/internal/session"
	"github.com/portpilot/portal/internal/upstream"
)

// MinPasswordLength is the shortest password a user may set.
const MinPasswordLength = 4

// Authenticator signs users in and changes passwords on the remote API.
type Authenticator interface {
	Login(ctx context.Context, email, password, recaptchaToken string) (upstream.LoginResult, error)
	ChangePassword(ctx context.Context, creds upstream.Credentials, password string) error
}

// AuthService manages portal sessions. The remote API decides who may sign
// in; the portal remembers the result in its own session store.
type AuthService struct {
	api      Authenticator
	sessions repo.SessionRepo
	maxIdle  time.Duration
	log      *slog.Logger
}

// NewAuthService constructs an AuthService. Sessions unused for longer than
// maxIdle are treated as signed out.
func NewAuthService(api Authenticator, sessions repo.SessionRepo, maxIdle time.Duration, log *slog.Logger) *AuthService {
	return &AuthService{api: api, sessions: sessions, maxIdle: maxIdle, log: log}
}

// Login signs in through the remote API and stores a new session.
func (s *AuthService) Login(ctx context.Context, email, password, recaptchaToken string) (domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.Session{}, fmt.Errorf("service.AuthService.Login: %w: Email and password are required.", domain.ErrValidation)
	}
	if recaptchaToken == "" {
		return domain.Session{}, fmt.Errorf("service.AuthService.Login: %w: Please complete the \"I'm not a robot\" verification.", domain.ErrValidation)
	}

	res, err := s.api.Login(ctx, email, password, recaptchaToken)
	if err != nil {
		return domain.Session{}, fmt.Errorf("service.AuthService.Login: %w", s.loginError(ctx, err))
	}

	created, err := s.sessions.Create(ctx, domain.Session{OK: true, Token: res.Token, User: res.User})
	if err != nil {
		return domain.Session{}, fmt.Errorf("service.AuthService.Login: %w", err)
	}
	s.log.InfoContext(ctx, "signed in", "email", created.User.Email, "role", created.User.Role)
	return created, nil
}

// loginError turns a remote sign-in failure into the message shown to the user.
func (s *AuthService) loginError(ctx context.Context, err error) error {
	var apiErr *upstream.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized:
		return fmt.Errorf("%w: Invalid email or password.", domain.ErrUnauthorized)
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest:
		return fmt.Errorf("%w: reCAPTCHA validation failed. Please try again.", domain.ErrValidation)
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden:
		return fmt.Errorf("%w: Access forbidden. Please contact the administrator.", domain.ErrForbidden)
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, apiErr.Message)
	case errors.As(err, &apiErr):
		return fmt.Errorf("%w: Sign-in failed. Please check your credentials and verification.", domain.ErrUnauthorized)
	default:
		s.log.WarnContext(ctx, "sign-in request failed", "error", err)
		return fmt.Errorf("%w: Unable to reach the server. Please try again later.", upstream.ErrUnavailable)
	}
}

// Resolve returns the caller's session context for a session ID taken from
// a cookie. An unknown or expired ID yields a signed-out context.
func (s *AuthService) Resolve(ctx context.Context, id string) (session.Context, error) {
	sid, err := uuid.Parse(id)
	if err != nil {
		return session.Anonymous(), nil
	}
	sess, err := s.sessions.Get(ctx, sid, s.maxIdle)
	if errors.Is(err, domain.ErrNotFound) {
		return session.Anonymous(), nil
	}
	if err != nil {
		return session.Anonymous(), fmt.Errorf("service.AuthService.Resolve: %w", err)
	}
	return session.New(&sess), nil
}

// Logout ends the caller's session. Signing out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, sc session.Context) error {
	sess, ok := sc.Session()
	if !ok {
		return nil
	}
	err := s.sessions.Delete(ctx, sess.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("service.AuthService.Logout: %w", err)
	}
	return nil
}

// ChangePassword sets a new password for the signed-in user.
func (s *AuthService) ChangePassword(ctx context.Context, sc session.Context, password string) error {
	if !sc.IsSignedIn() {
		return fmt.Errorf("service.AuthService.ChangePassword: %w: Please sign in.", domain.ErrUnauthorized)
	}
	password = strings.TrimSpace(password)
	if len(password) < MinPasswordLength {
		return fmt.Errorf("service.AuthService.ChangePassword: %w: Password too short.", domain.ErrValidation)
	}
	if err := s.api.ChangePassword(ctx, credentials(sc), password); err != nil {
		return fmt.Errorf("service.AuthService.ChangePassword: %w", err)
	}
	return nil
}

// Discarder drops state held for a session outside the session store.
// *PageService satisfies it.
type Discarder interface {
	Discard(key string)
}

// PurgeIdle removes sessions that have not been used within the idle limit,
// discards what ws holds for each of them and returns how many were removed.
func (s *AuthService) PurgeIdle(ctx context.Context, ws Discarder) (int, error) {
	ids, err := s.sessions.DeleteIdle(ctx, s.maxIdle)
	if err != nil {
		return 0, fmt.Errorf("service.AuthService.PurgeIdle: %w", err)
	}
	for _, id := range ids {
		ws.Discard(id.String())
	}
	return len(ids), nil
}
