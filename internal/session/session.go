// Package session carries the signed-in user through a request. A Context is
// built once per request by the session middleware and passed explicitly to
// the services that need it; nothing reads session state from globals.
package session

import (
	"context"

	"github.com/portpilot/portal/internal/domain"
)

// Context is the authentication state of one caller.
// The zero value is a signed-out caller.
type Context struct {
	session *domain.Session
}

// New returns a Context for s. A nil s or one without the OK flag is signed out.
func New(s *domain.Session) Context {
	if s == nil || !s.OK {
		return Context{}
	}
	c := *s
	return Context{session: &c}
}

// Anonymous returns a signed-out Context.
func Anonymous() Context {
	return Context{}
}

// IsSignedIn reports whether the caller has a valid session.
func (c Context) IsSignedIn() bool {
	return c.session != nil
}

// CurrentUser returns the signed-in user, or the zero User.
func (c Context) CurrentUser() domain.User {
	if c.session == nil {
		return domain.User{}
	}
	return c.session.User
}

// Role returns the signed-in user's role in canonical spelling, or "".
func (c Context) Role() string {
	if c.session == nil {
		return ""
	}
	r, _ := domain.CanonicalRole(c.session.User.Role)
	return r
}

// HasRole reports whether the caller holds any of roles, ignoring case.
func (c Context) HasRole(roles ...string) bool {
	if c.session == nil {
		return false
	}
	for _, r := range roles {
		if domain.SameRole(c.session.User.Role, r) {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the caller is an Admin.
func (c Context) IsAdmin() bool {
	return c.HasRole(domain.RoleAdmin)
}

// Session returns the underlying session and whether one is present.
func (c Context) Session() (domain.Session, bool) {
	if c.session == nil {
		return domain.Session{}, false
	}
	return *c.session, true
}

// Key identifies the caller's workspace. It is "" when signed out.
func (c Context) Key() string {
	if c.session == nil {
		return ""
	}
	return c.session.ID.String()
}

type ctxKey struct{}

// WithContext returns a copy of ctx carrying c.
func WithContext(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the Context stored in ctx, or a signed-out one.
func FromContext(ctx context.Context) Context {
	if c, ok := ctx.Value(ctxKey{}).(Context); ok {
		return c
	}
	return Context{}
}
