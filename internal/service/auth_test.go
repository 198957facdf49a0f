package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portpilot/portal/internal/domain"
	"github.com/portpilot/portal/internal/repo"
	"github.com/portpilot/portal/internal/resources"
	"github.com/portpilot/portal/internal/service"
	"github.com/portpilot/portal/internal/session"
	"github.com/portpilot/portal/internal/table"
	"github.com/portpilot/portal/internal/upstream"
)

// ---- mock Authenticator ----------------------------------------------------

type mockAuthenticator struct {
	login          func(ctx context.Context, email, password, recaptchaToken string) (upstream.LoginResult, error)
	changePassword func(ctx context.Context, creds upstream.Credentials, password string) error
}

func (m *mockAuthenticator) Login(ctx context.Context, email, password, recaptchaToken string) (upstream.LoginResult, error) {
	return m.login(ctx, email, password, recaptchaToken)
}
func (m *mockAuthenticator) ChangePassword(ctx context.Context, creds upstream.Credentials, password string) error {
	return m.changePassword(ctx, creds, password)
}

var _ service.Authenticator = (*mockAuthenticator)(nil)

// ---- mock SessionRepo ------------------------------------------------------

type mockSessionRepo struct {
	create     func(ctx context.Context, s domain.Session) (domain.Session, error)
	get        func(ctx context.Context, id uuid.UUID, maxIdle time.Duration) (domain.Session, error)
	delete     func(ctx context.Context, id uuid.UUID) error
	deleteIdle func(ctx context.Context, maxIdle time.Duration) ([]uuid.UUID, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, s domain.Session) (domain.Session, error) {
	return m.create(ctx, s)
}
func (m *mockSessionRepo) Get(ctx context.Context, id uuid.UUID, maxIdle time.Duration) (domain.Session, error) {
	return m.get(ctx, id, maxIdle)
}
func (m *mockSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}
func (m *mockSessionRepo) DeleteIdle(ctx context.Context, maxIdle time.Duration) ([]uuid.UUID, error) {
	return m.deleteIdle(ctx, maxIdle)
}

var _ repo.SessionRepo = (*mockSessionRepo)(nil)

func newAuth(api *mockAuthenticator, sessions *mockSessionRepo) *service.AuthService {
	return service.NewAuthService(api, sessions, 12*time.Hour, discardLogger())
}

// ---- Login -----------------------------------------------------------------

func TestAuthService_Login_OK(t *testing.T) {
	var stored domain.Session
	svc := newAuth(&mockAuthenticator{
		login: func(_ context.Context, email, password, token string) (upstream.LoginResult, error) {
			assert.Equal(t, "ops@portpilot.co", email)
			assert.Equal(t, "secret", password)
			assert.Equal(t, "captcha", token)
			return upstream.LoginResult{Token: "tok", User: domain.User{Email: email, Role: domain.RoleAdmin}}, nil
		},
	}, &mockSessionRepo{
		create: func(_ context.Context, s domain.Session) (domain.Session, error) {
			stored = s
			s.ID = uuid.New()
			return s, nil
		},
	})

	got, err := svc.Login(context.Background(), " ops@portpilot.co ", "secret", "captcha")

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.True(t, stored.OK)
	assert.Equal(t, "tok", stored.Token)
	assert.Equal(t, domain.RoleAdmin, got.User.Role)
}

func TestAuthService_Login_RequiresRecaptcha(t *testing.T) {
	svc := newAuth(&mockAuthenticator{}, &mockSessionRepo{})

	_, err := svc.Login(context.Background(), "a@b.co", "pw", "")

	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), `Please complete the "I'm not a robot" verification.`)
}

func TestAuthService_Login_RemoteFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantIs  error
		wantMsg string
	}{
		{"bad credentials", &upstream.APIError{Status: 401}, domain.ErrUnauthorized, "Invalid email or password."},
		{"captcha rejected", &upstream.APIError{Status: 400}, domain.ErrValidation, "reCAPTCHA validation failed. Please try again."},
		{"forbidden", &upstream.APIError{Status: 403}, domain.ErrForbidden, "Access forbidden. Please contact the administrator."},
		{"server message", &upstream.APIError{Status: 500, Message: "locked"}, domain.ErrUnauthorized, "locked"},
		{"no message", &upstream.APIError{Status: 500}, domain.ErrUnauthorized, "Sign-in failed. Please check your credentials and verification."},
		{"unreachable", fmt.Errorf("dial: %w", upstream.ErrUnavailable), upstream.ErrUnavailable, "Unable to reach the server. Please try again later."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newAuth(&mockAuthenticator{
				login: func(context.Context, string, string, string) (upstream.LoginResult, error) {
					return upstream.LoginResult{}, fmt.Errorf("upstream.Client.Login: %w", tc.err)
				},
			}, &mockSessionRepo{})

			_, err := svc.Login(context.Background(), "a@b.co", "pw", "captcha")

			require.ErrorIs(t, err, tc.wantIs)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

// ---- Resolve / Logout ------------------------------------------------------

func TestAuthService_Resolve(t *testing.T) {
	id := uuid.New()
	svc := newAuth(&mockAuthenticator{}, &mockSessionRepo{
		get: func(_ context.Context, got uuid.UUID, maxIdle time.Duration) (domain.Session, error) {
			assert.Equal(t, 12*time.Hour, maxIdle)
			if got != id {
				return domain.Session{}, domain.ErrNotFound
			}
			return domain.Session{ID: id, OK: true, User: domain.User{Email: "a@b.co", Role: "Admin"}}, nil
		},
	})

	sc, err := svc.Resolve(context.Background(), id.String())
	require.NoError(t, err)
	assert.True(t, sc.IsAdmin())
	assert.Equal(t, id.String(), sc.Key())

	sc, err = svc.Resolve(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.False(t, sc.IsSignedIn())

	sc, err = svc.Resolve(context.Background(), "not-a-uuid")
	require.NoError(t, err)
	assert.False(t, sc.IsSignedIn())
}

func TestAuthService_Resolve_StoreError(t *testing.T) {
	svc := newAuth(&mockAuthenticator{}, &mockSessionRepo{
		get: func(context.Context, uuid.UUID, time.Duration) (domain.Session, error) {
			return domain.Session{}, errors.New("db down")
		},
	})

	_, err := svc.Resolve(context.Background(), uuid.NewString())

	assert.Error(t, err)
}

func TestAuthService_Logout(t *testing.T) {
	var deleted uuid.UUID
	sess := domain.Session{ID: uuid.New(), OK: true}
	svc := newAuth(&mockAuthenticator{}, &mockSessionRepo{
		delete: func(_ context.Context, id uuid.UUID) error {
			deleted = id
			return domain.ErrNotFound
		},
	})

	require.NoError(t, svc.Logout(context.Background(), session.New(&sess)))
	assert.Equal(t, sess.ID, deleted)
	assert.NoError(t, svc.Logout(context.Background(), session.Anonymous()))
}

// ---- ChangePassword --------------------------------------------------------

func TestAuthService_ChangePassword(t *testing.T) {
	var sent string
	svc := newAuth(&mockAuthenticator{
		changePassword: func(_ context.Context, creds upstream.Credentials, password string) error {
			assert.Equal(t, "Dispatcher@portpilot.co", creds.Email)
			sent = password
			return nil
		},
	}, &mockSessionRepo{})
	sc := signedIn(domain.RoleDispatcher)

	err := svc.ChangePassword(context.Background(), sc, " abc ")
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "Password too short.")

	require.NoError(t, svc.ChangePassword(context.Background(), sc, " abcd "))
	assert.Equal(t, "abcd", sent)

	assert.ErrorIs(t, svc.ChangePassword(context.Background(), session.Anonymous(), "abcd"), domain.ErrUnauthorized)
}

// ---- mock Discarder --------------------------------------------------------

type mockDiscarder struct {
	keys []string
}

func (m *mockDiscarder) Discard(key string) { m.keys = append(m.keys, key) }

var _ service.Discarder = (*mockDiscarder)(nil)

func TestAuthService_PurgeIdle(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	svc := newAuth(&mockAuthenticator{}, &mockSessionRepo{
		deleteIdle: func(_ context.Context, maxIdle time.Duration) ([]uuid.UUID, error) {
			assert.Equal(t, 12*time.Hour, maxIdle)
			return []uuid.UUID{a, b}, nil
		},
	})
	ws := &mockDiscarder{}

	n, err := svc.PurgeIdle(context.Background(), ws)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{a.String(), b.String()}, ws.keys)
}

func TestAuthService_PurgeIdle_RepoError(t *testing.T) {
	svc := newAuth(&mockAuthenticator{}, &mockSessionRepo{
		deleteIdle: func(context.Context, time.Duration) ([]uuid.UUID, error) {
			return nil, errors.New("db down")
		},
	})
	ws := &mockDiscarder{}

	_, err := svc.PurgeIdle(context.Background(), ws)

	require.Error(t, err)
	assert.Empty(t, ws.keys)
}

func TestAuthService_PurgeIdle_DropsPurgedPages(t *testing.T) {
	stale, fresh := signedIn(domain.RoleDispatcher), signedIn(domain.RoleDispatcher)
	staleSession, _ := stale.Session()
	pages := newPages(map[string]*remoteStore{}, nil)
	for _, sc := range []session.Context{stale, fresh} {
		_, err := pages.Load(context.Background(), sc, resources.ContainersName)
		require.NoError(t, err)
	}
	svc := newAuth(&mockAuthenticator{}, &mockSessionRepo{
		deleteIdle: func(context.Context, time.Duration) ([]uuid.UUID, error) {
			return []uuid.UUID{staleSession.ID}, nil
		},
	})

	n, err := svc.PurgeIdle(context.Background(), pages)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = pages.State(stale, resources.ContainersName, table.ViewOptions{})
	assert.ErrorIs(t, err, domain.ErrConflict, "purged session's page must be gone")
	_, err = pages.State(fresh, resources.ContainersName, table.ViewOptions{})
	assert.NoError(t, err)
}
