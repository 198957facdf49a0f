package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/portpilot/portal/internal/domain"
	"github.com/portpilot/portal/internal/handler"
	"github.com/portpilot/portal/internal/middleware"
	"github.com/portpilot/portal/internal/service"
	"github.com/portpilot/portal/internal/session"
	"github.com/portpilot/portal/internal/table"
)

// ---- mock AuthServicer -----------------------------------------------------

type mockAuth struct {
	login          func(ctx context.Context, email, password, recaptchaToken string) (domain.Session, error)
	logout         func(ctx context.Context, sc session.Context) error
	changePassword func(ctx context.Context, sc session.Context, password string) error
}

func (m *mockAuth) Login(ctx context.Context, email, password, recaptchaToken string) (domain.Session, error) {
	return m.login(ctx, email, password, recaptchaToken)
}

// Resolve treats the cookie value as the caller's role; "" or unknown
// values are signed out.
func (m *mockAuth) Resolve(_ context.Context, id string) (session.Context, error) {
	if _, ok := domain.CanonicalRole(id); !ok {
		return session.Anonymous(), nil
	}
	return session.New(&domain.Session{
		ID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)),
		OK:   true,
		User: domain.User{Email: id + "@portpilot.co", Role: id},
	}), nil
}

func (m *mockAuth) Logout(ctx context.Context, sc session.Context) error {
	return m.logout(ctx, sc)
}
func (m *mockAuth) ChangePassword(ctx context.Context, sc session.Context, password string) error {
	return m.changePassword(ctx, sc, password)
}

var _ handler.AuthServicer = (*mockAuth)(nil)

// ---- mock PageServicer -----------------------------------------------------

type mockPages struct {
	load           func(ctx context.Context, sc session.Context, resource string) (service.PageState, error)
	state          func(sc session.Context, resource string, opts table.ViewOptions) (service.PageState, error)
	addRow         func(sc session.Context, resource string) (table.Row, error)
	editCell       func(sc session.Context, resource, rowID, field, value string) (table.Row, error)
	blur           func(sc session.Context, resource, rowID, field string) (table.Row, error)
	selectRow      func(sc session.Context, resource, rowID string, on bool) error
	deleteSelected func(sc session.Context, resource string, confirmed bool) (int, error)
	save           func(ctx context.Context, sc session.Context, resource string) (service.SaveResult, error)
	export         func(sc session.Context, resource string, widths map[string]int) (service.Export, error)
	importRows     func(sc session.Context, resource string, mode service.ImportMode, r io.Reader, filename string) (service.ImportResult, error)
	decide         func(sc session.Context, resource string, d table.Decision) (service.ImportResult, error)

	discarded []string
}

func (m *mockPages) Load(ctx context.Context, sc session.Context, resource string) (service.PageState, error) {
	return m.load(ctx, sc, resource)
}
func (m *mockPages) State(sc session.Context, resource string, opts table.ViewOptions) (service.PageState, error) {
	return m.state(sc, resource, opts)
}
func (m *mockPages) AddRow(sc session.Context, resource string) (table.Row, error) {
	return m.addRow(sc, resource)
}
func (m *mockPages) EditCell(sc session.Context, resource, rowID, field, value string) (table.Row, error) {
	return m.editCell(sc, resource, rowID, field, value)
}
func (m *mockPages) Blur(sc session.Context, resource, rowID, field string) (table.Row, error) {
	return m.blur(sc, resource, rowID, field)
}
func (m *mockPages) Select(sc session.Context, resource, rowID string, on bool) error {
	return m.selectRow(sc, resource, rowID, on)
}
func (m *mockPages) DeleteSelected(sc session.Context, resource string, confirmed bool) (int, error) {
	return m.deleteSelected(sc, resource, confirmed)
}
func (m *mockPages) Save(ctx context.Context, sc session.Context, resource string) (service.SaveResult, error) {
	return m.save(ctx, sc, resource)
}
func (m *mockPages) Export(sc session.Context, resource string, widths map[string]int) (service.Export, error) {
	return m.export(sc, resource, widths)
}
func (m *mockPages) Import(sc session.Context, resource string, mode service.ImportMode, r io.Reader, filename string) (service.ImportResult, error) {
	return m.importRows(sc, resource, mode, r, filename)
}
func (m *mockPages) Decide(sc session.Context, resource string, d table.Decision) (service.ImportResult, error) {
	return m.decide(sc, resource, d)
}
func (m *mockPages) Discard(key string) {
	m.discarded = append(m.discarded, key)
}

var _ handler.PageServicer = (*mockPages)(nil)

// ---- mock PrefServicer -----------------------------------------------------

type mockPrefs struct {
	get        func(ctx context.Context, client uuid.UUID) (domain.Preferences, error)
	widths     func(ctx context.Context, client uuid.UUID, resource string) (map[string]int, error)
	setWidths  func(ctx context.Context, client uuid.UUID, resource string, widths map[string]int) (map[string]int, error)
	setSidebar func(ctx context.Context, client uuid.UUID, collapsed bool) error
}

func (m *mockPrefs) Get(ctx context.Context, client uuid.UUID) (domain.Preferences, error) {
	return m.get(ctx, client)
}
func (m *mockPrefs) Widths(ctx context.Context, client uuid.UUID, resource string) (map[string]int, error) {
	return m.widths(ctx, client, resource)
}
func (m *mockPrefs) SetWidths(ctx context.Context, client uuid.UUID, resource string, widths map[string]int) (map[string]int, error) {
	return m.setWidths(ctx, client, resource, widths)
}
func (m *mockPrefs) SetSidebar(ctx context.Context, client uuid.UUID, collapsed bool) error {
	return m.setSidebar(ctx, client, collapsed)
}

var _ handler.PrefServicer = (*mockPrefs)(nil)

// ---- mock CodeServicer -----------------------------------------------------

type mockCodes struct {
	companyCodes func(ctx context.Context, sc session.Context) domain.CompanyCodes
}

func (m *mockCodes) CompanyCodes(ctx context.Context, sc session.Context) domain.CompanyCodes {
	return m.companyCodes(ctx, sc)
}

var _ handler.CodeServicer = (*mockCodes)(nil)

// ---- helpers ---------------------------------------------------------------

type deps struct {
	auth  *mockAuth
	pages *mockPages
	prefs *mockPrefs
	codes *mockCodes
}

// newHTTPHandler wires a Server with the mocks exactly like main.go does.
func newHTTPHandler(d deps) http.Handler {
	if d.auth == nil {
		d.auth = &mockAuth{}
	}
	if d.pages == nil {
		d.pages = &mockPages{}
	}
	if d.prefs == nil {
		d.prefs = &mockPrefs{}
	}
	if d.codes == nil {
		d.codes = &mockCodes{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return handler.NewServer(d.auth, d.pages, d.prefs, d.codes, handler.Options{}, logger).Handler()
}

// do sends a request as a caller with the given role ("" = signed out).
func do(t *testing.T, h http.Handler, role, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: role})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorDetail {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}
