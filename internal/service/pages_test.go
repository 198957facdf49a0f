package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portpilot/portal/internal/domain"
	"github.com/portpilot/portal/internal/resources"
	"github.com/portpilot/portal/internal/service"
	"github.com/portpilot/portal/internal/session"
	"github.com/portpilot/portal/internal/sheet"
	"github.com/portpilot/portal/internal/status"
	"github.com/portpilot/portal/internal/table"
	"github.com/portpilot/portal/internal/upstream"
)

// ---- fakes -----------------------------------------------------------------

// remoteStore is an in-memory remote row set for one endpoint.
type remoteStore struct {
	rows     []map[string]string
	fetchErr error
	saveErr  error
	saved    [][]map[string]string
}

func (r *remoteStore) Fetch(context.Context) ([]map[string]string, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	out := make([]map[string]string, len(r.rows))
	for i, row := range r.rows {
		c := map[string]string{}
		for k, v := range row {
			c[k] = v
		}
		out[i] = c
	}
	return out, nil
}

func (r *remoteStore) Replace(_ context.Context, rows []map[string]string) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, rows)
	r.rows = rows
	return nil
}

var _ table.Store = (*remoteStore)(nil)

// ---- mock CodeLister -------------------------------------------------------

type mockCodeLister struct {
	companyCodes func(ctx context.Context, sc session.Context) domain.CompanyCodes
}

func (m *mockCodeLister) CompanyCodes(ctx context.Context, sc session.Context) domain.CompanyCodes {
	return m.companyCodes(ctx, sc)
}

var _ service.CodeLister = (*mockCodeLister)(nil)

// ---- fixtures --------------------------------------------------------------

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedIn(role string) session.Context {
	return session.New(&domain.Session{
		ID:   uuid.New(),
		OK:   true,
		User: domain.User{Email: role + "@portpilot.co", Role: role},
	})
}

// newPages returns a PageService whose remote endpoints are served by stores.
// The credentials of every store request are recorded in creds.
func newPages(stores map[string]*remoteStore, creds *[]upstream.Credentials) *service.PageService {
	open := service.StoresFunc(func(endpoint string, c upstream.Credentials) table.Store {
		if creds != nil {
			*creds = append(*creds, c)
		}
		s, ok := stores[endpoint]
		if !ok {
			s = &remoteStore{}
			stores[endpoint] = s
		}
		return s
	})
	codes := &mockCodeLister{companyCodes: func(context.Context, session.Context) domain.CompanyCodes {
		return domain.CompanyCodes{Drayage: []string{"DRY1"}, Warehouse: []string{"WH1"}}
	}}
	return service.NewPageService(open, codes, discardLogger())
}

func workbook(t *testing.T, schema table.Schema, body ...[]string) io.Reader {
	t.Helper()
	matrix := append([][]string{schema.Labels()}, body...)
	data, err := sheet.Write(schema.SheetName, matrix, nil)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func drayageStore() *remoteStore {
	return &remoteStore{rows: []map[string]string{
		{"code": "ABC", "name": "Alpha"},
		{"code": "XYZ", "name": "Zulu"},
	}}
}

// ---- access ----------------------------------------------------------------

func TestPageService_Load_RequiresSignIn(t *testing.T) {
	svc := newPages(map[string]*remoteStore{}, nil)

	_, err := svc.Load(context.Background(), session.Anonymous(), resources.ContainersName)

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestPageService_Load_UnknownPage(t *testing.T) {
	svc := newPages(map[string]*remoteStore{}, nil)

	_, err := svc.Load(context.Background(), signedIn(domain.RoleAdmin), "trips")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPageService_AdminOnlyPage(t *testing.T) {
	svc := newPages(map[string]*remoteStore{"/drayage": drayageStore()}, nil)

	_, err := svc.Load(context.Background(), signedIn(domain.RoleDispatcher), resources.DrayageName)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	st, err := svc.Load(context.Background(), signedIn(domain.RoleAdmin), resources.DrayageName)
	require.NoError(t, err)
	assert.Len(t, st.Rows, 2)
	assert.False(t, st.ReadOnly)
}

func TestPageService_UsersReadOnlyForNonAdmin(t *testing.T) {
	stores := map[string]*remoteStore{"/users": {rows: []map[string]string{{"email": "a@b.co", "role": "Dispatcher"}}}}
	svc := newPages(stores, nil)
	sc := signedIn(domain.RoleDrayage)

	st, err := svc.Load(context.Background(), sc, resources.UsersName)
	require.NoError(t, err)
	assert.True(t, st.ReadOnly)

	_, err = svc.AddRow(sc, resources.UsersName)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestPageService_SendsCallerIdentity(t *testing.T) {
	var creds []upstream.Credentials
	svc := newPages(map[string]*remoteStore{}, &creds)

	_, err := svc.Load(context.Background(), signedIn(domain.RoleDispatcher), resources.ContainersName)

	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, upstream.Credentials{Email: "Dispatcher@portpilot.co", Role: domain.RoleDispatcher}, creds[0])
}

func TestPageService_NotLoaded(t *testing.T) {
	svc := newPages(map[string]*remoteStore{}, nil)

	_, err := svc.AddRow(signedIn(domain.RoleAdmin), resources.ContainersName)

	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestPageService_PagesArePerSession(t *testing.T) {
	svc := newPages(map[string]*remoteStore{}, nil)
	a, b := signedIn(domain.RoleDispatcher), signedIn(domain.RoleDispatcher)

	_, err := svc.Load(context.Background(), a, resources.ContainersName)
	require.NoError(t, err)
	_, err = svc.AddRow(a, resources.ContainersName)
	require.NoError(t, err)

	_, err = svc.State(b, resources.ContainersName, table.ViewOptions{})
	assert.ErrorIs(t, err, domain.ErrConflict, "another session's page must not be visible")

	svc.Discard(a.Key())
	_, err = svc.State(a, resources.ContainersName, table.ViewOptions{})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// ---- editing ---------------------------------------------------------------

func TestPageService_Load_Failure(t *testing.T) {
	stores := map[string]*remoteStore{"/my-containers": {fetchErr: upstream.ErrUnavailable}}
	svc := newPages(stores, nil)

	_, err := svc.Load(context.Background(), signedIn(domain.RoleDispatcher), resources.ContainersName)

	assert.ErrorIs(t, err, table.ErrLoadFailed)
	assert.ErrorIs(t, err, upstream.ErrUnavailable)
}

func TestPageService_EditAndBlurDerivesStatus(t *testing.T) {
	svc := newPages(map[string]*remoteStore{}, nil)
	sc := signedIn(domain.RoleDispatcher)
	_, err := svc.Load(context.Background(), sc, resources.ContainersName)
	require.NoError(t, err)

	row, err := svc.AddRow(sc, resources.ContainersName)
	require.NoError(t, err)
	assert.Equal(t, status.Planning, row.Get(status.Field))

	row, err = svc.EditCell(sc, resources.ContainersName, row.ID, status.FieldArrived, "3/5/2025")
	require.NoError(t, err)
	assert.Equal(t, "3/5/2025", row.Get(status.FieldArrived), "edits are stored verbatim")
	assert.Equal(t, status.Planning, row.Get(status.Field))

	row, err = svc.Blur(sc, resources.ContainersName, row.ID, status.FieldArrived)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-05", row.Get(status.FieldArrived))
	assert.Equal(t, status.Arrival, row.Get(status.Field))
}

func TestPageService_EditStatusRejected(t *testing.T) {
	svc := newPages(map[string]*remoteStore{}, nil)
	sc := signedIn(domain.RoleDispatcher)
	_, err := svc.Load(context.Background(), sc, resources.ContainersName)
	require.NoError(t, err)
	row, err := svc.AddRow(sc, resources.ContainersName)
	require.NoError(t, err)

	_, err = svc.EditCell(sc, resources.ContainersName, row.ID, status.Field, status.Delivered)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPageService_SelectDeleteSave(t *testing.T) {
	store := drayageStore()
	svc := newPages(map[string]*remoteStore{"/drayage": store}, nil)
	sc := signedIn(domain.RoleAdmin)
	st, err := svc.Load(context.Background(), sc, resources.DrayageName)
	require.NoError(t, err)

	require.NoError(t, svc.Select(sc, resources.DrayageName, st.Rows[0].ID, true))

	n, err := svc.DeleteSelected(sc, resources.DrayageName, false)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "unconfirmed delete keeps rows")

	n, err = svc.DeleteSelected(sc, resources.DrayageName, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := svc.Save(context.Background(), sc, resources.DrayageName)
	require.NoError(t, err)
	assert.Equal(t, service.SaveResult{Saved: 1, Refreshed: true}, res)
	require.Len(t, store.saved, 1)
	assert.Equal(t, "XYZ", store.saved[0][0]["code"])
}

func TestPageService_Save_RemoteError(t *testing.T) {
	store := drayageStore()
	store.saveErr = &upstream.APIError{Status: 400, Message: "duplicate code"}
	svc := newPages(map[string]*remoteStore{"/drayage": store}, nil)
	sc := signedIn(domain.RoleAdmin)
	_, err := svc.Load(context.Background(), sc, resources.DrayageName)
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), sc, resources.DrayageName)

	assert.ErrorIs(t, err, table.ErrSaveFailed)
	var apiErr *upstream.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "duplicate code", apiErr.Message)
}

func TestPageService_Save_UsersValidatedAgainstCompanyCodes(t *testing.T) {
	users := &remoteStore{rows: []map[string]string{{"email": "d@b.co", "role": "Drayage", "company_code": "DRY1"}}}
	svc := newPages(map[string]*remoteStore{"/users": users}, nil)
	sc := signedIn(domain.RoleAdmin)
	st, err := svc.Load(context.Background(), sc, resources.UsersName)
	require.NoError(t, err)

	_, err = svc.EditCell(sc, resources.UsersName, st.Rows[0].ID, resources.UserCompanyCode, "NOPE")
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), sc, resources.UsersName)

	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "Company Code must be a valid Drayage Code for d@b.co.")
	assert.Empty(t, users.saved, "invalid rows must not reach the remote API")
}

func TestPageService_State_SortAndFilter(t *testing.T) {
	svc := newPages(map[string]*remoteStore{"/drayage": drayageStore()}, nil)
	sc := signedIn(domain.RoleAdmin)
	_, err := svc.Load(context.Background(), sc, resources.DrayageName)
	require.NoError(t, err)

	st, err := svc.State(sc, resources.DrayageName, table.ViewOptions{SortKey: "code", Dir: table.Desc})
	require.NoError(t, err)
	require.Len(t, st.Rows, 2)
	assert.Equal(t, "XYZ", st.Rows[0].Get("code"))

	st, err = svc.State(sc, resources.DrayageName, table.ViewOptions{Query: "alp"})
	require.NoError(t, err)
	require.Len(t, st.Rows, 1)
	assert.Equal(t, 2, st.Total)
}

// ---- export / import -------------------------------------------------------

func TestPageService_Export(t *testing.T) {
	svc := newPages(map[string]*remoteStore{"/drayage": drayageStore()}, nil)
	sc := signedIn(domain.RoleAdmin)
	_, err := svc.Load(context.Background(), sc, resources.DrayageName)
	require.NoError(t, err)

	out, err := svc.Export(sc, resources.DrayageName, map[string]int{"code": 300})
	require.NoError(t, err)
	assert.Equal(t, "Drayage.xlsx", out.FileName)

	matrix, err := sheet.Read(bytes.NewReader(out.Data), out.FileName)
	require.NoError(t, err)
	assert.Equal(t, []string{"Drayage Code*", "Drayage Name", "Address"}, matrix[0])
	assert.Equal(t, "ABC", matrix[1][0])
}

func TestPageService_Import_Overwrite(t *testing.T) {
	svc := newPages(map[string]*remoteStore{"/drayage": drayageStore()}, nil)
	sc := signedIn(domain.RoleAdmin)
	_, err := svc.Load(context.Background(), sc, resources.DrayageName)
	require.NoError(t, err)

	res, err := svc.Import(sc, resources.DrayageName, service.ImportOverwrite,
		workbook(t, resources.Drayage(), []string{"NEW", "Fresh", ""}), "Drayage.xlsx")

	require.NoError(t, err)
	assert.True(t, res.Done)
	st, err := svc.State(sc, resources.DrayageName, table.ViewOptions{})
	require.NoError(t, err)
	require.Len(t, st.Rows, 1)
	assert.Equal(t, "NEW", st.Rows[0].Get("code"))
}

func TestPageService_Import_MissingColumns(t *testing.T) {
	svc := newPages(map[string]*remoteStore{"/drayage": drayageStore()}, nil)
	sc := signedIn(domain.RoleAdmin)
	_, err := svc.Load(context.Background(), sc, resources.DrayageName)
	require.NoError(t, err)

	data, err := sheet.Write("Drayage", [][]string{{"Code", "Name"}, {"A", "B"}}, nil)
	require.NoError(t, err)

	_, err = svc.Import(sc, resources.DrayageName, service.ImportAppend, bytes.NewReader(data), "x.xlsx")

	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "Missing: Drayage Code*, Drayage Name, Address")
}

func TestPageService_Import_AppendWithConflicts(t *testing.T) {
	svc := newPages(map[string]*remoteStore{"/drayage": drayageStore()}, nil)
	sc := signedIn(domain.RoleAdmin)
	_, err := svc.Load(context.Background(), sc, resources.DrayageName)
	require.NoError(t, err)

	res, err := svc.Import(sc, resources.DrayageName, service.ImportAppend, workbook(t, resources.Drayage(),
		[]string{"NEW", "Fresh", ""},
		[]string{"abc", "Alpha 2", ""},
		[]string{"XYZ", "Zulu 2", ""},
	), "Drayage.xlsx")
	require.NoError(t, err)
	require.NotNil(t, res.Pending)
	assert.False(t, res.Done)
	assert.Equal(t, "abc", res.Pending.Key)
	assert.Equal(t, 2, res.Pending.Position)
	assert.Equal(t, 3, res.Pending.Total)

	// Every other mutation waits for the decision.
	_, err = svc.AddRow(sc, resources.DrayageName)
	assert.ErrorIs(t, err, domain.ErrConflict)
	st, err := svc.State(sc, resources.DrayageName, table.ViewOptions{})
	require.NoError(t, err)
	assert.NotNil(t, st.Pending)
	assert.Len(t, st.Rows, 2, "nothing is merged before the import completes")

	res, err = svc.Decide(sc, resources.DrayageName, table.Overwrite)
	require.NoError(t, err)
	require.NotNil(t, res.Pending)
	assert.Equal(t, "XYZ", res.Pending.Key)

	res, err = svc.Decide(sc, resources.DrayageName, table.Skip)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Nil(t, res.Pending)
	assert.Equal(t, table.MergeStats{Added: 1, Overwritten: 1, Skipped: 1}, res.Stats)

	st, err = svc.State(sc, resources.DrayageName, table.ViewOptions{})
	require.NoError(t, err)
	require.Len(t, st.Rows, 3)
	assert.Equal(t, "Alpha 2", st.Rows[0].Get("name"))
	assert.Equal(t, "Zulu", st.Rows[1].Get("name"))
	assert.Equal(t, "NEW", st.Rows[2].Get("code"))
}

func TestPageService_Import_CancelDiscardsEverything(t *testing.T) {
	svc := newPages(map[string]*remoteStore{"/drayage": drayageStore()}, nil)
	sc := signedIn(domain.RoleAdmin)
	_, err := svc.Load(context.Background(), sc, resources.DrayageName)
	require.NoError(t, err)

	_, err = svc.Import(sc, resources.DrayageName, service.ImportAppend, workbook(t, resources.Drayage(),
		[]string{"NEW", "Fresh", ""},
		[]string{"ABC", "Alpha 2", ""},
	), "Drayage.xlsx")
	require.NoError(t, err)

	res, err := svc.Decide(sc, resources.DrayageName, table.Cancel)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.True(t, res.Stats.Cancelled)

	st, err := svc.State(sc, resources.DrayageName, table.ViewOptions{})
	require.NoError(t, err)
	require.Len(t, st.Rows, 2)
	assert.Equal(t, "Alpha", st.Rows[0].Get("name"))

	_, err = svc.AddRow(sc, resources.DrayageName)
	assert.NoError(t, err, "the page is editable again after the import ends")
}

func TestPageService_Decide_NothingPending(t *testing.T) {
	svc := newPages(map[string]*remoteStore{"/drayage": drayageStore()}, nil)
	sc := signedIn(domain.RoleAdmin)
	_, err := svc.Load(context.Background(), sc, resources.DrayageName)
	require.NoError(t, err)

	_, err = svc.Decide(sc, resources.DrayageName, table.Skip)

	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestParseImportMode(t *testing.T) {
	m, err := service.ParseImportMode("append")
	require.NoError(t, err)
	assert.Equal(t, service.ImportAppend, m)

	_, err = service.ParseImportMode("merge")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
