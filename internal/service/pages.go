package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/portpilot/portal/internal/domain"
	"github.com/portpilot/portal/internal/resources"
	"github.com/portpilot/portal/internal/session"
	"github.com/portpilot/portal/internal/sheet"
	"github.com/portpilot/portal/internal/table"
	"github.com/portpilot/portal/internal/upstream"
)

// Stores opens the remote row set behind a page on behalf of a caller.
type Stores interface {
	Store(endpoint string, creds upstream.Credentials) table.Store
}

// StoresFunc adapts a function to Stores.
type StoresFunc func(endpoint string, creds upstream.Credentials) table.Store

// Store calls f.
func (f StoresFunc) Store(endpoint string, creds upstream.Credentials) table.Store {
	return f(endpoint, creds)
}

// CodeLister returns the drayage and warehouse code lists the users page
// validates against.
type CodeLister interface {
	CompanyCodes(ctx context.Context, sc session.Context) domain.CompanyCodes
}

// ImportMode selects how an imported sheet is applied.
type ImportMode string

const (
	ImportAppend    ImportMode = "append"
	ImportOverwrite ImportMode = "overwrite"
)

// ParseImportMode validates a mode string.
func ParseImportMode(s string) (ImportMode, error) {
	switch m := ImportMode(s); m {
	case ImportAppend, ImportOverwrite:
		return m, nil
	default:
		return "", fmt.Errorf("%w: import mode must be append or overwrite", domain.ErrValidation)
	}
}

// PageState is what a page shows: its columns, the visible rows and, while an
// append import is paused, the conflict awaiting a decision.
type PageState struct {
	Resource string          `json:"resource"`
	Title    string          `json:"title"`
	KeyField string          `json:"key_field"`
	Columns  []table.Column  `json:"columns"`
	ReadOnly bool            `json:"read_only"`
	Rows     []table.Row     `json:"rows"`
	Total    int             `json:"total"`
	Selected []string        `json:"selected"`
	Pending  *table.Conflict `json:"pending,omitempty"`
}

// ImportResult reports the outcome of an import or of one conflict decision.
type ImportResult struct {
	Mode    ImportMode       `json:"mode"`
	Rows    int              `json:"rows"`
	Done    bool             `json:"done"`
	Stats   table.MergeStats `json:"stats"`
	Pending *table.Conflict  `json:"pending,omitempty"`
}

// SaveResult reports a successful save.
type SaveResult struct {
	Saved     int  `json:"saved"`
	Refreshed bool `json:"refreshed"`
}

// Export is a rendered workbook ready for download.
type Export struct {
	FileName string
	Data     []byte
}

type pageKey struct {
	session  string
	resource string
}

// page is one caller's working copy of a tabular page. mu serializes every
// operation on it in arrival order.
type page struct {
	mu     sync.Mutex
	def    resources.Page
	editor *table.Editor
	codes  domain.CompanyCodes
	merge  *table.Merge
	mode   ImportMode
}

// PageService owns the in-memory editors of every signed-in caller. Each
// (session, resource) pair has its own editor; rows are only sent to the
// remote API on Save.
type PageService struct {
	stores Stores
	codes  CodeLister
	log    *slog.Logger

	mu    sync.Mutex
	pages map[pageKey]*page
}

// NewPageService constructs a PageService.
func NewPageService(stores Stores, codes CodeLister, log *slog.Logger) *PageService {
	return &PageService{
		stores: stores,
		codes:  codes,
		log:    log,
		pages:  map[pageKey]*page{},
	}
}

// Load (re)fetches a page from the remote API, discarding unsaved edits and
// any paused import.
func (s *PageService) Load(ctx context.Context, sc session.Context, resource string) (PageState, error) {
	def, err := viewable(sc, resource)
	if err != nil {
		return PageState{}, fmt.Errorf("service.PageService.Load: %w", err)
	}

	p := s.page(sc, def)
	p.mu.Lock()
	defer p.mu.Unlock()

	var opts []table.Option
	p.codes = domain.CompanyCodes{}
	if def.Schema.Resource == resources.UsersName && sc.IsAdmin() {
		p.codes = s.codes.CompanyCodes(ctx, sc)
		opts = append(opts, table.WithEditHook(resources.UsersEditHook(p.codes)))
	}
	p.editor = table.NewEditor(def.Schema, s.stores.Store(def.Schema.Endpoint, credentials(sc)), opts...)
	p.merge = nil

	if err := p.editor.Load(ctx); err != nil {
		s.log.Warn("page load failed", "resource", resource, "error", err)
		return PageState{}, fmt.Errorf("service.PageService.Load: %w", err)
	}
	return p.state(sc, table.ViewOptions{}), nil
}

// State returns the loaded page, filtered and sorted by opts.
func (s *PageService) State(sc session.Context, resource string, opts table.ViewOptions) (PageState, error) {
	p, err := s.loaded(sc, resource)
	if err != nil {
		return PageState{}, fmt.Errorf("service.PageService.State: %w", err)
	}
	defer p.mu.Unlock()
	return p.state(sc, opts), nil
}

// AddRow prepends a blank row.
func (s *PageService) AddRow(sc session.Context, resource string) (table.Row, error) {
	p, err := s.editable(sc, resource)
	if err != nil {
		return table.Row{}, fmt.Errorf("service.PageService.AddRow: %w", err)
	}
	defer p.mu.Unlock()
	return p.editor.AddRow(), nil
}

// EditCell stores value in field of the row exactly as typed.
func (s *PageService) EditCell(sc session.Context, resource, rowID, field, value string) (table.Row, error) {
	p, err := s.editable(sc, resource)
	if err != nil {
		return table.Row{}, fmt.Errorf("service.PageService.EditCell: %w", err)
	}
	defer p.mu.Unlock()

	if err := p.editor.EditCellByID(rowID, field, value); err != nil {
		return table.Row{}, fmt.Errorf("service.PageService.EditCell: %w", err)
	}
	return p.row(rowID), nil
}

// Blur finishes editing field of the row: dates are normalized and derived
// values recomputed.
func (s *PageService) Blur(sc session.Context, resource, rowID, field string) (table.Row, error) {
	p, err := s.editable(sc, resource)
	if err != nil {
		return table.Row{}, fmt.Errorf("service.PageService.Blur: %w", err)
	}
	defer p.mu.Unlock()

	if err := p.editor.BlurByID(rowID, field); err != nil {
		return table.Row{}, fmt.Errorf("service.PageService.Blur: %w", err)
	}
	return p.row(rowID), nil
}

// Select marks or unmarks a row for deletion.
func (s *PageService) Select(sc session.Context, resource, rowID string, on bool) error {
	p, err := s.editable(sc, resource)
	if err != nil {
		return fmt.Errorf("service.PageService.Select: %w", err)
	}
	defer p.mu.Unlock()

	if err := p.editor.Select(rowID, on); err != nil {
		return fmt.Errorf("service.PageService.Select: %w", err)
	}
	return nil
}

// DeleteSelected removes the selected rows when confirmed and returns how
// many were removed. The removal is staged until Save.
func (s *PageService) DeleteSelected(sc session.Context, resource string, confirmed bool) (int, error) {
	p, err := s.editable(sc, resource)
	if err != nil {
		return 0, fmt.Errorf("service.PageService.DeleteSelected: %w", err)
	}
	defer p.mu.Unlock()
	return p.editor.DeleteSelected(confirmed), nil
}

// Save validates the page and replaces the remote row set with it.
func (s *PageService) Save(ctx context.Context, sc session.Context, resource string) (SaveResult, error) {
	p, err := s.editable(sc, resource)
	if err != nil {
		return SaveResult{}, fmt.Errorf("service.PageService.Save: %w", err)
	}
	defer p.mu.Unlock()

	var extra []table.Validator
	if resource == resources.UsersName {
		extra = append(extra, resources.UsersValidator(p.codes))
	}
	res, err := p.editor.Save(ctx, extra...)
	if err != nil {
		return SaveResult{}, fmt.Errorf("service.PageService.Save: %w", err)
	}
	if !res.Refreshed {
		s.log.Warn("reload after save failed", "resource", resource, "error", res.RefreshErr)
	}
	return SaveResult{Saved: res.Saved, Refreshed: res.Refreshed}, nil
}

// Export renders the page as a single-sheet workbook. widths are the caller's
// column widths in pixels by column key; missing ones use the defaults.
func (s *PageService) Export(sc session.Context, resource string, widths map[string]int) (Export, error) {
	p, err := s.loaded(sc, resource)
	if err != nil {
		return Export{}, fmt.Errorf("service.PageService.Export: %w", err)
	}
	defer p.mu.Unlock()

	schema := p.editor.Schema()
	cols := schema.ExportColumns()
	px := make([]int, len(cols))
	for i, c := range cols {
		px[i] = c.Width
		if w, ok := widths[c.Key]; ok {
			px[i] = w
		}
	}
	data, err := sheet.Write(schema.SheetName, p.editor.Export(), px)
	if err != nil {
		return Export{}, fmt.Errorf("service.PageService.Export: %w", err)
	}
	return Export{FileName: schema.FileName, Data: data}, nil
}

// Import reads a workbook and applies it. Overwrite replaces the row set.
// Append merges on the page key and pauses at the first imported key that
// already exists; the caller then answers with Decide.
func (s *PageService) Import(sc session.Context, resource string, mode ImportMode, r io.Reader, filename string) (ImportResult, error) {
	p, err := s.editable(sc, resource)
	if err != nil {
		return ImportResult{}, fmt.Errorf("service.PageService.Import: %w", err)
	}
	defer p.mu.Unlock()

	matrix, err := sheet.Read(r, filename)
	if err != nil {
		return ImportResult{}, fmt.Errorf("service.PageService.Import: %w", err)
	}
	rows, err := table.ParseRows(p.editor.Schema(), matrix)
	if err != nil {
		return ImportResult{}, fmt.Errorf("service.PageService.Import: %w", err)
	}

	if mode == ImportOverwrite {
		p.editor.Overwrite(rows)
		return ImportResult{Mode: mode, Rows: len(rows), Done: true}, nil
	}

	p.merge = p.editor.BeginAppend(rows)
	p.mode = mode
	res := ImportResult{Mode: mode, Rows: len(rows)}
	if err := p.settle(&res); err != nil {
		return ImportResult{}, fmt.Errorf("service.PageService.Import: %w", err)
	}
	return res, nil
}

// Decide answers the conflict a paused import is waiting on.
func (s *PageService) Decide(sc session.Context, resource string, d table.Decision) (ImportResult, error) {
	def, err := editableDef(sc, resource)
	if err != nil {
		return ImportResult{}, fmt.Errorf("service.PageService.Decide: %w", err)
	}
	p, err := s.lockLoaded(sc, def)
	if err != nil {
		return ImportResult{}, fmt.Errorf("service.PageService.Decide: %w", err)
	}
	defer p.mu.Unlock()

	if p.merge == nil {
		return ImportResult{}, fmt.Errorf("service.PageService.Decide: %w: no import is awaiting a decision", domain.ErrConflict)
	}
	if err := p.merge.Resolve(d); err != nil {
		return ImportResult{}, fmt.Errorf("service.PageService.Decide: %w", err)
	}
	res := ImportResult{Mode: p.mode}
	if err := p.settle(&res); err != nil {
		return ImportResult{}, fmt.Errorf("service.PageService.Decide: %w", err)
	}
	return res, nil
}

// Discard drops every page held for the session key, e.g. on sign-out.
func (s *PageService) Discard(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.pages {
		if k.session == key {
			delete(s.pages, k)
		}
	}
}

// settle fills res from the current merge and commits it once finished.
func (p *page) settle(res *ImportResult) error {
	m := p.merge
	res.Stats = m.Stats()
	if c, ok := m.Pending(); ok {
		res.Pending = &c
		return nil
	}
	res.Done = true
	p.merge = nil
	if m.Cancelled() {
		return nil
	}
	return p.editor.Commit(m)
}

func (p *page) state(sc session.Context, opts table.ViewOptions) PageState {
	schema := p.editor.Schema()
	rows := p.editor.View(opts)
	st := PageState{
		Resource: schema.Resource,
		Title:    schema.Title,
		KeyField: schema.KeyField,
		Columns:  schema.Columns,
		ReadOnly: p.def.EditAdminOnly && !sc.IsAdmin(),
		Rows:     rows,
		Total:    p.editor.Len(),
		Selected: p.editor.Selected(),
	}
	if p.merge != nil {
		if c, ok := p.merge.Pending(); ok {
			st.Pending = &c
		}
	}
	return st
}

func (p *page) row(id string) table.Row {
	for _, r := range p.editor.Rows() {
		if r.ID == id {
			return r
		}
	}
	return table.Row{}
}

// page returns the caller's page, creating an empty one on first use.
func (s *PageService) page(sc session.Context, def resources.Page) *page {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pageKey{session: sc.Key(), resource: def.Schema.Resource}
	p, ok := s.pages[k]
	if !ok {
		p = &page{def: def}
		s.pages[k] = p
	}
	return p
}

// lockLoaded returns the caller's page locked. It fails with
// domain.ErrConflict when the page has not been loaded.
func (s *PageService) lockLoaded(sc session.Context, def resources.Page) (*page, error) {
	p := s.page(sc, def)
	p.mu.Lock()
	if p.editor == nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s has not been loaded", domain.ErrConflict, def.Schema.Title)
	}
	return p, nil
}

// loaded returns the locked page for read access.
func (s *PageService) loaded(sc session.Context, resource string) (*page, error) {
	def, err := viewable(sc, resource)
	if err != nil {
		return nil, err
	}
	return s.lockLoaded(sc, def)
}

// editable returns the locked page for a mutation. Mutations are refused
// while an import awaits a decision.
func (s *PageService) editable(sc session.Context, resource string) (*page, error) {
	def, err := editableDef(sc, resource)
	if err != nil {
		return nil, err
	}
	p, err := s.lockLoaded(sc, def)
	if err != nil {
		return nil, err
	}
	if p.merge != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: an import is awaiting a decision", domain.ErrConflict)
	}
	return p, nil
}

// viewable checks that the caller may see resource.
func viewable(sc session.Context, resource string) (resources.Page, error) {
	if !sc.IsSignedIn() {
		return resources.Page{}, fmt.Errorf("%w: Please sign in.", domain.ErrUnauthorized)
	}
	def, ok := resources.Lookup(resource)
	if !ok {
		return resources.Page{}, fmt.Errorf("%w: no page named %q", domain.ErrNotFound, resource)
	}
	if def.AdminOnly && !sc.IsAdmin() {
		return resources.Page{}, fmt.Errorf("%w: %s is for administrators only.", domain.ErrForbidden, def.Schema.Title)
	}
	return def, nil
}

// editableDef checks that the caller may change resource.
func editableDef(sc session.Context, resource string) (resources.Page, error) {
	def, err := viewable(sc, resource)
	if err != nil {
		return resources.Page{}, err
	}
	if def.EditAdminOnly && !sc.IsAdmin() {
		return resources.Page{}, fmt.Errorf("%w: %s is read-only.", domain.ErrForbidden, def.Schema.Title)
	}
	return def, nil
}

// credentials identifies the caller to the remote API.
func credentials(sc session.Context) upstream.Credentials {
	u := sc.CurrentUser()
	return upstream.Credentials{Email: u.Email, Role: u.Role}
}

