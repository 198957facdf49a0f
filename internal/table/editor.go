package table

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/portpilot/portal/internal/datefmt"
	"github.com/portpilot/portal/internal/domain"
)

// ErrLoadFailed wraps every failure to fetch the row set.
var ErrLoadFailed = errors.New("load failed")

// ErrSaveFailed wraps every failure of the bulk replace call.
var ErrSaveFailed = errors.New("save failed")

// Store is the remote side of a tabular resource.
// Fetch returns the full row set; Replace overwrites it in one call.
type Store interface {
	Fetch(ctx context.Context) ([]map[string]string, error)
	Replace(ctx context.Context, rows []map[string]string) error
}

// EditHook runs after a cell edit has been applied to fields.
type EditHook func(fields map[string]string, key string)

// Option configures an Editor.
type Option func(*Editor)

// WithEditHook registers a hook that runs after every successful cell edit.
func WithEditHook(h EditHook) Option {
	return func(e *Editor) { e.onEdit = append(e.onEdit, h) }
}

// Editor holds the in-memory row set of one page. It is not safe for
// concurrent use; callers serialize access.
type Editor struct {
	schema   Schema
	store    Store
	onEdit   []EditHook
	rows     []Row
	selected map[string]bool

	// version increments on every mutation so a Merge started against an
	// older row set cannot be committed.
	version uint64
}

// NewEditor returns an empty Editor for schema backed by store.
func NewEditor(schema Schema, store Store, opts ...Option) *Editor {
	e := &Editor{
		schema:   schema,
		store:    store,
		selected: map[string]bool{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Schema returns the schema the editor was built with.
func (e *Editor) Schema() Schema {
	return e.schema
}

// Rows returns a copy of the current row set in order.
func (e *Editor) Rows() []Row {
	return cloneRows(e.rows)
}

// Len returns the number of rows.
func (e *Editor) Len() int {
	return len(e.rows)
}

// Load replaces the row set with the remote one. Rows without an identifier
// get a fresh one and the derived field is recomputed. On failure the row
// set is left empty and the error wraps ErrLoadFailed.
func (e *Editor) Load(ctx context.Context) error {
	e.touch()
	e.rows = nil
	e.selected = map[string]bool{}

	remote, err := e.store.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("table.Editor.Load: %w: %w", ErrLoadFailed, err)
	}
	e.rows = e.fromRemote(remote)
	return nil
}

// fromRemote converts fetched records into rows with unique identifiers.
func (e *Editor) fromRemote(remote []map[string]string) []Row {
	rows := make([]Row, 0, len(remote))
	seen := make(map[string]bool, len(remote))
	for _, rec := range remote {
		fields := e.schema.newFields()
		for k, v := range rec {
			fields[k] = v
		}
		r := Row{Fields: fields}
		ensureID(&r)
		if seen[r.ID] {
			r.ID = newID()
		}
		seen[r.ID] = true

		if e.schema.OnLoad != nil {
			e.schema.OnLoad(r.Fields)
		}
		e.schema.derive(r.Fields)
		rows = append(rows, r)
	}
	return rows
}

// AddRow prepends a new row with default values and returns it.
func (e *Editor) AddRow() Row {
	e.touch()
	r := NewRow(e.schema.newFields())
	e.schema.derive(r.Fields)
	e.rows = append([]Row{r}, e.rows...)
	return r.Clone()
}

// EditCell sets key of the row at index to value exactly as given.
// Date values are not normalized here; see Blur.
func (e *Editor) EditCell(index int, key, value string) error {
	if err := e.checkIndex(index); err != nil {
		return fmt.Errorf("table.Editor.EditCell: %w", err)
	}
	col, ok := e.schema.Column(key)
	if !ok {
		return fmt.Errorf("table.Editor.EditCell: %w: unknown field %q", domain.ErrValidation, key)
	}
	if col.ReadOnly {
		return fmt.Errorf("table.Editor.EditCell: %w: %s cannot be edited", domain.ErrValidation, col.Name())
	}

	e.touch()
	fields := e.rows[index].Fields
	fields[key] = value
	for _, h := range e.onEdit {
		h(fields, key)
	}
	return nil
}

// EditCellByID is EditCell addressed by row identifier.
func (e *Editor) EditCellByID(id, key, value string) error {
	i, err := e.indexOf(id)
	if err != nil {
		return fmt.Errorf("table.Editor.EditCellByID: %w", err)
	}
	return e.EditCell(i, key, value)
}

// Blur normalizes key of the row at index when it is a date column, then
// recomputes the derived field if key is one of its dependencies.
func (e *Editor) Blur(index int, key string) error {
	if err := e.checkIndex(index); err != nil {
		return fmt.Errorf("table.Editor.Blur: %w", err)
	}
	col, ok := e.schema.Column(key)
	if !ok {
		return fmt.Errorf("table.Editor.Blur: %w: unknown field %q", domain.ErrValidation, key)
	}

	e.touch()
	fields := e.rows[index].Fields
	if col.IsDate() {
		fields[key] = datefmt.Normalize(fields[key], col.Type == DateTime)
	}
	if d := e.schema.Derived; d != nil && d.dependsOn(key) {
		e.schema.derive(fields)
	}
	return nil
}

// BlurByID is Blur addressed by row identifier.
func (e *Editor) BlurByID(id, key string) error {
	i, err := e.indexOf(id)
	if err != nil {
		return fmt.Errorf("table.Editor.BlurByID: %w", err)
	}
	return e.Blur(i, key)
}

// Select adds or removes the row with id from the selection.
func (e *Editor) Select(id string, on bool) error {
	if _, err := e.indexOf(id); err != nil {
		return fmt.Errorf("table.Editor.Select: %w", err)
	}
	if on {
		e.selected[id] = true
	} else {
		delete(e.selected, id)
	}
	return nil
}

// Selected returns the selected identifiers in row order.
func (e *Editor) Selected() []string {
	out := []string{}
	for _, r := range e.rows {
		if e.selected[r.ID] {
			out = append(out, r.ID)
		}
	}
	return out
}

// IsSelected reports whether id is selected.
func (e *Editor) IsSelected(id string) bool {
	return e.selected[id]
}

// DeleteSelected removes every selected row and clears the selection when
// confirmed is true, returning the number removed. Without confirmation the
// row set is unchanged. Removal is staged until the next Save.
func (e *Editor) DeleteSelected(confirmed bool) int {
	if !confirmed || len(e.selected) == 0 {
		return 0
	}
	e.touch()
	kept := e.rows[:0]
	removed := 0
	for _, r := range e.rows {
		if e.selected[r.ID] {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	e.rows = kept
	e.selected = map[string]bool{}
	return removed
}

// Overwrite replaces the row set with rows, giving each a fresh identifier.
func (e *Editor) Overwrite(rows []Row) {
	e.touch()
	out := make([]Row, len(rows))
	for i, r := range rows {
		c := r.Clone()
		c.ID = newID()
		e.schema.derive(c.Fields)
		out[i] = c
	}
	e.rows = out
	e.selected = map[string]bool{}
}

// Payload builds the records sent on save: only schema columns, with the
// column's Trim and Lower transforms applied and no identifier.
func (e *Editor) Payload() []map[string]string {
	out := make([]map[string]string, len(e.rows))
	for i, r := range e.rows {
		rec := make(map[string]string, len(e.schema.Columns))
		for _, c := range e.schema.Columns {
			v := r.Fields[c.Key]
			if c.Trim {
				v = strings.TrimSpace(v)
			}
			if c.Lower {
				v = strings.ToLower(v)
			}
			rec[c.Key] = v
		}
		out[i] = rec
	}
	return out
}

// SaveResult reports what Save did after the remote replace succeeded.
type SaveResult struct {
	Saved int

	// Refreshed is false when the follow-up fetch failed; the local rows are
	// kept and RefreshErr holds the cause.
	Refreshed  bool
	RefreshErr error
}

// Save validates the row set, replaces the remote set with it and then
// re-fetches to pick up server-side values. Validation failures return
// before any network call. Remote failures wrap ErrSaveFailed.
func (e *Editor) Save(ctx context.Context, extra ...Validator) (SaveResult, error) {
	if err := e.Validate(extra...); err != nil {
		return SaveResult{}, fmt.Errorf("table.Editor.Save: %w", err)
	}

	payload := e.Payload()
	if err := e.store.Replace(ctx, payload); err != nil {
		return SaveResult{}, fmt.Errorf("table.Editor.Save: %w: %w", ErrSaveFailed, err)
	}

	result := SaveResult{Saved: len(payload)}
	remote, err := e.store.Fetch(ctx)
	if err != nil {
		result.RefreshErr = err
		return result, nil
	}
	e.touch()
	e.rows = e.fromRemote(remote)
	e.selected = map[string]bool{}
	result.Refreshed = true
	return result, nil
}

func (e *Editor) touch() {
	e.version++
}

func (e *Editor) checkIndex(index int) error {
	if index < 0 || index >= len(e.rows) {
		return fmt.Errorf("row %d: %w", index, domain.ErrNotFound)
	}
	return nil
}

func (e *Editor) indexOf(id string) (int, error) {
	for i, r := range e.rows {
		if r.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("row %q: %w", id, domain.ErrNotFound)
}
