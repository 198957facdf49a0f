package table

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrStaleMerge is returned when committing a merge whose base row set has
// changed since the merge began.
var ErrStaleMerge = errors.New("row set changed during import")

// ErrMergeNotDone is returned when committing a merge that still awaits a
// decision or was cancelled.
var ErrMergeNotDone = errors.New("import not finished")

// ErrNoConflict is returned when resolving a merge that is not paused.
var ErrNoConflict = errors.New("no pending conflict")

// Decision answers an import conflict.
type Decision string

const (
	// Overwrite replaces the existing row's fields with the imported ones.
	Overwrite Decision = "overwrite"
	// Skip keeps the existing row and drops the imported one.
	Skip Decision = "skip"
	// Cancel abandons the whole import.
	Cancel Decision = "cancel"
)

// ParseDecision maps user input to a Decision. Anything that is not a
// recognisable overwrite or cancel answer is treated as Skip, matching the
// behaviour of dismissing the dialog.
func ParseDecision(s string) Decision {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "o", "overwrite":
		return Overwrite
	case "c", "cancel":
		return Cancel
	default:
		return Skip
	}
}

// Conflict describes an imported row whose key already exists.
type Conflict struct {
	Key      string `json:"key"`
	Existing Row    `json:"existing"`
	Incoming Row    `json:"incoming"`

	// Position is the 1-based index of the incoming row in the import.
	Position int `json:"position"`
	Total    int `json:"total"`
}

// MergeStats counts the outcome of an append import.
type MergeStats struct {
	Added       int  `json:"added"`
	Overwritten int  `json:"overwritten"`
	Skipped     int  `json:"skipped"`
	Cancelled   bool `json:"cancelled"`
}

// Merge is a resumable append import. It works on a private copy of the
// editor's rows, pausing at every imported row whose key is already present
// until Resolve is called. Nothing reaches the editor until Commit, so a
// cancelled merge leaves the editor exactly as it was.
type Merge struct {
	keyField    string
	baseVersion uint64

	rows     []Row
	index    map[string]int
	incoming []Row
	next     int
	pending  *Conflict
	stats    MergeStats
}

// BeginAppend starts merging rows into a copy of the current row set keyed on
// the schema key field. Rows with an empty key are always appended. A new
// key is appended and remembered, so a second imported row with the same
// key is a conflict too.
func (e *Editor) BeginAppend(rows []Row) *Merge {
	m := &Merge{
		keyField:    e.schema.KeyField,
		baseVersion: e.version,
		rows:        cloneRows(e.rows),
		index:       make(map[string]int, len(e.rows)),
		incoming:    cloneRows(rows),
	}
	for i, r := range m.rows {
		if k := normalizeKey(r.Fields[m.keyField]); k != "" {
			if _, ok := m.index[k]; !ok {
				m.index[k] = i
			}
		}
	}
	m.advance()
	return m
}

// advance merges incoming rows until one conflicts or none are left.
func (m *Merge) advance() {
	for m.next < len(m.incoming) {
		in := m.incoming[m.next]
		k := normalizeKey(in.Fields[m.keyField])
		if at, ok := m.index[k]; ok && k != "" {
			m.pending = &Conflict{
				Key:      strings.TrimSpace(in.Fields[m.keyField]),
				Existing: m.rows[at].Clone(),
				Incoming: in.Clone(),
				Position: m.next + 1,
				Total:    len(m.incoming),
			}
			return
		}
		in.ID = newID()
		m.rows = append(m.rows, in)
		if k != "" {
			m.index[k] = len(m.rows) - 1
		}
		m.stats.Added++
		m.next++
	}
}

// Pending returns the conflict awaiting a decision, if any.
func (m *Merge) Pending() (Conflict, bool) {
	if m.pending == nil {
		return Conflict{}, false
	}
	return *m.pending, true
}

// Resolve answers the pending conflict and continues merging.
func (m *Merge) Resolve(d Decision) error {
	if m.pending == nil {
		return fmt.Errorf("table.Merge.Resolve: %w", ErrNoConflict)
	}
	in := m.incoming[m.next]
	at := m.index[normalizeKey(in.Fields[m.keyField])]

	switch d {
	case Cancel:
		m.pending = nil
		m.stats.Cancelled = true
		m.rows = nil
		m.next = len(m.incoming)
		return nil
	case Overwrite:
		m.rows[at] = Row{ID: m.rows[at].ID, Fields: in.Clone().Fields}
		m.stats.Overwritten++
	default:
		m.stats.Skipped++
	}

	m.pending = nil
	m.next++
	m.advance()
	return nil
}

// Done reports whether every imported row has been handled or the merge was cancelled.
func (m *Merge) Done() bool {
	return m.pending == nil && m.next >= len(m.incoming)
}

// Cancelled reports whether the merge was cancelled.
func (m *Merge) Cancelled() bool {
	return m.stats.Cancelled
}

// Stats returns the counts so far.
func (m *Merge) Stats() MergeStats {
	return m.stats
}

// Rows returns a copy of the merged row set. It is nil once cancelled.
func (m *Merge) Rows() []Row {
	if m.stats.Cancelled {
		return nil
	}
	return cloneRows(m.rows)
}

// Commit replaces the editor's rows with the merged set and clears the
// selection. The merge must be done, not cancelled, and started from the
// editor's current state.
func (e *Editor) Commit(m *Merge) error {
	if !m.Done() || m.Cancelled() {
		return fmt.Errorf("table.Editor.Commit: %w", ErrMergeNotDone)
	}
	if m.baseVersion != e.version {
		return fmt.Errorf("table.Editor.Commit: %w", ErrStaleMerge)
	}
	e.touch()
	e.rows = cloneRows(m.rows)
	e.selected = map[string]bool{}
	return nil
}

// Resolver decides import conflicts for Append.
type Resolver interface {
	Resolve(ctx context.Context, c Conflict) (Decision, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, c Conflict) (Decision, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, c Conflict) (Decision, error) {
	return f(ctx, c)
}

// Append runs an append import to completion, asking r about each
// conflict, and commits the result unless it was cancelled. A resolver
// error abandons the import with the editor unchanged.
func (e *Editor) Append(ctx context.Context, rows []Row, r Resolver) (MergeStats, error) {
	m := e.BeginAppend(rows)
	for {
		c, ok := m.Pending()
		if !ok {
			break
		}
		d, err := r.Resolve(ctx, c)
		if err != nil {
			return m.Stats(), fmt.Errorf("table.Editor.Append: %w", err)
		}
		if err := m.Resolve(d); err != nil {
			return m.Stats(), fmt.Errorf("table.Editor.Append: %w", err)
		}
	}
	if m.Cancelled() {
		return m.Stats(), nil
	}
	if err := e.Commit(m); err != nil {
		return m.Stats(), fmt.Errorf("table.Editor.Append: %w", err)
	}
	return m.Stats(), nil
}
