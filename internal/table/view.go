package table

import (
	"sort"
	"strings"
	"time"

	"github.com/portpilot/portal/internal/datefmt"
)

// SortDir is the direction of a column sort. The empty value means unsorted.
type SortDir string

const (
	Asc  SortDir = "asc"
	Desc SortDir = "desc"
	None SortDir = ""
)

// NextSortDir returns the direction after a header click:
// none, then ascending, then descending, then none again.
func NextSortDir(d SortDir) SortDir {
	switch d {
	case None:
		return Asc
	case Asc:
		return Desc
	default:
		return None
	}
}

// ViewOptions selects the ordering and filtering of View.
type ViewOptions struct {
	SortKey string
	Dir     SortDir
	Query   string
}

// View returns a filtered and ordered copy of the rows. Query matches
// case-insensitively against any schema column. Date columns sort
// chronologically with unparseable values first; others sort
// case-insensitively. The row set itself is not reordered.
func (e *Editor) View(opts ViewOptions) []Row {
	q := strings.ToLower(strings.TrimSpace(opts.Query))
	out := make([]Row, 0, len(e.rows))
	for _, r := range e.rows {
		if q == "" || e.matches(r, q) {
			out = append(out, r.Clone())
		}
	}

	col, ok := e.schema.Column(opts.SortKey)
	if !ok || opts.Dir == None {
		return out
	}

	less := textLess(col.Key)
	if col.IsDate() {
		less = dateLess(col.Key, col.Type == DateTime)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if opts.Dir == Desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

func (e *Editor) matches(r Row, q string) bool {
	for _, c := range e.schema.Columns {
		if c.Secret {
			continue
		}
		if strings.Contains(strings.ToLower(r.Fields[c.Key]), q) {
			return true
		}
	}
	return false
}

func textLess(key string) func(a, b Row) bool {
	return func(a, b Row) bool {
		return strings.ToLower(a.Fields[key]) < strings.ToLower(b.Fields[key])
	}
}

func dateLess(key string, dateTime bool) func(a, b Row) bool {
	at := func(r Row) time.Time {
		t, ok := datefmt.Parse(r.Fields[key], dateTime)
		if !ok {
			return time.Time{}
		}
		return t
	}
	return func(a, b Row) bool {
		return at(a).Before(at(b))
	}
}
