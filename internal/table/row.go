package table

import "github.com/google/uuid"

// legacyIDField is where older clients stored their row identifier. A string
// value found there on load is kept as the row's ID and dropped from Fields.
const legacyIDField = "_id"

// Row is one record of a tabular resource. ID is a process-unique
// identifier used for selection and deletion tracking; it is never sent to
// the remote store.
type Row struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Get returns the value of key, or "" when unset.
func (r Row) Get(key string) string {
	return r.Fields[key]
}

// Clone returns a deep copy of r.
func (r Row) Clone() Row {
	fields := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Row{ID: r.ID, Fields: fields}
}

// NewRow builds a row with a fresh identifier around fields.
func NewRow(fields map[string]string) Row {
	return Row{ID: newID(), Fields: fields}
}

// ensureID gives r an identifier if it lacks one.
func ensureID(r *Row) {
	if r.ID != "" {
		return
	}
	if legacy, ok := r.Fields[legacyIDField]; ok {
		delete(r.Fields, legacyIDField)
		if legacy != "" {
			r.ID = legacy
			return
		}
	}
	r.ID = newID()
}

func newID() string {
	return uuid.NewString()
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
