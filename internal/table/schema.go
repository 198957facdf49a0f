// Package table implements the spreadsheet-like row editor shared by every
// tabular page. A page supplies a Schema and a Store; the Editor provides
// load, add, edit, blur normalization, selection, staged deletion,
// validation, bulk save, spreadsheet export and import with keyed merging.
package table

import "strings"

// ColumnType is the semantic type of a column's values.
type ColumnType string

const (
	// Text values are kept as typed.
	Text ColumnType = "text"
	// Date values are normalized to YYYY-MM-DD on blur and import.
	Date ColumnType = "date"
	// DateTime values are normalized to YYYY-MM-DD HH:MM:SS on blur and import.
	DateTime ColumnType = "datetime"
)

// Column describes one field of a tabular resource.
type Column struct {
	// Key is the field name used in rows and in the remote payload.
	Key string `json:"key"`

	// Label is the header shown on screen and written to exported sheets.
	// Imported sheets must carry exactly this text.
	Label string `json:"label"`

	Type ColumnType `json:"type"`

	// Width is the default on-screen width in pixels.
	Width int `json:"width"`

	// Required columns must be non-empty (after trimming) in every row on save.
	Required bool `json:"required,omitempty"`

	// ReadOnly columns reject direct edits. Derived columns are read-only.
	ReadOnly bool `json:"read_only,omitempty"`

	// Trim and Lower are applied to the value when building the save payload.
	Trim  bool `json:"-"`
	Lower bool `json:"-"`

	// Secret columns are editable but never exported or expected on import.
	Secret bool `json:"secret,omitempty"`

	Placeholder string `json:"placeholder,omitempty"`
}

// IsDate reports whether the column holds a date or date-time value.
func (c Column) IsDate() bool {
	return c.Type == Date || c.Type == DateTime
}

// Name is the label without the trailing required-marker asterisk.
func (c Column) Name() string {
	return strings.TrimSpace(strings.TrimSuffix(c.Label, "*"))
}

// Derivation computes a read-only field from other fields of the same row.
type Derivation struct {
	Field     string
	DependsOn []string
	Derive    func(fields map[string]string) string
}

func (d *Derivation) dependsOn(key string) bool {
	for _, k := range d.DependsOn {
		if k == key {
			return true
		}
	}
	return false
}

// Schema parameterizes an Editor for one resource.
type Schema struct {
	// Resource is the short name used in portal URLs, e.g. "drayage".
	Resource string `json:"resource"`

	Title string `json:"title"`

	// Endpoint is the path of the resource on the remote API.
	Endpoint string `json:"-"`

	// SheetName and FileName name the exported workbook.
	SheetName string `json:"-"`
	FileName  string `json:"-"`

	Columns []Column `json:"columns"`

	// KeyField is the business key that must be unique (case-insensitive)
	// and that append imports merge on.
	KeyField string `json:"key_field"`

	// NewRow holds default values for added rows.
	NewRow map[string]string `json:"-"`

	// Derived, when set, is recomputed on row creation and on blur of any
	// field it depends on.
	Derived *Derivation `json:"-"`

	// OnLoad adjusts rows fetched from the remote store.
	OnLoad func(fields map[string]string) `json:"-"`
}

// Column returns the column with the given key.
func (s Schema) Column(key string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// ExportColumns returns the columns written to and expected from sheets.
func (s Schema) ExportColumns() []Column {
	out := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		if !c.Secret {
			out = append(out, c)
		}
	}
	return out
}

// Labels returns the ordered export header.
func (s Schema) Labels() []string {
	cols := s.ExportColumns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Label
	}
	return out
}

// newFields returns a field map seeded with every column and the defaults.
func (s Schema) newFields() map[string]string {
	fields := make(map[string]string, len(s.Columns))
	for _, c := range s.Columns {
		fields[c.Key] = ""
	}
	for k, v := range s.NewRow {
		fields[k] = v
	}
	return fields
}

// derive refreshes the derived field of fields, if the schema has one.
func (s Schema) derive(fields map[string]string) {
	if s.Derived != nil {
		fields[s.Derived.Field] = s.Derived.Derive(fields)
	}
}

// normalizeKey folds a key value for uniqueness and merge comparisons.
func normalizeKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
