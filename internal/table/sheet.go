package table

import (
	"fmt"
	"strings"

	"github.com/portpilot/portal/internal/datefmt"
	"github.com/portpilot/portal/internal/domain"
)

// Export returns the row set as a matrix: the ordered column labels, then one
// line per row with every value rendered the way the page shows it.
func (e *Editor) Export() [][]string {
	cols := e.schema.ExportColumns()
	out := make([][]string, 0, len(e.rows)+1)
	out = append(out, e.schema.Labels())
	for _, r := range e.rows {
		line := make([]string, len(cols))
		for i, c := range cols {
			v := r.Fields[c.Key]
			if c.IsDate() {
				v = datefmt.Display(v, c.Type == DateTime)
			}
			line[i] = v
		}
		out = append(out, line)
	}
	return out
}

// ParseRows maps a sheet matrix onto rows of schema. The first line is the
// header and must contain every export label, matched exactly after
// trimming, in any order; extra headers are ignored. Date cells are
// normalized, other cells trimmed. Blank lines are skipped. The returned
// rows have fresh identifiers and derived fields computed.
func ParseRows(schema Schema, matrix [][]string) ([]Row, error) {
	if len(matrix) < 2 {
		return nil, fmt.Errorf("%w: Worksheet has no data.", domain.ErrValidation)
	}

	header := make([]string, len(matrix[0]))
	position := make(map[string]int, len(header))
	for i, h := range matrix[0] {
		header[i] = strings.TrimSpace(h)
		if _, dup := position[header[i]]; !dup {
			position[header[i]] = i
		}
	}

	cols := schema.ExportColumns()
	var missing []string
	for _, c := range cols {
		if _, ok := position[c.Label]; !ok {
			missing = append(missing, c.Label)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: Invalid columns.\nMissing: %s\nHeaders in file: %s",
			domain.ErrValidation, strings.Join(missing, ", "), strings.Join(nonEmpty(header), ", "))
	}

	rows := make([]Row, 0, len(matrix)-1)
	for _, line := range matrix[1:] {
		fields := schema.newFields()
		blank := true
		for _, c := range cols {
			cell := ""
			if i := position[c.Label]; i < len(line) {
				cell = line[i]
			}
			if c.IsDate() {
				cell = datefmt.NormalizeCell(cell, c.Type == DateTime)
			} else {
				cell = strings.TrimSpace(cell)
			}
			if cell != "" {
				blank = false
			}
			fields[c.Key] = cell
		}
		if blank {
			continue
		}
		schema.derive(fields)
		rows = append(rows, NewRow(fields))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: Worksheet has no data.", domain.ErrValidation)
	}
	return rows, nil
}

func nonEmpty(ss []string) []string {
	out := []string{}
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
