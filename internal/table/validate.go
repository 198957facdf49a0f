package table

import (
	"fmt"
	"strings"

	"github.com/portpilot/portal/internal/domain"
)

// Validator is an extra whole-set check run before save. Returned errors
// should wrap domain.ErrValidation.
type Validator func(rows []Row) error

// Validate checks that every required column is filled in each row and that
// no two rows share a key value (trimmed, case-insensitive). The duplicate
// error names every offending value. Extra validators run last; the first
// failure is returned.
func (e *Editor) Validate(extra ...Validator) error {
	return ValidateRows(e.schema, e.rows, extra...)
}

// ValidateRows is Validate for an arbitrary row set.
func ValidateRows(schema Schema, rows []Row, extra ...Validator) error {
	for _, c := range schema.Columns {
		if !c.Required {
			continue
		}
		for _, r := range rows {
			if strings.TrimSpace(r.Fields[c.Key]) == "" {
				return fmt.Errorf("%w: %s is required.", domain.ErrValidation, c.Name())
			}
		}
	}

	if schema.KeyField != "" {
		if dups := duplicateKeys(rows, schema.KeyField); len(dups) > 0 {
			name := schema.KeyField
			if c, ok := schema.Column(schema.KeyField); ok {
				name = c.Name()
			}
			return fmt.Errorf("%w: Duplicate %s: %s", domain.ErrValidation, name, strings.Join(dups, ", "))
		}
	}

	for _, v := range extra {
		if err := v(rows); err != nil {
			return err
		}
	}
	return nil
}

// duplicateKeys returns each key value that appears more than once, as first
// written, in order of its second appearance. Empty keys are ignored.
func duplicateKeys(rows []Row, key string) []string {
	first := map[string]string{}
	reported := map[string]bool{}
	var dups []string
	for _, r := range rows {
		raw := strings.TrimSpace(r.Fields[key])
		k := normalizeKey(raw)
		if k == "" {
			continue
		}
		if _, ok := first[k]; !ok {
			first[k] = raw
			continue
		}
		if !reported[k] {
			reported[k] = true
			dups = append(dups, first[k])
		}
	}
	return dups
}
