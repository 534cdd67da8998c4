// Package csvsource reads CSV exports into records using a fixed header layout.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/model"
)

// Column maps a CSV header to a record field name.
type Column struct {
	Header string
	Field  string
}

// Layout describes the exact header row of an export.
type Layout struct {
	Columns  []Column
	Required []string
}

// NewLayout builds a layout from header/field pairs.
func NewLayout(columns ...Column) Layout {
	return Layout{Columns: columns}
}

// WithRequired returns a copy of the layout requiring the given fields.
func (l Layout) WithRequired(fields ...string) Layout {
	required := make([]string, 0, len(l.Required)+len(fields))
	required = append(required, l.Required...)
	required = append(required, fields...)
	return Layout{Columns: l.Columns, Required: required}
}

// Headers returns the header names in order.
func (l Layout) Headers() []string {
	headers := make([]string, len(l.Columns))
	for i, c := range l.Columns {
		headers[i] = c.Header
	}
	return headers
}

// HasField reports whether a column maps to field.
func (l Layout) HasField(field string) bool {
	for _, c := range l.Columns {
		if c.Field == field {
			return true
		}
	}
	return false
}

// Validate checks that every required field has a column and that field
// names are unique.
func (l Layout) Validate() error {
	if len(l.Columns) == 0 {
		return fmt.Errorf("%w: layout has no columns", common.ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(l.Columns))
	for _, c := range l.Columns {
		if seen[c.Field] {
			return fmt.Errorf("%w: duplicate field %q", common.ErrInvalidConfig, c.Field)
		}
		seen[c.Field] = true
	}

	for _, field := range l.Required {
		if !seen[field] {
			return fmt.Errorf("%w: layout must have a field called %s", common.ErrMissingField, field)
		}
	}
	return nil
}

// ContentPattern returns a regex that matches the header row, tolerating
// quotes around names and whitespace after commas.
func (l Layout) ContentPattern() string {
	quoted := make([]string, len(l.Columns))
	for i, c := range l.Columns {
		quoted[i] = regexp.QuoteMeta(c.Header)
	}
	return `["']?` + strings.Join(quoted, `["']?,\s*["']?`) + `["']?`
}

// Row is one data row of the file.
type Row struct {
	Record model.Record
	// Number is the 1-based position of the row after the header.
	Number int
}

// ReadFile opens path and reads it with Read.
func ReadFile(path string, layout Layout) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := Read(f, layout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// Read parses r, verifies the header against layout and returns the data
// rows. Blank rows and rows whose first cell starts with '#' are skipped.
func Read(r io.Reader, layout Layout) ([]Row, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: file is empty", common.ErrHeaderMismatch)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if err := checkHeader(header, layout.Headers()); err != nil {
		return nil, err
	}

	var rows []Row
	for number := 1; ; number++ {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", number, err)
		}

		if isSkippable(values) {
			continue
		}
		if len(values) != len(layout.Columns) {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", number, len(layout.Columns), len(values))
		}

		fields := make(map[string]string, len(values))
		for i, c := range layout.Columns {
			fields[c.Field] = values[i]
		}
		rows = append(rows, Row{Number: number, Record: model.NewRecord(fields)})
	}

	return rows, nil
}

func checkHeader(got, want []string) error {
	normalized := make([]string, len(got))
	for i, h := range got {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		normalized[i] = strings.TrimSpace(h)
	}

	if len(normalized) != len(want) {
		return fmt.Errorf("%w: expected %d columns, got %d", common.ErrHeaderMismatch, len(want), len(normalized))
	}
	for i := range want {
		if normalized[i] != want[i] {
			return fmt.Errorf("%w: column %d is %q, expected %q", common.ErrHeaderMismatch, i+1, normalized[i], want[i])
		}
	}
	return nil
}

func isSkippable(values []string) bool {
	if len(values) == 0 {
		return true
	}
	if strings.HasPrefix(strings.TrimSpace(values[0]), "#") {
		return true
	}
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
