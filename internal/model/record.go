package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/the-ledger-must-balance/internal/common"
)

// Record is one parsed entry of a source file, keyed by field name.
// The zero value is an empty record. Records are never modified in place.
type Record struct {
	fields map[string]string
}

// NewRecord copies fields into a new record.
func NewRecord(fields map[string]string) Record {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return Record{fields: copied}
}

// Value returns the field value, or "" when the field is absent.
func (r Record) Value(field string) string {
	return r.fields[field]
}

// Lookup returns the field value and whether it is present.
func (r Record) Lookup(field string) (string, bool) {
	v, ok := r.fields[field]
	return v, ok
}

// Require returns the field value or ErrMissingField.
func (r Record) Require(field string) (string, error) {
	v, ok := r.fields[field]
	if !ok {
		return "", fmt.Errorf("%w: %s", common.ErrMissingField, field)
	}
	return v, nil
}

// With returns a copy of the record with field set to value.
func (r Record) With(field, value string) Record {
	next := NewRecord(r.fields)
	next.fields[field] = value
	return next
}

// Fields returns the field names in sorted order.
func (r Record) Fields() []string {
	names := make([]string, 0, len(r.fields))
	for k := range r.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

func (r Record) String() string {
	parts := make([]string, 0, len(r.fields))
	for _, name := range r.Fields() {
		parts = append(parts, fmt.Sprintf("%s=%q", name, r.fields[name]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
