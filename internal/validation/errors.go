package validation

import (
	"sort"
	"strings"
)

// Error collects field-level validation messages.
type Error struct {
	Fields map[string]string
}

func New() *Error {
	return &Error{Fields: map[string]string{}}
}

// Add records the first message for a field; later ones are dropped.
func (e *Error) Add(field, msg string) {
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = msg
}

func (e *Error) Has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

// Err returns nil when nothing was recorded.
func (e *Error) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Field builds a single-field error.
func Field(field, msg string) error {
	e := New()
	e.Add(field, msg)
	return e
}
