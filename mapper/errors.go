package mapper

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMapping is the sentinel of all mapping failures.
var ErrMapping = errors.New("aggregate: mapping failed")

// MappingError is returned when an object graph and its rows do not
// match the built schema: a required column is absent, a required field
// has no value, or a value has the wrong type. Mapping errors are never
// retried.
type MappingError struct {
	Type   string // Type being mapped.
	Field  string // Field path, if any.
	Table  string // Table, if any.
	Column string // Column, if any.
	Msg    string
	Err    error
}

// Error returns the error string.
func (e *MappingError) Error() string {
	var b strings.Builder
	b.WriteString("aggregate: mapping ")
	b.WriteString(e.Type)
	if e.Field != "" {
		b.WriteString(".")
		b.WriteString(e.Field)
	}
	if e.Table != "" {
		fmt.Fprintf(&b, " (%s", e.Table)
		if e.Column != "" {
			fmt.Fprintf(&b, ".%s", e.Column)
		}
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *MappingError) Unwrap() error {
	return e.Err
}

// Is reports whether the target is ErrMapping.
func (e *MappingError) Is(target error) bool {
	return target == ErrMapping
}

// IsMappingError returns true if the error is a MappingError.
func IsMappingError(err error) bool {
	if err == nil {
		return false
	}
	var e *MappingError
	return errors.As(err, &e)
}
