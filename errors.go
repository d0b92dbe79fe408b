package aggregate

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for repository operations.
var (
	// ErrNotFound is returned when a requested aggregate does not exist.
	ErrNotFound = errors.New("aggregate: not found")

	// ErrDuplicate is returned when a write collides with an existing key.
	ErrDuplicate = errors.New("aggregate: duplicate")

	// ErrConnection is returned when the database connection is unusable.
	ErrConnection = errors.New("aggregate: connection failure")

	// ErrTimeout is returned when an operation exceeded its deadline.
	ErrTimeout = errors.New("aggregate: timeout")

	// ErrConstraint is returned when the database rejected a write because
	// of a foreign-key, not-null or check constraint.
	ErrConstraint = errors.New("aggregate: constraint violation")
)

// Code classifies repository failures independently of the database backend.
type Code string

// Repository failure codes.
const (
	CodeNotFound   Code = "not_found"
	CodeDuplicate  Code = "duplicate"
	CodeConnection Code = "connection"
	CodeTimeout    Code = "timeout"
	CodeConstraint Code = "constraint"
	CodeUnknown    Code = "unknown"
)

// sentinel returns the sentinel error matching the code, if any.
func (c Code) sentinel() error {
	switch c {
	case CodeNotFound:
		return ErrNotFound
	case CodeDuplicate:
		return ErrDuplicate
	case CodeConnection:
		return ErrConnection
	case CodeTimeout:
		return ErrTimeout
	case CodeConstraint:
		return ErrConstraint
	}
	return nil
}

// Error is a classified repository error. It is produced by the connection
// layer from native driver errors and only propagated by the engine.
type Error struct {
	Code Code   // Failure class.
	Op   string // Operation (e.g. "exec", "query", "commit").
	Err  error  // Underlying driver error.
}

// Error returns the error string.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("aggregate: %s (%s): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("aggregate: %s: %v", e.Code, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the target is the sentinel error of the code.
// This allows errors.Is(err, ErrDuplicate) to return true.
func (e *Error) Is(target error) bool {
	s := e.Code.sentinel()
	return s != nil && target == s
}

// NewError returns a new classified Error.
func NewError(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// NotFoundError represents an error when an aggregate is not found.
type NotFoundError struct {
	label string
	id    any // Optional: the ID that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("aggregate: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("aggregate: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the aggregate label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given aggregate type.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the ID that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError or carries CodeNotFound.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// IsDuplicate returns true if the error was classified as a duplicate key.
func IsDuplicate(err error) bool {
	return err != nil && errors.Is(err, ErrDuplicate)
}

// IsConstraint returns true if the error was classified as a constraint violation.
func IsConstraint(err error) bool {
	return err != nil && errors.Is(err, ErrConstraint)
}

// CodeOf extracts the failure code of err. Errors that were never
// classified report CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return CodeNotFound
	}
	return CodeUnknown
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("aggregate: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}
