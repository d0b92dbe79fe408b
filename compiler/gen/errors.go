package gen

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure cases.
var (
	// ErrUnsupportedGraph indicates a type graph the engine cannot map.
	ErrUnsupportedGraph = errors.New("aggregate: unsupported graph")
	// ErrInvalidSchema indicates the built tables failed structural validation.
	ErrInvalidSchema = errors.New("aggregate: invalid schema")
	// ErrGenerationFailed indicates a code generation failure.
	ErrGenerationFailed = errors.New("aggregate: code generation failed")
	// ErrMissingConfig indicates a configuration error.
	ErrMissingConfig = errors.New("aggregate: missing configuration")
)

// Reason describes why a type graph is unsupported.
type Reason string

// Unsupported graph reasons.
const (
	ReasonNestedCollection  Reason = "nested collection"
	ReasonUntypedElement    Reason = "untyped collection element"
	ReasonValueMapKey       Reason = "value object used as map key"
	ReasonEntityMapKey      Reason = "non-primitive map key"
	ReasonRootInCollection  Reason = "aggregate root inside collection"
	ReasonUnresolvedType    Reason = "unresolved type"
	ReasonUnclassified      Reason = "type is neither entity, value nor primitive"
	ReasonRecursiveValue    Reason = "recursive value object"
	ReasonSharedEntity      Reason = "entity shared by aggregates"
	ReasonNotAggregateRoot  Reason = "root type is not an aggregate root"
	ReasonInvalidDescriptor Reason = "invalid descriptor"
)

// UnsupportedGraphError is returned at schema-build time for type graphs
// that cannot be mapped. It is always fatal to the build.
type UnsupportedGraphError struct {
	Type   string // Owner type name
	Field  string // Field path (if applicable)
	Reason Reason
	Detail string
	Cause  error
}

// Error implements the error interface.
func (e *UnsupportedGraphError) Error() string {
	var b strings.Builder
	b.WriteString("aggregate: unsupported graph")
	if e.Type != "" {
		b.WriteString(" on type ")
		b.WriteString(e.Type)
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(string(e.Reason))
	}
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *UnsupportedGraphError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for UnsupportedGraphError.
func (e *UnsupportedGraphError) Is(target error) bool {
	return target == ErrUnsupportedGraph
}

func unsupported(typ, field string, reason Reason, format string, args ...any) *UnsupportedGraphError {
	return &UnsupportedGraphError{
		Type:   typ,
		Field:  field,
		Reason: reason,
		Detail: fmt.Sprintf(format, args...),
	}
}

// SchemaError represents a structurally invalid table set.
type SchemaError struct {
	Root    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("aggregate: schema error")
	if e.Root != "" {
		b.WriteString(" on aggregate ")
		b.WriteString(e.Root)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for SchemaError.
func (e *SchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("aggregate: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("aggregate: config error for %q: %s", e.Option, e.Message)
}

// Is reports whether the target matches the sentinel error for ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrMissingConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{
		Option:  option,
		Value:   value,
		Message: message,
	}
}

// GenerationError represents a code generation error.
type GenerationError struct {
	File    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	var b strings.Builder
	b.WriteString("aggregate: generation error")
	if e.File != "" {
		b.WriteString(" (file: ")
		b.WriteString(e.File)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches the sentinel error for GenerationError.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// IsUnsupportedGraph reports whether the error is an UnsupportedGraphError.
func IsUnsupportedGraph(err error) bool {
	var graphErr *UnsupportedGraphError
	return errors.As(err, &graphErr)
}

// IsSchemaError reports whether the error is a SchemaError.
func IsSchemaError(err error) bool {
	var schemaErr *SchemaError
	return errors.As(err, &schemaErr)
}

// IsConfigError reports whether the error is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsGenerationError reports whether the error is a GenerationError.
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}
