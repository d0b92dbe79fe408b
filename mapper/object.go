package mapper

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Object is one node of an aggregate instance graph: an aggregate root,
// an entity or a value object. Value objects carry no identity.
//
// Field values are Go-native: string, int64, float64, bool, time.Time,
// uuid.UUID (references to other aggregates), *Object (values and
// entities), []any (lists and sets), map[any]any (maps) or nil.
type Object struct {
	Type   string
	ID     uuid.UUID
	Fields map[string]any
}

// New returns an empty object of the given type.
func New(typ string, id uuid.UUID) *Object {
	return &Object{Type: typ, ID: id, Fields: make(map[string]any)}
}

// NewValue returns a value object of the given type.
func NewValue(typ string) *Object {
	return New(typ, uuid.Nil)
}

// Set sets a field value and returns the object.
func (o *Object) Set(name string, v any) *Object {
	if o.Fields == nil {
		o.Fields = make(map[string]any)
	}
	o.Fields[name] = v
	return o
}

// Get returns a field value.
func (o *Object) Get(name string) (any, bool) {
	v, ok := o.Fields[name]
	return v, ok
}

// Child returns a field holding an *Object.
func (o *Object) Child(name string) *Object {
	v, _ := o.Fields[name].(*Object)
	return v
}

// List returns a field holding a list or a set.
func (o *Object) List(name string) []any {
	v, _ := o.Fields[name].([]any)
	return v
}

// String returns a short description of the object.
func (o *Object) String() string {
	if o.ID == uuid.Nil {
		return o.Type
	}
	return fmt.Sprintf("%s(%s)", o.Type, o.ID)
}

// Row is one table row, keyed by column name.
type Row map[string]any

// RowSet holds the rows of an aggregate instance, keyed by table name.
type RowSet map[string][]Row

// Add appends a row to the table.
func (s RowSet) Add(table string, r Row) {
	s[table] = append(s[table], r)
}

// Tables returns the table names in sorted order.
func (s RowSet) Tables() []string {
	return slices.Sorted(maps.Keys(s))
}

// Len returns the total number of rows.
func (s RowSet) Len() int {
	n := 0
	for _, rows := range s {
		n += len(rows)
	}
	return n
}

// String returns the row counts per table.
func (s RowSet) String() string {
	parts := make([]string, 0, len(s))
	for _, t := range s.Tables() {
		parts = append(parts, fmt.Sprintf("%s=%d", t, len(s[t])))
	}
	return strings.Join(parts, " ")
}
