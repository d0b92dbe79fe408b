package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/aggregate/schema/field"
)

// Base is the supertype marker a scanned type declares.
type Base uint8

// Supertype markers.
const (
	BaseNone Base = iota
	BaseValue
	BaseEntity
	BaseAggregateRoot
)

// String returns the descriptor-file spelling of the base.
func (b Base) String() string {
	switch b {
	case BaseValue:
		return "value"
	case BaseEntity:
		return "entity"
	case BaseAggregateRoot:
		return "aggregate_root"
	default:
		return "none"
	}
}

// ParseBase parses a base marker as written in descriptor files.
func ParseBase(s string) (Base, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return BaseNone, nil
	case "value", "value_object":
		return BaseValue, nil
	case "entity":
		return BaseEntity, nil
	case "aggregate_root", "aggregateroot", "root", "aggregate":
		return BaseAggregateRoot, nil
	}
	return BaseNone, fmt.Errorf("schema: unknown base %q", s)
}

// Kind is the classification of a type.
type Kind uint8

// Type kinds.
const (
	KindInvalid Kind = iota
	KindPrimitive
	KindValue
	KindEntity
	KindAggregateRoot
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "Primitive"
	case KindValue:
		return "Value"
	case KindEntity:
		return "Entity"
	case KindAggregateRoot:
		return "AggregateRoot"
	default:
		return "Invalid"
	}
}

// HasTable reports if types of this kind own a table.
func (k Kind) HasTable() bool {
	return k == KindEntity || k == KindAggregateRoot
}

// CollectionKind is the shape of a collection field.
type CollectionKind uint8

// Collection kinds.
const (
	CollectionList CollectionKind = iota + 1
	CollectionSet
	CollectionMap
)

// String returns the name of the collection kind.
func (c CollectionKind) String() string {
	switch c {
	case CollectionList:
		return "List"
	case CollectionSet:
		return "Set"
	case CollectionMap:
		return "Map"
	default:
		return "Invalid"
	}
}

type (
	// TypeDescriptor describes one domain type.
	TypeDescriptor struct {
		// Name is the class name of the type.
		Name string
		// Base is the declared supertype marker.
		Base Base
		// Kind is set by classification.
		Kind Kind
		// Table optionally overrides the table name.
		Table string
		// Primitive holds the field type of primitive descriptors.
		Primitive field.Type
		// Fields in declaration order.
		Fields []*FieldDescriptor
	}

	// FieldDescriptor describes one field of a type.
	FieldDescriptor struct {
		// Name of the field as declared.
		Name string
		// Ref is the declared, unresolved type reference.
		Ref TypeRef
		// Nullable reports if the field may hold no value.
		Nullable bool
		// Type is the resolved type. For collections, the element type.
		Type *TypeDescriptor
		// Collection is set by classification for collection fields.
		Collection *CollectionInfo
		// Err holds an error recorded while describing the field.
		Err error
	}

	// CollectionInfo describes a List, Set or Map field.
	CollectionInfo struct {
		Kind        CollectionKind
		ElementKind Kind
		ElementType *TypeDescriptor
		// KeyType is set for maps only.
		KeyType *TypeDescriptor
	}
)

// IsPrimitive reports if the descriptor is a primitive.
func (t *TypeDescriptor) IsPrimitive() bool {
	return t.Primitive.Valid()
}

// Field returns the field with the given name.
func (t *TypeDescriptor) Field(name string) (*FieldDescriptor, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// WithTable sets an explicit table name.
func (t *TypeDescriptor) WithTable(name string) *TypeDescriptor {
	t.Table = name
	return t
}

// String implements the fmt.Stringer interface.
func (t *TypeDescriptor) String() string {
	return t.Name
}

// Optional marks the field as nullable.
func (f *FieldDescriptor) Optional() *FieldDescriptor {
	f.Nullable = true
	return f
}

// IsCollection reports if the field was classified as a collection.
func (f *FieldDescriptor) IsCollection() bool {
	return f.Collection != nil
}

var primitives = func() map[field.Type]*TypeDescriptor {
	m := make(map[field.Type]*TypeDescriptor)
	for _, t := range []field.Type{field.TypeUUID, field.TypeString, field.TypeInt, field.TypeFloat, field.TypeBool, field.TypeTime} {
		m[t] = &TypeDescriptor{Name: t.String(), Kind: KindPrimitive, Primitive: t}
	}
	return m
}()

// Primitive returns the shared descriptor of a primitive type.
// Primitive descriptors are never mutated.
func Primitive(t field.Type) *TypeDescriptor {
	return primitives[t]
}

// AggregateRoot returns a descriptor of an aggregate root type.
func AggregateRoot(name string, fields ...*FieldDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Name: name, Base: BaseAggregateRoot, Fields: fields}
}

// Entity returns a descriptor of an entity type.
func Entity(name string, fields ...*FieldDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Name: name, Base: BaseEntity, Fields: fields}
}

// Value returns a descriptor of a value object type.
func Value(name string, fields ...*FieldDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Name: name, Base: BaseValue, Fields: fields}
}

// Field returns a field descriptor with the given declared type. A trailing
// "?" on the type marks the field nullable. Parse errors are recorded on
// the descriptor and reported by classification.
func Field(name, typ string) *FieldDescriptor {
	f := &FieldDescriptor{Name: name}
	if s := strings.TrimSpace(typ); strings.HasSuffix(s, "?") {
		f.Nullable = true
		typ = strings.TrimSuffix(s, "?")
	}
	ref, err := ParseTypeRef(typ)
	if err != nil {
		f.Err = err
	}
	f.Ref = ref
	return f
}
