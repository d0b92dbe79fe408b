package field

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// A Type represents a primitive field type.
type Type uint8

// List of primitive types.
const (
	TypeInvalid Type = iota
	TypeUUID
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeUUID:    "uuid",
	TypeString:  "string",
	TypeInt:     "integer",
	TypeFloat:   "float",
	TypeBool:    "boolean",
	TypeTime:    "datetime",
}

// aliases maps the lower-cased primitive names accepted in descriptors.
var aliases = map[string]Type{
	"uuid":          TypeUUID,
	"string":        TypeString,
	"text":          TypeString,
	"int":           TypeInt,
	"integer":       TypeInt,
	"long":          TypeInt,
	"int64":         TypeInt,
	"float":         TypeFloat,
	"double":        TypeFloat,
	"real":          TypeFloat,
	"float64":       TypeFloat,
	"bool":          TypeBool,
	"boolean":       TypeBool,
	"datetime":      TypeTime,
	"time":          TypeTime,
	"timestamp":     TypeTime,
	"instant":       TypeTime,
	"localdatetime": TypeTime,
}

// String returns the canonical name of the type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type is a known primitive.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Numeric reports if the type is numeric.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeFloat
}

// Lookup returns the primitive type registered under the given name.
func Lookup(name string) (Type, bool) {
	t, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// Convert normalizes v into the canonical Go representation of t:
// string, int64, float64, bool, time.Time (UTC) or uuid.UUID.
// A nil value is returned as is.
func Convert(t Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case TypeString:
		switch v := v.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		}
	case TypeInt:
		switch v := v.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case int8:
			return int64(v), nil
		case int16:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case uint8:
			return int64(v), nil
		case uint16:
			return int64(v), nil
		case uint32:
			return int64(v), nil
		case float64:
			if v == float64(int64(v)) {
				return int64(v), nil
			}
		}
	case TypeFloat:
		switch v := v.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case int:
			return float64(v), nil
		}
	case TypeBool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		}
	case TypeTime:
		switch v := v.(type) {
		case time.Time:
			return v.UTC(), nil
		case string:
			tv, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, fmt.Errorf("field: parse %s value %q: %w", t, v, err)
			}
			return tv.UTC(), nil
		}
	case TypeUUID:
		switch v := v.(type) {
		case uuid.UUID:
			return v, nil
		case string:
			id, err := uuid.Parse(v)
			if err != nil {
				return nil, fmt.Errorf("field: parse %s value %q: %w", t, v, err)
			}
			return id, nil
		case []byte:
			if len(v) == 16 {
				return uuid.FromBytes(v)
			}
			id, err := uuid.ParseBytes(v)
			if err != nil {
				return nil, fmt.Errorf("field: parse %s value %q: %w", t, v, err)
			}
			return id, nil
		}
	}
	return nil, fmt.Errorf("field: cannot convert %T to %s", v, t)
}
