// Package field defines the primitive field types understood by the mapping
// engine and the conversion of Go values into their canonical form.
//
// The primitive set is closed:
//
//	field.TypeString  // string, text
//	field.TypeInt     // integer, int, long, int64
//	field.TypeFloat   // float, double, real, float64
//	field.TypeBool    // bool, boolean
//	field.TypeTime    // datetime, time, timestamp, instant
//	field.TypeUUID    // uuid
//
// Descriptor files refer to primitives by any of the names above
// (case-insensitive). Every other type name is resolved against the
// descriptor registry.
//
// # Canonical Values
//
// Values handled by the mapper are normalized by [Convert]:
//
//	field.Convert(field.TypeInt, int32(7))                 // int64(7)
//	field.Convert(field.TypeUUID, "0b2c...")               // uuid.UUID
//	field.Convert(field.TypeTime, "2024-01-02T03:04:05Z")  // time.Time
package field
