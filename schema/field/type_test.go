package field

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name string
		want Type
		ok   bool
	}{
		{"string", TypeString, true},
		{"String", TypeString, true},
		{"Long", TypeInt, true},
		{"integer", TypeInt, true},
		{"double", TypeFloat, true},
		{"Boolean", TypeBool, true},
		{"Instant", TypeTime, true},
		{"datetime", TypeTime, true},
		{"UUID", TypeUUID, true},
		{"Money", TypeInvalid, false},
		{"", TypeInvalid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Lookup(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "uuid", TypeUUID.String())
	assert.Equal(t, "datetime", TypeTime.String())
	assert.Equal(t, "invalid", Type(200).String())
	assert.True(t, TypeBool.Valid())
	assert.False(t, TypeInvalid.Valid())
	assert.False(t, endTypes.Valid())
	assert.True(t, TypeInt.Numeric())
	assert.False(t, TypeString.Numeric())
}

func TestConvert(t *testing.T) {
	id := uuid.New()
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		name string
		typ  Type
		in   any
		want any
	}{
		{"int", TypeInt, 3, int64(3)},
		{"int32", TypeInt, int32(3), int64(3)},
		{"whole float", TypeInt, float64(9), int64(9)},
		{"float32", TypeFloat, float32(1.5), float64(1.5)},
		{"int as float", TypeFloat, int64(2), float64(2)},
		{"bytes as string", TypeString, []byte("abc"), "abc"},
		{"int as bool", TypeBool, int64(1), true},
		{"uuid string", TypeUUID, id.String(), id},
		{"uuid text bytes", TypeUUID, []byte(id.String()), id},
		{"uuid raw bytes", TypeUUID, id[:], id},
		{"time string", TypeTime, "2024-05-06T07:08:09Z", ts},
		{"time zone", TypeTime, ts.In(time.FixedZone("X", 3600)), ts},
		{"nil", TypeString, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.typ, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Convert(TypeInt, "seven")
	require.Error(t, err)
	_, err = Convert(TypeInt, 1.5)
	require.Error(t, err)
	_, err = Convert(TypeUUID, "not-a-uuid")
	require.Error(t, err)
}
