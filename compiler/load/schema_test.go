package load_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/aggregate/compiler/gen"
	"github.com/syssam/aggregate/compiler/load"
	"github.com/syssam/aggregate/schema"
)

func TestLoad(t *testing.T) {
	reg, err := load.Load("testdata/valid")
	require.NoError(t, err)
	require.Equal(t, 5, reg.Len())
	require.Equal(t, []string{"Customer", "Order"}, reg.Roots())

	// customer.json sorts before order.yaml.
	assert.Equal(t, "Customer", reg.At(0).Name)
	order, ok := reg.Resolve("Order")
	require.True(t, ok)
	assert.Equal(t, schema.BaseAggregateRoot, order.Base)
	shipping, ok := order.Field("shipping")
	require.True(t, ok)
	assert.True(t, shipping.Nullable)
	assert.Equal(t, "Address", shipping.Ref.String())
	customer, ok := order.Field("customer")
	require.True(t, ok)
	assert.True(t, customer.Nullable)
	prices, ok := order.Field("prices")
	require.True(t, ok)
	assert.Equal(t, "Map<string, Money>", prices.Ref.String())

	item, ok := reg.Resolve("OrderItem")
	require.True(t, ok)
	assert.Equal(t, "order_lines", item.Table)

	a, err := gen.Build(reg, order)
	require.NoError(t, err)
	assert.Equal(t, "orders", a.Table.Name)
	var names []string
	for _, tbl := range a.Tables {
		names = append(names, tbl.Name)
	}
	assert.Contains(t, names, "order_lines")
	assert.Contains(t, names, "order_tags")
	assert.Contains(t, names, "order_prices")
}

func TestLoadFailure(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		err   string
	}{
		{"Duplicate", []string{"testdata/failure/duplicate.yaml"}, `duplicate type "Order"`},
		{"UnknownKey", []string{"testdata/failure/unknown.yaml"}, "columns"},
		{"Missing", []string{"testdata/missing.yaml"}, "no such file"},
		{"Extension", []string{"testdata/valid/README.txt"}, "unknown file extension"},
		{"AcrossFiles", []string{"testdata/valid", "testdata/valid/customer.json"}, `duplicate type "Customer"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load.Load(tt.paths...)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.err)
		})
	}

	_, err := load.Load(t.TempDir())
	require.EqualError(t, err, "load: no descriptor files")
}

func TestDescriptor(t *testing.T) {
	tests := []struct {
		name string
		s    *load.Schema
		err  string
	}{
		{"NoName", &load.Schema{Base: "entity"}, "type without name"},
		{"Base", &load.Schema{Name: "Order", Base: "aggregate-ish"}, `unknown base "aggregate-ish"`},
		{"FieldName", &load.Schema{Name: "Order", Fields: []*load.Field{{Type: "string"}}}, "field without name"},
		{"FieldType", &load.Schema{Name: "Order", Fields: []*load.Field{{Name: "number"}}}, `field "number" without type`},
		{"DuplicateField", &load.Schema{Name: "Order", Fields: []*load.Field{{Name: "n", Type: "int"}, {Name: "n", Type: "int"}}}, `duplicate field "n"`},
		{"BadRef", &load.Schema{Name: "Order", Fields: []*load.Field{{Name: "items", Type: "List<OrderItem"}}}, `field "items"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.s.Pos = "types.yaml"
			_, err := tt.s.Descriptor()
			require.Error(t, err)
			require.Contains(t, err.Error(), "load: types.yaml: ")
			require.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestMarshalSchema(t *testing.T) {
	types := []*schema.TypeDescriptor{
		schema.AggregateRoot("Order",
			schema.Field("number", "string"),
			schema.Field("lines", "List<Line>"),
			schema.Field("note", "string?"),
		).WithTable("purchases"),
		schema.Entity("Line", schema.Field("sku", "string")),
	}
	b, err := load.MarshalSchema(types...)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "types.yaml")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	reg, err := load.Load(path)
	require.NoError(t, err)
	order, ok := reg.Resolve("Order")
	require.True(t, ok)
	assert.Equal(t, "purchases", order.Table)
	assert.Equal(t, types[0].Fields, order.Fields)

	f, err := load.UnmarshalSchema(b, load.YAML)
	require.NoError(t, err)
	assert.Equal(t, "aggregate_root", f.Types[0].Base)
	assert.Equal(t, "entity", f.Types[1].Base)
	assert.True(t, f.Types[0].Fields[2].Optional)
}

func TestUnmarshalSchema(t *testing.T) {
	f, err := load.UnmarshalSchema([]byte(`{"types":[{"name":"Money","base":"value","fields":[{"name":"amount","type":"float"}]}]}`), load.JSON)
	require.NoError(t, err)
	reg, err := f.Registry()
	require.NoError(t, err)
	money, ok := reg.Resolve("Money")
	require.True(t, ok)
	assert.Equal(t, schema.BaseValue, money.Base)

	f, err = load.UnmarshalSchema(nil, load.YAML)
	require.NoError(t, err)
	assert.Empty(t, f.Types)

	_, err = load.UnmarshalSchema([]byte(`{"types":[{"name":"Money","kind":"value"}]}`), load.JSON)
	require.Error(t, err)
	_, err = load.UnmarshalSchema(nil, "toml")
	require.EqualError(t, err, `load: unknown format "toml"`)

	format, ok := load.FormatOf("a/b/types.YML")
	assert.True(t, ok)
	assert.Equal(t, load.YAML, format)
}
