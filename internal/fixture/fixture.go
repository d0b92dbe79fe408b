// Package fixture holds the descriptor graphs and instances shared by the
// package tests.
package fixture

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/syssam/aggregate/compiler/gen"
	"github.com/syssam/aggregate/mapper"
	"github.com/syssam/aggregate/schema"
)

// Fixed ids of the sample order.
var (
	OrderID    = uuid.MustParse("0b6f3f2e-5d7c-4b8e-9a31-1f2d3c4b5a60")
	ItemID1    = uuid.MustParse("1c7a4e3f-6e8d-4c9f-8b42-2a3e4d5c6b71")
	ItemID2    = uuid.MustParse("2d8b5f40-7f9e-4daf-9c53-3b4f5e6d7c82")
	CustomerID = uuid.MustParse("3e9c6051-80af-4eb0-ad64-4c50a67e8d93")
	PlacedAt   = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
)

// OrderTypes returns the descriptors of the order aggregate:
//
//	Order (root): number, placedAt, paid, total Money, shipping Address?,
//	  items List<OrderItem>, primary OrderItem?, tags Set<string>,
//	  prices Map<string, Money>, notes List<string>, customer Customer?
//	OrderItem (entity): sku, quantity, price Money, parent Order?
//	Customer (root): name
func OrderTypes() []*schema.TypeDescriptor {
	return []*schema.TypeDescriptor{
		schema.AggregateRoot("Order",
			schema.Field("id", "uuid"),
			schema.Field("number", "string"),
			schema.Field("placedAt", "datetime"),
			schema.Field("paid", "bool"),
			schema.Field("total", "Money"),
			schema.Field("shipping", "Address?"),
			schema.Field("items", "List<OrderItem>"),
			schema.Field("primary", "OrderItem?"),
			schema.Field("tags", "Set<string>"),
			schema.Field("prices", "Map<string, Money>"),
			schema.Field("notes", "List<string>"),
			schema.Field("customer", "Customer?"),
		),
		schema.Value("Money",
			schema.Field("amount", "float"),
			schema.Field("currency", "string"),
		),
		schema.Value("Address",
			schema.Field("street", "string"),
			schema.Field("city", "string?"),
		),
		schema.Entity("OrderItem",
			schema.Field("sku", "string"),
			schema.Field("quantity", "int"),
			schema.Field("price", "Money"),
			schema.Field("parent", "Order?"),
		),
		schema.AggregateRoot("Customer",
			schema.Field("name", "string"),
		),
	}
}

// Registry returns a registry of the given types.
func Registry(t testing.TB, types ...*schema.TypeDescriptor) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(types...)
	require.NoError(t, err)
	return reg
}

// Build builds the aggregate of the named root.
func Build(t testing.TB, reg *schema.Registry, root string, opts ...gen.Option) *gen.Aggregate {
	t.Helper()
	r, ok := reg.Resolve(root)
	require.True(t, ok, "unknown root %s", root)
	a, err := gen.Build(reg, r, opts...)
	require.NoError(t, err)
	return a
}

// OrderAggregate builds the order aggregate.
func OrderAggregate(t testing.TB) *gen.Aggregate {
	return Build(t, Registry(t, OrderTypes()...), "Order")
}

// Money returns a Money value object.
func Money(amount float64, currency string) *mapper.Object {
	return mapper.NewValue("Money").
		Set("amount", amount).
		Set("currency", currency)
}

// Order returns the sample order. Every field is set, so that a
// deserialized copy compares equal.
func Order() *mapper.Object {
	order := mapper.New("Order", OrderID)
	item1 := mapper.New("OrderItem", ItemID1).
		Set("sku", "SKU-1").
		Set("quantity", int64(2)).
		Set("price", Money(9.5, "EUR")).
		Set("parent", order)
	item2 := mapper.New("OrderItem", ItemID2).
		Set("sku", "SKU-2").
		Set("quantity", int64(1)).
		Set("price", Money(20, "EUR")).
		Set("parent", order)
	return order.
		Set("number", "A-1001").
		Set("placedAt", PlacedAt).
		Set("paid", true).
		Set("total", Money(39, "EUR")).
		Set("shipping", mapper.NewValue("Address").Set("street", "Main St 1").Set("city", nil)).
		Set("items", []any{item1, item2}).
		Set("primary", item2).
		Set("tags", []any{"gift", "express"}).
		Set("prices", map[any]any{"net": Money(32.77, "EUR"), "gross": Money(39, "EUR")}).
		Set("notes", []any{"leave at door", "call first"}).
		Set("customer", CustomerID)
}
