package mapper_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/aggregate/internal/fixture"
	"github.com/syssam/aggregate/mapper"
)

func TestRoundTrip(t *testing.T) {
	a := fixture.OrderAggregate(t)
	order := fixture.Order()

	rs, err := mapper.Serialize(order, a)
	require.NoError(t, err)
	got, err := mapper.Deserialize(rs, a)
	require.NoError(t, err)
	require.Equal(t, order, got)

	items := got.List("items")
	require.Len(t, items, 2)
	require.Same(t, items[1], got.Child("primary"), "shared entity must resolve to one object")
	require.Same(t, got, items[0].(*mapper.Object).Child("parent"), "back reference must resolve to the root")
}

func TestRoundTripAbsentValues(t *testing.T) {
	a := fixture.OrderAggregate(t)
	order := fixture.Order().
		Set("shipping", nil).
		Set("primary", nil).
		Set("customer", nil).
		Set("tags", nil).
		Set("prices", map[any]any{})

	rs, err := mapper.Serialize(order, a)
	require.NoError(t, err)
	require.Empty(t, rs["order_tags"])
	require.Empty(t, rs["order_prices"])
	got, err := mapper.Deserialize(rs, a)
	require.NoError(t, err)

	require.Nil(t, got.Fields["shipping"])
	require.Nil(t, got.Fields["primary"])
	require.Nil(t, got.Fields["customer"])
	require.Empty(t, got.List("tags"))
	require.Empty(t, got.Fields["prices"])
	require.Equal(t, order.Fields["total"], got.Fields["total"])
}

func TestSerializeRows(t *testing.T) {
	a := fixture.OrderAggregate(t)
	rs, err := mapper.Serialize(fixture.Order(), a)
	require.NoError(t, err)
	require.Equal(t, []string{"order_items", "order_notes", "order_prices", "order_tags", "orders"}, rs.Tables())
	require.Equal(t, "order_items=2 order_notes=2 order_prices=2 order_tags=2 orders=1", rs.String())

	root := rs["orders"][0]
	assert.Equal(t, fixture.OrderID, root["id"])
	assert.Equal(t, "A-1001", root["number"])
	assert.Equal(t, fixture.PlacedAt, root["placedAt"])
	assert.Equal(t, 39.0, root["total_amount"])
	assert.Equal(t, "EUR", root["total_currency"])
	assert.Equal(t, "Main St 1", root["shipping_street"])
	assert.Nil(t, root["shipping_city"])
	assert.Equal(t, fixture.ItemID2, root["primary_id"])
	assert.Equal(t, fixture.CustomerID, root["customer_id"])

	items := rs["order_items"]
	for i, id := range []uuid.UUID{fixture.ItemID1, fixture.ItemID2} {
		assert.Equal(t, id, items[i]["id"])
		assert.Equal(t, fixture.OrderID, items[i]["order_id"])
		assert.Equal(t, fixture.OrderID, items[i]["parent_id"])
		assert.Equal(t, int64(i), items[i]["items_ordinal"])
	}

	prices := rs["order_prices"]
	assert.Equal(t, "gross", prices[0]["map_key"], "map entries are ordered by key")
	assert.Equal(t, "net", prices[1]["map_key"])
	assert.Equal(t, 32.77, prices[1]["amount"])

	notes := rs["order_notes"]
	assert.Equal(t, mapper.Row{"order_id": fixture.OrderID, "ordinal": int64(1), "value": "call first"}, notes[1])
}

func TestSerializeDeterminism(t *testing.T) {
	a := fixture.OrderAggregate(t)
	first, err := mapper.Serialize(fixture.Order(), a)
	require.NoError(t, err)
	for range 10 {
		order := fixture.Order().Set("prices", map[any]any{
			"gross": fixture.Money(39, "EUR"),
			"net":   fixture.Money(32.77, "EUR"),
		})
		rs, err := mapper.Serialize(order, a)
		require.NoError(t, err)
		require.Equal(t, first, rs)
	}
}

func TestSerializeSetDuplicates(t *testing.T) {
	a := fixture.OrderAggregate(t)
	rs, err := mapper.Serialize(fixture.Order().Set("tags", []any{"gift", "gift", "express"}), a)
	require.NoError(t, err)
	require.Len(t, rs["order_tags"], 2)
}

func TestSerializeErrors(t *testing.T) {
	a := fixture.OrderAggregate(t)
	tests := []struct {
		name   string
		obj    func() *mapper.Object
		errMsg string
	}{
		{
			name:   "NilAggregate",
			obj:    func() *mapper.Object { return nil },
			errMsg: "nil aggregate",
		},
		{
			name:   "WrongRootType",
			obj:    func() *mapper.Object { return mapper.New("Customer", uuid.New()) },
			errMsg: `got object of type "Customer"`,
		},
		{
			name:   "RootWithoutID",
			obj:    func() *mapper.Object { o := fixture.Order(); o.ID = uuid.Nil; return o },
			errMsg: "entity without id",
		},
		{
			name:   "RequiredField",
			obj:    func() *mapper.Object { return fixture.Order().Set("number", nil) },
			errMsg: "Order.number (orders.number): required field has no value",
		},
		{
			name:   "WrongPrimitiveType",
			obj:    func() *mapper.Object { return fixture.Order().Set("paid", "yes") },
			errMsg: "Order.paid (orders.paid): invalid value",
		},
		{
			name:   "RequiredValue",
			obj:    func() *mapper.Object { return fixture.Order().Set("total", nil) },
			errMsg: "required value has no value",
		},
		{
			name:   "ValueNotObject",
			obj:    func() *mapper.Object { return fixture.Order().Set("total", 39.0) },
			errMsg: "expected value object, got float64",
		},
		{
			name: "ItemWithoutID",
			obj: func() *mapper.Object {
				return fixture.Order().Set("items", []any{mapper.New("OrderItem", uuid.Nil)})
			},
			errMsg: "entity without id",
		},
		{
			name: "ItemOfWrongType",
			obj: func() *mapper.Object {
				return fixture.Order().Set("items", []any{fixture.Money(1, "EUR")})
			},
			errMsg: `got object of type "Money"`,
		},
		{
			name: "NilItem",
			obj: func() *mapper.Object {
				return fixture.Order().Set("items", []any{(*mapper.Object)(nil)})
			},
			errMsg: "Order.items (order_items): nil element",
		},
		{
			name: "NilPrice",
			obj: func() *mapper.Object {
				return fixture.Order().Set("prices", map[any]any{"net": (*mapper.Object)(nil)})
			},
			errMsg: "Order.prices (order_prices): nil element",
		},
		{
			name: "ItemListedTwice",
			obj: func() *mapper.Object {
				o := fixture.Order()
				items := o.List("items")
				return o.Set("items", []any{items[0], items[1], items[0]})
			},
			errMsg: "listed twice",
		},
		{
			name:   "NilListElement",
			obj:    func() *mapper.Object { return fixture.Order().Set("notes", []any{"a", nil}) },
			errMsg: "nil element",
		},
		{
			name:   "ListNotSlice",
			obj:    func() *mapper.Object { return fixture.Order().Set("notes", "a") },
			errMsg: "expected slice, got string",
		},
		{
			name:   "InvalidReference",
			obj:    func() *mapper.Object { return fixture.Order().Set("customer", 42) },
			errMsg: "invalid reference",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mapper.Serialize(tt.obj(), a)
			require.Error(t, err)
			require.True(t, mapper.IsMappingError(err))
			require.True(t, errors.Is(err, mapper.ErrMapping))
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDeserializeErrors(t *testing.T) {
	a := fixture.OrderAggregate(t)
	rows := func(t *testing.T, fn func(mapper.RowSet)) mapper.RowSet {
		rs, err := mapper.Serialize(fixture.Order(), a)
		require.NoError(t, err)
		fn(rs)
		return rs
	}
	tests := []struct {
		name   string
		rows   func(mapper.RowSet)
		errMsg string
	}{
		{
			name:   "NoRootRow",
			rows:   func(rs mapper.RowSet) { delete(rs, "orders") },
			errMsg: "no root row",
		},
		{
			name:   "MissingColumn",
			rows:   func(rs mapper.RowSet) { delete(rs["orders"][0], "number") },
			errMsg: "Order.number (orders.number): missing column",
		},
		{
			name:   "IncompleteValueGroup",
			rows:   func(rs mapper.RowSet) { delete(rs["orders"][0], "total_currency") },
			errMsg: "incomplete value group",
		},
		{
			name:   "RequiredColumnNull",
			rows:   func(rs mapper.RowSet) { rs["orders"][0]["paid"] = nil },
			errMsg: "required column is null",
		},
		{
			name:   "InvalidValue",
			rows:   func(rs mapper.RowSet) { rs["order_items"][0]["quantity"] = "two" },
			errMsg: "OrderItem.quantity (order_items.quantity): invalid value",
		},
		{
			name:   "InvalidID",
			rows:   func(rs mapper.RowSet) { rs["orders"][0]["id"] = "not-a-uuid" },
			errMsg: "invalid id",
		},
		{
			name:   "DanglingEntity",
			rows:   func(rs mapper.RowSet) { rs["orders"][0]["primary_id"] = uuid.New() },
			errMsg: "no row with id",
		},
		{
			name:   "NullOrdinal",
			rows:   func(rs mapper.RowSet) { rs["order_items"][0]["items_ordinal"] = nil },
			errMsg: "null ordinal",
		},
		{
			name:   "NullDedicatedOrdinal",
			rows:   func(rs mapper.RowSet) { rs["order_notes"][0]["ordinal"] = nil },
			errMsg: "required column is null",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mapper.Deserialize(rows(t, tt.rows), a)
			require.Error(t, err)
			var me *mapper.MappingError
			require.True(t, errors.As(err, &me))
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDeserializeListOrder(t *testing.T) {
	a := fixture.OrderAggregate(t)
	rs, err := mapper.Serialize(fixture.Order(), a)
	require.NoError(t, err)
	notes := rs["order_notes"]
	notes[0], notes[1] = notes[1], notes[0]
	items := rs["order_items"]
	items[0], items[1] = items[1], items[0]

	got, err := mapper.Deserialize(rs, a)
	require.NoError(t, err)
	require.Equal(t, []any{"leave at door", "call first"}, got.List("notes"))
	require.Equal(t, fixture.ItemID1, got.List("items")[0].(*mapper.Object).ID)
}

func TestMappingError(t *testing.T) {
	cause := errors.New("boom")
	err := &mapper.MappingError{Type: "Order", Field: "total.amount", Table: "orders", Column: "total_amount", Msg: "invalid value", Err: cause}
	require.Equal(t, "aggregate: mapping Order.total.amount (orders.total_amount): invalid value: boom", err.Error())
	require.ErrorIs(t, err, cause)
	require.ErrorIs(t, err, mapper.ErrMapping)
	require.False(t, mapper.IsMappingError(nil))
	require.False(t, mapper.IsMappingError(cause))
}
