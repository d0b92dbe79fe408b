package sqlgraph

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/aggregate/compiler/gen"
	"github.com/syssam/aggregate/dialect"
	"github.com/syssam/aggregate/dialect/sql/schema"
	"github.com/syssam/aggregate/internal/fixture"
	"github.com/syssam/aggregate/mapper"
	aggschema "github.com/syssam/aggregate/schema"
)

// cartTypes is a small order aggregate: orders(id, number),
// order_items(id, sku, order_id, items_ordinal), order_tags(order_id, value).
func cartTypes() []*aggschema.TypeDescriptor {
	return []*aggschema.TypeDescriptor{
		aggschema.AggregateRoot("Order",
			aggschema.Field("number", "string"),
			aggschema.Field("items", "List<OrderItem>"),
			aggschema.Field("tags", "Set<string>"),
		),
		aggschema.Entity("OrderItem",
			aggschema.Field("sku", "string"),
		),
	}
}

func cartAggregate(t *testing.T) *gen.Aggregate {
	return fixture.Build(t, fixture.Registry(t, cartTypes()...), "Order")
}

// folderTypes is a recursive aggregate: a folder holding a tree of nodes.
func folderTypes() []*aggschema.TypeDescriptor {
	return []*aggschema.TypeDescriptor{
		aggschema.AggregateRoot("Folder",
			aggschema.Field("name", "string"),
			aggschema.Field("top", "Node?"),
		),
		aggschema.Entity("Node",
			aggschema.Field("name", "string"),
			aggschema.Field("parent", "Node?"),
			aggschema.Field("children", "List<Node>"),
		),
	}
}

func TestBuildLoadQuery(t *testing.T) {
	a := fixture.OrderAggregate(t)
	q := BuildLoadQuery(a.Table, a.Tables, dialect.NewSQLite())

	cols := []string{
		`t0."id"`, `t0."number"`, `t0."placedAt"`, `t0."paid"`, `t0."total_amount"`, `t0."total_currency"`,
		`t0."shipping_street"`, `t0."shipping_city"`, `t0."primary_id"`, `t0."customer_id"`,
		`t1."id"`, `t1."sku"`, `t1."quantity"`, `t1."price_amount"`, `t1."price_currency"`,
		`t1."parent_id"`, `t1."order_id"`, `t1."items_ordinal"`,
		`t2."order_id"`, `t2."value"`,
		`t3."order_id"`, `t3."map_key"`, `t3."amount"`, `t3."currency"`,
		`t4."order_id"`, `t4."ordinal"`, `t4."value"`,
	}
	want := "SELECT " + strings.Join(cols, ", ") + ` FROM "orders" AS t0` +
		` LEFT JOIN "order_items" AS t1 ON t1."parent_id" = t0."id" OR t1."order_id" = t0."id" OR t1."id" = t0."primary_id"` +
		` LEFT JOIN "order_tags" AS t2 ON t2."order_id" = t0."id"` +
		` LEFT JOIN "order_prices" AS t3 ON t3."order_id" = t0."id"` +
		` LEFT JOIN "order_notes" AS t4 ON t4."order_id" = t0."id"` +
		` WHERE t0."id" = ?`
	require.Equal(t, want, q.SQL)
	require.Len(t, q.Columns, len(cols))
	require.Empty(t, q.Cut)
	names := make([]string, 0, len(q.Tables()))
	for _, tbl := range q.Tables() {
		names = append(names, tbl.Name)
	}
	require.Equal(t, []string{"orders", "order_items", "order_tags", "order_prices", "order_notes"}, names)

	again := BuildLoadQuery(a.Table, a.Tables, dialect.NewSQLite())
	require.Equal(t, q.SQL, again.SQL, "load query must be deterministic")

	my := BuildLoadQuery(a.Table, a.Tables, dialect.NewMySQL())
	require.True(t, strings.HasPrefix(my.SQL, "SELECT t0.`id`, t0.`number`"))
	require.True(t, strings.HasSuffix(my.SQL, "WHERE t0.`id` = ?"))
}

func TestBuildLoadQueryStopsAtRoots(t *testing.T) {
	reg := fixture.Registry(t,
		aggschema.AggregateRoot("Order",
			aggschema.Field("customer", "Customer"),
			aggschema.Field("lines", "List<Line>"),
		),
		aggschema.AggregateRoot("Customer", aggschema.Field("name", "string")),
		aggschema.Entity("Line", aggschema.Field("sku", "string")),
	)
	a := fixture.Build(t, reg, "Order")
	// A foreign table flagged as aggregate root is never joined, even
	// when it is passed along.
	col := &schema.Column{Name: "order_id", Nullable: true}
	foreign := schema.NewTable("customers").
		AddPrimary(&schema.Column{Name: schema.IDColumn}).
		AddColumn(col)
	foreign.AddForeignKey(&schema.ForeignKey{Column: col, RefTable: a.Table, RefColumn: a.Table.PrimaryKey[0], OnDelete: schema.SetNull})
	foreign.AggregateRoot = true
	tables := append(append([]*schema.Table{}, a.Tables...), foreign)
	q := BuildLoadQuery(a.Table, tables, dialect.NewSQLite())
	require.Len(t, q.Joins, 1)
	require.Equal(t, "lines", q.Joins[0].Table.Name)
	require.NotContains(t, q.SQL, "customers")
}

func TestBuildLoadQueryCutEdges(t *testing.T) {
	a := fixture.Build(t, fixture.Registry(t, folderTypes()...), "Folder")
	q := BuildLoadQuery(a.Table, a.Tables, dialect.NewSQLite())
	require.Equal(t,
		`SELECT t0."id", t0."name", t0."top_id", t1."id", t1."name", t1."parent_id", t1."node_id", t1."children_ordinal"`+
			` FROM "folders" AS t0 LEFT JOIN "nodes" AS t1 ON t1."id" = t0."top_id" WHERE t0."id" = ?`,
		q.SQL,
	)
	cut := make([]string, len(q.Cut))
	for i, e := range q.Cut {
		cut[i] = e.String()
	}
	require.Equal(t, []string{"nodes.parent_id -> nodes", "nodes.node_id -> nodes"}, cut)
}

func TestBuildJoinClauses(t *testing.T) {
	var (
		a       = fixture.OrderAggregate(t)
		sqlite  = dialect.NewSQLite()
		clauses = BuildJoinClauses(a.Table, a.Tables, sqlite)
	)
	got := make([]string, len(clauses))
	for i, c := range clauses {
		got[i] = c.String(sqlite)
		assert.Equal(t, RootAlias, c.ParentAlias)
		assert.Same(t, a.Table, c.Parent)
	}
	require.Equal(t, []string{
		`LEFT JOIN "order_items" AS t1 ON t1."parent_id" = t0."id" OR t1."order_id" = t0."id"`,
		`LEFT JOIN "order_tags" AS t2 ON t2."order_id" = t0."id"`,
		`LEFT JOIN "order_prices" AS t3 ON t3."order_id" = t0."id"`,
		`LEFT JOIN "order_notes" AS t4 ON t4."order_id" = t0."id"`,
	}, got)

	items, ok := schema.Find(a.Tables, "order_items")
	require.True(t, ok)
	require.Empty(t, BuildJoinClauses(items, a.Tables, sqlite), "aggregate roots are never joined")
}

func TestSplit(t *testing.T) {
	var (
		a   = cartAggregate(t)
		q   = BuildLoadQuery(a.Table, a.Tables, dialect.NewSQLite())
		oid = uuid.New()
		i1  = uuid.New()
		i2  = uuid.New()
	)
	rows := &dialect.Rows{Values: [][]any{
		{oid.String(), "A-1", i1.String(), "x", oid.String(), int64(0), oid.String(), "gift"},
		{oid.String(), "A-1", i1.String(), "x", oid.String(), int64(0), oid.String(), "red"},
		{oid.String(), "A-1", i2.String(), []byte("y"), oid.String(), int64(1), oid.String(), "gift"},
		{oid.String(), "A-1", i2.String(), "y", oid.String(), int64(1), oid.String(), "red"},
	}}
	rs, err := q.Split(rows)
	require.NoError(t, err)
	require.Equal(t, []mapper.Row{{"id": oid, "number": "A-1"}}, rs["orders"])
	require.Equal(t, []mapper.Row{
		{"id": i1, "sku": "x", "order_id": oid, "items_ordinal": int64(0)},
		{"id": i2, "sku": "y", "order_id": oid, "items_ordinal": int64(1)},
	}, rs["order_items"])
	require.Equal(t, []mapper.Row{
		{"order_id": oid, "value": "gift"},
		{"order_id": oid, "value": "red"},
	}, rs["order_tags"])

	t.Run("EmptyCollections", func(t *testing.T) {
		rs, err := q.Split(&dialect.Rows{Values: [][]any{
			{oid.String(), "A-1", nil, nil, nil, nil, nil, nil},
		}})
		require.NoError(t, err)
		require.Equal(t, []string{"orders"}, rs.Tables())
	})

	t.Run("ColumnCount", func(t *testing.T) {
		_, err := q.Split(&dialect.Rows{Values: [][]any{{oid.String()}}})
		require.Error(t, err)
	})

	t.Run("InvalidValue", func(t *testing.T) {
		_, err := q.Split(&dialect.Rows{Values: [][]any{
			{"not-a-uuid", "A-1", nil, nil, nil, nil, nil, nil},
		}})
		require.Error(t, err)
		require.Contains(t, err.Error(), "orders.id")
	})
}

func TestQueryBuilder(t *testing.T) {
	b := NewQueryBuilder(dialect.NewSQLite())
	cols := []string{"id", "sku", "order_id"}
	assert.Equal(t, `SELECT "id", "sku", "order_id" FROM "order_items" WHERE "id" = ?`, b.SelectByID("order_items", cols))
	assert.Equal(t, `SELECT "id", "sku", "order_id" FROM "order_items" WHERE "order_id" IN (?, ?, ?)`, b.SelectWhereIn("order_items", cols, "order_id", 3))
	assert.Equal(t, `INSERT INTO "order_items" ("id", "sku", "order_id") VALUES (?, ?, ?)`, b.Insert("order_items", cols))
	assert.Equal(t, `UPDATE "order_items" SET "sku" = ?, "order_id" = ? WHERE "id" = ?`, b.Update("order_items", cols[1:], cols[:1]))
	assert.Equal(t, `DELETE FROM "order_items" WHERE "id" = ?`, b.Delete("order_items", []string{"id"}))
	assert.Equal(t, `INSERT INTO "order_items" ("id", "sku") VALUES (?, ?) ON CONFLICT ("id") DO UPDATE SET "sku" = excluded."sku"`, b.Upsert("order_items", cols[:2], cols[:1]))

	my := NewQueryBuilder(dialect.NewMySQL())
	assert.Equal(t, "UPDATE `order_notes` SET `value` = ? WHERE `order_id` = ? AND `ordinal` = ?", my.Update("order_notes", []string{"value"}, []string{"order_id", "ordinal"}))
	assert.Equal(t, "INSERT INTO `orders` (`id`) VALUES (?)", my.Insert("orders", []string{"id"}))
}
