package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlschema "github.com/syssam/aggregate/dialect/sql/schema"
	"github.com/syssam/aggregate/schema"
)

func TestWithHeader(t *testing.T) {
	t.Run("sets header", func(t *testing.T) {
		c := &Config{}
		err := WithHeader("Copyright shop.")(c)

		require.NoError(t, err)
		assert.Equal(t, "Copyright shop.", c.Header)
	})

	t.Run("empty header is allowed", func(t *testing.T) {
		c := &Config{Header: "existing"}
		err := WithHeader("")(c)

		require.NoError(t, err)
		assert.Equal(t, "", c.Header)
	})
}

func TestWithPackage(t *testing.T) {
	t.Run("sets package", func(t *testing.T) {
		c := &Config{}
		err := WithPackage("shop")(c)

		require.NoError(t, err)
		assert.Equal(t, "shop", c.Package)
	})

	t.Run("empty package returns error", func(t *testing.T) {
		c := &Config{}
		err := WithPackage("")(c)

		require.Error(t, err)
		assert.True(t, IsConfigError(err))
	})
}

func TestWithTarget(t *testing.T) {
	t.Run("sets target directory", func(t *testing.T) {
		c := &Config{}
		err := WithTarget("./tables")(c)

		require.NoError(t, err)
		assert.Equal(t, "./tables", c.Target)
	})

	t.Run("empty target returns error", func(t *testing.T) {
		c := &Config{}
		err := WithTarget("")(c)

		require.Error(t, err)
		assert.True(t, IsConfigError(err))
	})
}

func TestWithTableName(t *testing.T) {
	t.Run("sets table name", func(t *testing.T) {
		c := &Config{}
		require.NoError(t, WithTableName("OrderItem", "order_lines")(c))
		require.NoError(t, WithTableName("Order", "purchases")(c))

		assert.Equal(t, map[string]string{"OrderItem": "order_lines", "Order": "purchases"}, c.Tables)
	})

	t.Run("empty names return error", func(t *testing.T) {
		c := &Config{}
		assert.True(t, IsConfigError(WithTableName("", "orders")(c)))
		assert.True(t, IsConfigError(WithTableName("Order", "")(c)))
		assert.Nil(t, c.Tables)
	})
}

func TestWithTables(t *testing.T) {
	t.Run("merges table names", func(t *testing.T) {
		c := &Config{Tables: map[string]string{"Order": "purchases"}}
		err := WithTables(map[string]string{"OrderItem": "order_lines"})(c)

		require.NoError(t, err)
		assert.Equal(t, map[string]string{"OrderItem": "order_lines", "Order": "purchases"}, c.Tables)
	})

	t.Run("empty table name returns error", func(t *testing.T) {
		c := &Config{}
		err := WithTables(map[string]string{"Order": ""})(c)

		require.Error(t, err)
		assert.True(t, IsConfigError(err))
	})
}

func TestWithSQLTypes(t *testing.T) {
	t.Run("sets resolver", func(t *testing.T) {
		c := &Config{}
		err := WithSQLTypes(func(*sqlschema.Column) string { return "TEXT" })(c)

		require.NoError(t, err)
		require.NotNil(t, c.SQLType)
		assert.Equal(t, "TEXT", c.SQLType(&sqlschema.Column{Name: "sku"}))
	})

	t.Run("nil resolver returns error", func(t *testing.T) {
		c := &Config{}
		err := WithSQLTypes(nil)(c)

		require.Error(t, err)
		assert.True(t, IsConfigError(err))
	})
}

func TestWithDDL(t *testing.T) {
	c := &Config{}
	require.NoError(t, c.Apply(
		WithDDL(`CREATE TABLE "orders" ("id" TEXT)`),
		WithDDL(`CREATE TABLE "order_tags" ("order_id" TEXT)`),
	))
	assert.Len(t, c.DDL, 2)
}

func TestConfigApply(t *testing.T) {
	t.Run("applies multiple options", func(t *testing.T) {
		c := &Config{}
		err := c.Apply(
			WithPackage("shop"),
			WithTarget("./tables"),
			WithHeader("Custom"),
		)

		require.NoError(t, err)
		assert.Equal(t, "shop", c.Package)
		assert.Equal(t, "./tables", c.Target)
		assert.Equal(t, "Custom", c.Header)
	})

	t.Run("stops on first error", func(t *testing.T) {
		c := &Config{}
		err := c.Apply(
			WithPackage(""),        // Error
			WithTarget("./tables"), // Should not be applied
		)

		require.Error(t, err)
		assert.Empty(t, c.Package)
		assert.Empty(t, c.Target)
	})
}

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := NewConfig()

		require.NoError(t, err)
		assert.Equal(t, "tables", c.Package)
	})

	t.Run("returns error on invalid option", func(t *testing.T) {
		c, err := NewConfig(
			WithPackage(""),
		)

		require.Error(t, err)
		assert.Nil(t, c)
	})
}

func TestConfigTable(t *testing.T) {
	c, err := NewConfig(WithTableName("OrderItem", "order_lines"), WithTableName("Order", "purchases"))
	require.NoError(t, err)

	assert.Equal(t, "order_lines", c.table(schema.Entity("OrderItem")))
	assert.Equal(t, "customers", c.table(schema.AggregateRoot("Customer")))
	// Overrides declared on the descriptor win.
	assert.Equal(t, "orders", c.table(schema.AggregateRoot("Order").WithTable("orders")))
}
