package dialect

import (
	"context"
	"fmt"
	"strings"

	atlasmysql "ariga.io/atlas/sql/mysql"
	atlas "ariga.io/atlas/sql/schema"

	"github.com/syssam/aggregate/dialect/sql/schema"
	"github.com/syssam/aggregate/schema/field"
)

// mysqlAdapter is the MySQL dialect. Key columns can not be TEXT, so
// string keys use VARCHAR(255).
type mysqlAdapter struct{ base }

// NewMySQL returns the MySQL adapter.
func NewMySQL() Adapter {
	return mysqlAdapter{base{name: MySQL, quote: '`'}}
}

func (mysqlAdapter) SQLType(c *schema.Column) string {
	switch c.Type {
	case field.TypeUUID:
		return "CHAR(36)"
	case field.TypeInt:
		return "BIGINT"
	case field.TypeFloat:
		return "DOUBLE"
	case field.TypeBool:
		return "BOOLEAN"
	case field.TypeTime:
		return "DATETIME(6)"
	default:
		if isKey(c) {
			return "VARCHAR(255)"
		}
		return "TEXT"
	}
}

func (mysqlAdapter) AtlasType(c *schema.Column) atlas.Type {
	switch c.Type {
	case field.TypeUUID:
		return &atlas.StringType{T: "char", Size: 36}
	case field.TypeInt:
		return &atlas.IntegerType{T: "bigint"}
	case field.TypeFloat:
		return &atlas.FloatType{T: "double"}
	case field.TypeBool:
		return &atlas.BoolType{T: "bool"}
	case field.TypeTime:
		return &atlas.TimeType{T: "datetime"}
	default:
		if isKey(c) {
			return &atlas.StringType{T: "varchar", Size: 255}
		}
		return &atlas.StringType{T: "text"}
	}
}

func (a mysqlAdapter) Encode(v any) any { return encode(a, v) }

func (a mysqlAdapter) Decode(t field.Type, v any) (any, error) { return decode(a, t, v) }

func (a mysqlAdapter) CreateTable(t *schema.Table) string { return a.createTable(a, t) }

func (a mysqlAdapter) AddForeignKey(t *schema.Table, fk *schema.ForeignKey) (string, bool) {
	return a.alterForeignKey(t, fk), true
}

func (a mysqlAdapter) Upsert(table string, columns, keys []string) string {
	stmt := a.insert(table, columns)
	if len(keys) == 0 {
		return stmt
	}
	set := updates(columns, keys)
	if len(set) == 0 {
		// No-op update of the first key.
		return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s = %s", stmt, a.Quote(keys[0]), a.Quote(keys[0]))
	}
	assign := make([]string, len(set))
	for i, c := range set {
		assign[i] = fmt.Sprintf("%s = VALUES(%s)", a.Quote(c), a.Quote(c))
	}
	return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s", stmt, strings.Join(assign, ", "))
}

func (a mysqlAdapter) Plan(ctx context.Context, tables []*schema.Table) ([]string, error) {
	return plan(ctx, atlasmysql.DefaultPlan, a, tables)
}
