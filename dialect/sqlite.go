package dialect

import (
	"context"
	"time"

	atlassqlite "ariga.io/atlas/sql/sqlite"
	atlas "ariga.io/atlas/sql/schema"

	"github.com/syssam/aggregate/dialect/sql/schema"
	"github.com/syssam/aggregate/schema/field"
)

// sqliteAdapter is the SQLite dialect. Datetimes are stored as RFC 3339
// text in UTC so that they sort lexically.
type sqliteAdapter struct{ base }

// NewSQLite returns the SQLite adapter.
func NewSQLite() Adapter {
	return sqliteAdapter{base{name: SQLite, quote: '"'}}
}

func (sqliteAdapter) SQLType(c *schema.Column) string {
	switch c.Type {
	case field.TypeInt:
		return "INTEGER"
	case field.TypeFloat:
		return "REAL"
	case field.TypeBool:
		return "BOOLEAN"
	case field.TypeTime:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

func (sqliteAdapter) AtlasType(c *schema.Column) atlas.Type {
	switch c.Type {
	case field.TypeInt:
		return &atlas.IntegerType{T: "integer"}
	case field.TypeFloat:
		return &atlas.FloatType{T: "real"}
	case field.TypeBool:
		return &atlas.BoolType{T: "boolean"}
	case field.TypeTime:
		return &atlas.TimeType{T: "datetime"}
	default:
		return &atlas.StringType{T: "text"}
	}
}

func (sqliteAdapter) EncodeTime(t time.Time) any {
	return t.UTC().Format(time.RFC3339Nano)
}

func (a sqliteAdapter) Encode(v any) any { return encode(a, v) }

func (a sqliteAdapter) Decode(t field.Type, v any) (any, error) { return decode(a, t, v) }

func (a sqliteAdapter) CreateTable(t *schema.Table) string { return a.createTable(a, t) }

// AddForeignKey reports false: SQLite cannot add constraints to existing
// tables, and it accepts references to tables created later.
func (sqliteAdapter) AddForeignKey(*schema.Table, *schema.ForeignKey) (string, bool) {
	return "", false
}

func (a sqliteAdapter) Upsert(table string, columns, keys []string) string {
	return a.conflictUpsert(table, columns, keys)
}

func (a sqliteAdapter) Plan(ctx context.Context, tables []*schema.Table) ([]string, error) {
	return plan(ctx, atlassqlite.DefaultPlan, a, tables)
}
