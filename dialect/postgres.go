package dialect

import (
	"context"
	"strconv"
	"strings"

	atlaspostgres "ariga.io/atlas/sql/postgres"
	atlas "ariga.io/atlas/sql/schema"

	"github.com/syssam/aggregate/dialect/sql/schema"
	"github.com/syssam/aggregate/schema/field"
)

// postgresAdapter is the PostgreSQL dialect.
type postgresAdapter struct{ base }

// NewPostgres returns the PostgreSQL adapter.
func NewPostgres() Adapter {
	return postgresAdapter{base{name: Postgres, quote: '"'}}
}

func (postgresAdapter) SQLType(c *schema.Column) string {
	switch c.Type {
	case field.TypeUUID:
		return "UUID"
	case field.TypeInt:
		return "BIGINT"
	case field.TypeFloat:
		return "DOUBLE PRECISION"
	case field.TypeBool:
		return "BOOLEAN"
	case field.TypeTime:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

func (postgresAdapter) AtlasType(c *schema.Column) atlas.Type {
	switch c.Type {
	case field.TypeUUID:
		return &atlas.UUIDType{T: "uuid"}
	case field.TypeInt:
		return &atlas.IntegerType{T: "bigint"}
	case field.TypeFloat:
		return &atlas.FloatType{T: "double precision"}
	case field.TypeBool:
		return &atlas.BoolType{T: "boolean"}
	case field.TypeTime:
		return &atlas.TimeType{T: "timestamp with time zone"}
	default:
		return &atlas.StringType{T: "text"}
	}
}

// Rebind replaces "?" placeholders with "$1", "$2", ...
func (postgresAdapter) Rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

func (a postgresAdapter) Encode(v any) any { return encode(a, v) }

func (a postgresAdapter) Decode(t field.Type, v any) (any, error) { return decode(a, t, v) }

func (a postgresAdapter) CreateTable(t *schema.Table) string { return a.createTable(a, t) }

func (a postgresAdapter) AddForeignKey(t *schema.Table, fk *schema.ForeignKey) (string, bool) {
	return a.alterForeignKey(t, fk), true
}

func (a postgresAdapter) Upsert(table string, columns, keys []string) string {
	return a.conflictUpsert(table, columns, keys)
}

func (a postgresAdapter) Plan(ctx context.Context, tables []*schema.Table) ([]string, error) {
	return plan(ctx, atlaspostgres.DefaultPlan, a, tables)
}
