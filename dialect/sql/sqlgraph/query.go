package sqlgraph

import (
	"fmt"
	"strings"

	"github.com/syssam/aggregate/dialect"
	"github.com/syssam/aggregate/dialect/sql/schema"
)

// QueryBuilder renders single-table statement templates with "?"
// placeholders. Identifiers are quoted by the dialect adapter.
type QueryBuilder struct {
	adapter dialect.Adapter
}

// NewQueryBuilder returns a builder using the adapter for quoting.
func NewQueryBuilder(a dialect.Adapter) *QueryBuilder {
	return &QueryBuilder{adapter: a}
}

// SelectByID renders SELECT <columns> FROM <table> WHERE id = ?.
func (b *QueryBuilder) SelectByID(table string, columns []string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", b.list(columns), b.adapter.Quote(table), b.adapter.Quote(schema.IDColumn))
}

// SelectWhereIn renders a SELECT of the rows whose column matches one of
// n values.
func (b *QueryBuilder) SelectWhereIn(table string, columns []string, column string, n int) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)", b.list(columns), b.adapter.Quote(table), b.adapter.Quote(column), placeholders(n))
}

// Insert renders INSERT INTO <table> (<columns>) VALUES (?, ...).
func (b *QueryBuilder) Insert(table string, columns []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", b.adapter.Quote(table), b.list(columns), placeholders(len(columns)))
}

// Update renders UPDATE <table> SET <columns> = ? WHERE <keys> = ?. The
// arguments are the column values followed by the key values.
func (b *QueryBuilder) Update(table string, columns, keys []string) string {
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = b.adapter.Quote(c) + " = ?"
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s", b.adapter.Quote(table), strings.Join(sets, ", "), b.match(keys))
}

// Delete renders DELETE FROM <table> WHERE <keys> = ?.
func (b *QueryBuilder) Delete(table string, keys []string) string {
	return b.adapter.Delete(table, keys)
}

// Upsert renders the dialect's insert-or-update statement.
func (b *QueryBuilder) Upsert(table string, columns, keys []string) string {
	return b.adapter.Upsert(table, columns, keys)
}

func (b *QueryBuilder) list(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = b.adapter.Quote(id)
	}
	return strings.Join(quoted, ", ")
}

func (b *QueryBuilder) match(keys []string) string {
	conds := make([]string, len(keys))
	for i, k := range keys {
		conds[i] = b.adapter.Quote(k) + " = ?"
	}
	return strings.Join(conds, " AND ")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
