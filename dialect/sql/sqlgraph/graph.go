package sqlgraph

import (
	"fmt"
	"strings"

	"github.com/syssam/aggregate/dialect"
	"github.com/syssam/aggregate/dialect/sql/schema"
	"github.com/syssam/aggregate/mapper"
)

// RootAlias is the alias of the root table in load queries.
const RootAlias = "t0"

type (
	// JoinCondition is one equality of a join: either a child foreign key
	// matching the parent id (reverse) or the child id matching a parent
	// foreign key (forward).
	JoinCondition struct {
		FK      *schema.ForeignKey
		Reverse bool
	}

	// JoinClause is one LEFT JOIN of a load query.
	JoinClause struct {
		Table       *schema.Table
		Alias       string
		Parent      *schema.Table
		ParentAlias string
		// Conditions are joined with OR.
		Conditions []JoinCondition
	}

	// Edge is a foreign key together with the table holding it.
	Edge struct {
		Table *schema.Table
		FK    *schema.ForeignKey
	}

	// SelectedColumn is one positional column of a load query.
	SelectedColumn struct {
		Alias  string
		Table  *schema.Table
		Column *schema.Column
	}

	// LoadQuery is the SELECT loading a whole aggregate in one round
	// trip. Its single argument is the root id.
	LoadQuery struct {
		Root    *schema.Table
		SQL     string
		Columns []SelectedColumn
		Joins   []JoinClause
		// Cut holds the foreign keys between tables of the aggregate that
		// no join follows, usually because the target was already joined.
		// Rows behind them need follow-up queries.
		Cut     []Edge
		adapter dialect.Adapter
	}
)

// String renders the clause with the dialect quoting.
func (j JoinClause) String(a dialect.Adapter) string {
	conds := make([]string, len(j.Conditions))
	for i, c := range j.Conditions {
		if c.Reverse {
			conds[i] = fmt.Sprintf("%s.%s = %s.%s", j.Alias, a.Quote(c.FK.Column.Name), j.ParentAlias, a.Quote(c.FK.RefColumn.Name))
		} else {
			conds[i] = fmt.Sprintf("%s.%s = %s.%s", j.Alias, a.Quote(c.FK.RefColumn.Name), j.ParentAlias, a.Quote(c.FK.Column.Name))
		}
	}
	return fmt.Sprintf("LEFT JOIN %s AS %s ON %s", a.Quote(j.Table.Name), j.Alias, strings.Join(conds, " OR "))
}

// String returns the edge as table.column -> table.
func (e Edge) String() string {
	return fmt.Sprintf("%s.%s -> %s", e.Table.Name, e.FK.Column.Name, e.FK.RefTable.Name)
}

// BuildJoinClauses returns a LEFT JOIN for every table with a foreign key
// pointing at table, in the order of tables. The joined table itself is
// aliased RootAlias. Tables flagged as aggregate roots and self
// references are never joined.
func BuildJoinClauses(table *schema.Table, tables []*schema.Table, a dialect.Adapter) []JoinClause {
	b := &joiner{joined: map[*schema.Table]string{table: RootAlias}}
	return b.children(table, tables, false)
}

// BuildLoadQuery returns the query selecting the root row with id = ? and
// every row of the aggregate reachable through joins. Tables are joined
// breadth first from the root, each at most once, through the foreign
// keys pointing at an already joined table and the foreign keys of that
// table pointing at them. Joins never enter a table flagged as aggregate
// root. All columns are qualified by their table alias.
func BuildLoadQuery(root *schema.Table, tables []*schema.Table, a dialect.Adapter) *LoadQuery {
	var (
		b     = &joiner{joined: map[*schema.Table]string{root: RootAlias}}
		q     = &LoadQuery{Root: root, adapter: a}
		queue = []*schema.Table{root}
	)
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		joins := b.children(parent, tables, true)
		for _, j := range joins {
			queue = append(queue, j.Table)
		}
		q.Joins = append(q.Joins, joins...)
	}
	joinedAt := map[*schema.Table]bool{root: true}
	for _, j := range q.Joins {
		joinedAt[j.Table] = true
	}
	used := make(map[*schema.ForeignKey]bool)
	for _, j := range q.Joins {
		for _, c := range j.Conditions {
			used[c.FK] = true
		}
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if !used[fk] && joinedAt[t] && joinedAt[fk.RefTable] {
				q.Cut = append(q.Cut, Edge{Table: t, FK: fk})
			}
		}
	}
	q.Columns = selectColumns(RootAlias, root)
	for _, j := range q.Joins {
		q.Columns = append(q.Columns, selectColumns(j.Alias, j.Table)...)
	}
	cols := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		cols[i] = c.Alias + "." + a.Quote(c.Column.Name)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s AS %s", strings.Join(cols, ", "), a.Quote(root.Name), RootAlias)
	for _, j := range q.Joins {
		sb.WriteString(" ")
		sb.WriteString(j.String(a))
	}
	fmt.Fprintf(&sb, " WHERE %s.%s = ?", RootAlias, a.Quote(schema.IDColumn))
	q.SQL = sb.String()
	return q
}

func selectColumns(alias string, t *schema.Table) []SelectedColumn {
	cols := make([]SelectedColumn, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = SelectedColumn{Alias: alias, Table: t, Column: c}
	}
	return cols
}

// joiner hands out table aliases and remembers the joined tables.
type joiner struct {
	joined map[*schema.Table]string
}

// children returns the joins of the tables related to parent that were
// not joined yet. Forward joins follow the foreign keys of parent too.
func (b *joiner) children(parent *schema.Table, tables []*schema.Table, forward bool) []JoinClause {
	var joins []JoinClause
	for _, t := range tables {
		if _, ok := b.joined[t]; ok || t.AggregateRoot {
			continue
		}
		var conds []JoinCondition
		for _, fk := range t.ForeignKeysTo(parent) {
			conds = append(conds, JoinCondition{FK: fk, Reverse: true})
		}
		if forward {
			for _, fk := range parent.ForeignKeysTo(t) {
				conds = append(conds, JoinCondition{FK: fk})
			}
		}
		if len(conds) == 0 {
			continue
		}
		alias := fmt.Sprintf("t%d", len(b.joined))
		b.joined[t] = alias
		joins = append(joins, JoinClause{
			Table:       t,
			Alias:       alias,
			Parent:      parent,
			ParentAlias: b.joined[parent],
			Conditions:  conds,
		})
	}
	return joins
}

// Tables returns the root table followed by the joined tables.
func (q *LoadQuery) Tables() []*schema.Table {
	tables := make([]*schema.Table, 0, len(q.Joins)+1)
	tables = append(tables, q.Root)
	for _, j := range q.Joins {
		tables = append(tables, j.Table)
	}
	return tables
}

// Split regroups the joined result into the rows of each table. Values
// are decoded by the dialect adapter. The absent side of a LEFT JOIN is
// skipped, and rows repeated by the join product are kept once, in the
// order they first appear.
func (q *LoadQuery) Split(rows *dialect.Rows) (mapper.RowSet, error) {
	var (
		rs   = make(mapper.RowSet)
		seen = make(rowIndex)
	)
	for n, values := range rows.Values {
		if len(values) != len(q.Columns) {
			return nil, fmt.Errorf("sqlgraph: row %d has %d values, want %d", n, len(values), len(q.Columns))
		}
		start := 0
		for start < len(values) {
			t := q.Columns[start].Table
			end := start + len(t.Columns)
			row, err := decodeRow(q.adapter, t, values[start:end])
			if err != nil {
				return nil, err
			}
			start = end
			if row == nil || !seen.add(t, row) {
				continue
			}
			rs.Add(t.Name, row)
		}
	}
	return rs, nil
}

// decodeRow decodes the values of one table row. It returns nil for the
// absent side of a LEFT JOIN.
func decodeRow(a dialect.Adapter, t *schema.Table, values []any) (mapper.Row, error) {
	absent := true
	for i, c := range t.Columns {
		if values[i] != nil && (c.PrimaryKey || !t.HasID()) {
			absent = false
		}
	}
	if absent {
		return nil, nil
	}
	row := make(mapper.Row, len(values))
	for i, c := range t.Columns {
		v, err := a.Decode(c.Type, values[i])
		if err != nil {
			return nil, fmt.Errorf("sqlgraph: decode %s.%s: %w", t.Name, c.Name, err)
		}
		row[c.Name] = v
	}
	return row, nil
}

// rowIndex holds the identity of loaded rows per table: the primary key,
// or the whole row for tables without one.
type rowIndex map[string]map[string]bool

// add reports whether the row was not indexed yet.
func (x rowIndex) add(t *schema.Table, row mapper.Row) bool {
	k := rowKey(t, row)
	if x[t.Name] == nil {
		x[t.Name] = make(map[string]bool)
	}
	if x[t.Name][k] {
		return false
	}
	x[t.Name][k] = true
	return true
}

func rowKey(t *schema.Table, row mapper.Row) string {
	cols := t.PrimaryKey
	if len(cols) == 0 {
		cols = t.Columns
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(row[c.Name])
	}
	return strings.Join(parts, "\x00")
}
