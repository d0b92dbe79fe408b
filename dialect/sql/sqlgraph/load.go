package sqlgraph

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/syssam/aggregate/dialect"
	"github.com/syssam/aggregate/dialect/sql/schema"
	"github.com/syssam/aggregate/mapper"
)

// DefaultBatchSize is the maximum number of values of one IN list.
const DefaultBatchSize = 500

// Loader loads all rows of one aggregate instance: the join query first,
// then follow-up queries for rows the joins cannot reach, until no new
// rows appear.
type Loader struct {
	query   *LoadQuery
	tables  []*schema.Table
	edges   []Edge
	adapter dialect.Adapter
	builder *QueryBuilder
	batch   int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithBatchSize sets the maximum number of values of one IN list.
func WithBatchSize(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.batch = n
		}
	}
}

// NewLoader returns a loader of the aggregate rooted at root.
func NewLoader(root *schema.Table, tables []*schema.Table, a dialect.Adapter, opts ...LoaderOption) *Loader {
	l := &Loader{
		query:   BuildLoadQuery(root, tables, a),
		tables:  tables,
		adapter: a,
		builder: NewQueryBuilder(a),
		batch:   DefaultBatchSize,
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if _, ok := schema.Find(tables, fk.RefTable.Name); ok {
				l.edges = append(l.edges, Edge{Table: t, FK: fk})
			}
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Query returns the join query of the loader.
func (l *Loader) Query() *LoadQuery {
	return l.query
}

// Load returns the rows of the aggregate with the given id. The result
// has no root row if the aggregate does not exist.
func (l *Loader) Load(ctx context.Context, conn dialect.ExecQuerier, id uuid.UUID) (mapper.RowSet, error) {
	rows, err := conn.Query(ctx, l.query.SQL, id)
	if err != nil {
		return nil, err
	}
	rs, err := l.query.Split(rows)
	if err != nil {
		return nil, err
	}
	if len(rs[l.query.Root.Name]) == 0 {
		return rs, nil
	}
	s := &loadState{
		rs:      rs,
		seen:    make(rowIndex),
		covered: make(map[edgeDir]map[any]bool),
	}
	for _, t := range l.tables {
		for _, row := range rs[t.Name] {
			s.seen.add(t, row)
		}
	}
	for _, j := range l.query.Joins {
		for _, c := range j.Conditions {
			if c.Reverse {
				s.cover(edgeDir{fk: c.FK, reverse: true}, s.values(j.Parent, c.FK.RefColumn.Name))
			} else {
				s.cover(edgeDir{fk: c.FK}, s.values(j.Parent, c.FK.Column.Name))
			}
		}
	}
	for {
		queried := false
		for _, e := range l.edges {
			for _, reverse := range []bool{true, false} {
				n, err := l.follow(ctx, conn, s, e, reverse)
				if err != nil {
					return nil, err
				}
				queried = queried || n > 0
			}
		}
		if !queried {
			return rs, nil
		}
	}
}

// follow queries the rows behind one direction of an edge for the keys
// not covered yet, and returns the number of queried keys. Reverse
// loads the rows of the edge table referencing loaded rows; forward
// loads the referenced rows.
func (l *Loader) follow(ctx context.Context, conn dialect.ExecQuerier, s *loadState, e Edge, reverse bool) (int, error) {
	var (
		dir    = edgeDir{fk: e.FK, reverse: reverse}
		target = e.FK.RefTable
		column = e.FK.RefColumn.Name
		keys   []any
	)
	if reverse {
		target, column = e.Table, e.FK.Column.Name
		keys = s.values(e.FK.RefTable, e.FK.RefColumn.Name)
	} else {
		loaded := make(map[any]bool)
		for _, v := range s.values(target, column) {
			loaded[v] = true
		}
		for _, v := range s.values(e.Table, e.FK.Column.Name) {
			if !loaded[v] {
				keys = append(keys, v)
			}
		}
	}
	keys = s.uncovered(dir, keys)
	if len(keys) == 0 {
		return 0, nil
	}
	s.cover(dir, keys)
	columns := target.ColumnNames()
	for start := 0; start < len(keys); start += l.batch {
		end := min(start+l.batch, len(keys))
		query := l.builder.SelectWhereIn(target.Name, columns, column, end-start)
		rows, err := conn.Query(ctx, query, keys[start:end]...)
		if err != nil {
			return 0, err
		}
		for _, values := range rows.Values {
			if len(values) != len(target.Columns) {
				return 0, fmt.Errorf("sqlgraph: %s row has %d values, want %d", target.Name, len(values), len(target.Columns))
			}
			row, err := decodeRow(l.adapter, target, values)
			if err != nil {
				return 0, err
			}
			if row != nil && s.seen.add(target, row) {
				s.rs.Add(target.Name, row)
			}
		}
	}
	return len(keys), nil
}

type edgeDir struct {
	fk      *schema.ForeignKey
	reverse bool
}

// loadState is the row set under construction and the keys already
// queried per edge direction.
type loadState struct {
	rs      mapper.RowSet
	seen    rowIndex
	covered map[edgeDir]map[any]bool
}

// values returns the distinct non-nil values of a column.
func (s *loadState) values(t *schema.Table, column string) []any {
	var (
		vs   []any
		seen = make(map[any]bool)
	)
	for _, row := range s.rs[t.Name] {
		v := row[column]
		if v == nil || seen[v] {
			continue
		}
		seen[v] = true
		vs = append(vs, v)
	}
	return vs
}

func (s *loadState) cover(dir edgeDir, keys []any) {
	if s.covered[dir] == nil {
		s.covered[dir] = make(map[any]bool)
	}
	for _, k := range keys {
		s.covered[dir][k] = true
	}
}

func (s *loadState) uncovered(dir edgeDir, keys []any) []any {
	var out []any
	for _, k := range keys {
		if !s.covered[dir][k] {
			out = append(out, k)
		}
	}
	return out
}
