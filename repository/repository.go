// Package repository loads, saves and deletes whole aggregate instances
// through a dialect.Connection.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/syssam/aggregate"
	"github.com/syssam/aggregate/compiler/gen"
	"github.com/syssam/aggregate/dialect"
	"github.com/syssam/aggregate/dialect/sql/schema"
	"github.com/syssam/aggregate/dialect/sql/sqlgraph"
	"github.com/syssam/aggregate/mapper"
)

// Repository stores the instances of one aggregate root. It is safe for
// concurrent use when the connection is.
type Repository struct {
	conn    dialect.Connection
	adapter dialect.Adapter
	agg     *gen.Aggregate
	loader  *sqlgraph.Loader
	builder *sqlgraph.QueryBuilder
	// order holds the tables with referenced tables first.
	order  []*schema.Table
	logger *slog.Logger
	batch  int
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger. Operations are logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithAdapter sets the dialect adapter, overriding the adapter of the
// connection dialect.
func WithAdapter(a dialect.Adapter) Option {
	return func(r *Repository) {
		r.adapter = a
	}
}

// WithBatchSize sets the maximum number of values of the IN lists of
// follow-up load queries.
func WithBatchSize(n int) Option {
	return func(r *Repository) {
		r.batch = n
	}
}

// New returns a repository of the aggregate.
func New(conn dialect.Connection, a *gen.Aggregate, opts ...Option) (*Repository, error) {
	if conn == nil || a == nil {
		return nil, fmt.Errorf("repository: connection and aggregate must be set")
	}
	r := &Repository{
		conn:   conn,
		agg:    a,
		order:  a.SortedTables(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.adapter == nil {
		adapter, err := dialect.Get(conn.Dialect())
		if err != nil {
			return nil, fmt.Errorf("repository: %w", err)
		}
		r.adapter = adapter
	}
	r.builder = sqlgraph.NewQueryBuilder(r.adapter)
	r.loader = sqlgraph.NewLoader(a.Table, a.Tables, r.adapter, sqlgraph.WithBatchSize(r.batch))
	return r, nil
}

// Aggregate returns the schema of the stored aggregate.
func (r *Repository) Aggregate() *gen.Aggregate {
	return r.agg
}

// CreateSchema creates the tables of the aggregate if they do not exist.
func (r *Repository) CreateSchema(ctx context.Context) error {
	for _, stmt := range dialect.CreateTables(r.adapter, r.agg.Tables) {
		if _, err := r.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("repository: create schema: %w", err)
		}
	}
	r.logger.DebugContext(ctx, "schema created", "root", r.agg.Root.Name, "tables", len(r.agg.Tables))
	return nil
}

// GetByID loads the aggregate with the given id. It fails with a
// NotFoundError if no root row exists.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*mapper.Object, error) {
	var rs mapper.RowSet
	err := r.conn.Transaction(ctx, func(ctx context.Context) error {
		var err error
		rs, err = r.loader.Load(ctx, r.conn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(rs[r.agg.Table.Name]) == 0 {
		return nil, aggregate.NewNotFoundErrorWithID(r.agg.Root.Name, id)
	}
	obj, err := mapper.Deserialize(rs, r.agg)
	if err != nil {
		return nil, err
	}
	r.logger.DebugContext(ctx, "aggregate loaded", "root", r.agg.Root.Name, "id", id, "rows", rs.Len())
	return obj, nil
}

// Save writes the aggregate in one transaction, replacing every row it
// owned before: rows are upserted referenced tables first, and rows the
// instance no longer holds are deleted afterwards, children first.
func (r *Repository) Save(ctx context.Context, obj *mapper.Object) error {
	rs, err := mapper.Serialize(obj, r.agg)
	if err != nil {
		return err
	}
	var stats writeStats
	err = r.conn.Transaction(ctx, func(ctx context.Context) error {
		old, err := r.loader.Load(ctx, r.conn, obj.ID)
		if err != nil {
			return err
		}
		stats, err = r.write(ctx, old, rs)
		return err
	})
	if err != nil {
		return err
	}
	r.logger.DebugContext(ctx, "aggregate saved",
		"root", r.agg.Root.Name, "id", obj.ID,
		"upserted", stats.upserted, "deferred", stats.deferred, "deleted", stats.deleted,
	)
	return nil
}

// DeleteByID deletes the aggregate and every row it owns. It fails with
// a NotFoundError if no root row exists.
func (r *Repository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	var deleted int64
	err := r.conn.Transaction(ctx, func(ctx context.Context) error {
		old, err := r.loader.Load(ctx, r.conn, id)
		if err != nil {
			return err
		}
		if len(old[r.agg.Table.Name]) == 0 {
			return aggregate.NewNotFoundErrorWithID(r.agg.Root.Name, id)
		}
		deleted, err = r.delete(ctx, old, nil)
		return err
	})
	if err != nil {
		return err
	}
	r.logger.DebugContext(ctx, "aggregate deleted", "root", r.agg.Root.Name, "id", id, "rows", deleted)
	return nil
}

type writeStats struct {
	upserted, deferred int
	deleted            int64
}

// rowRef identifies a row of a table keyed by id.
type rowRef struct {
	table string
	id    any
}

// deferredFK is a foreign key written after the referenced row exists.
type deferredFK struct {
	table  *schema.Table
	column string
	value  any
	id     any
}

// write upserts the rows of rs and deletes the rows of old that rs does
// not hold. A nullable foreign key referencing a row written later in
// the same call is first written as NULL and set once all rows exist.
func (r *Repository) write(ctx context.Context, old, rs mapper.RowSet) (writeStats, error) {
	var (
		stats    writeStats
		pending  = make(map[rowRef]bool)
		deferred []deferredFK
	)
	for _, t := range r.order {
		if !t.HasID() {
			continue
		}
		for _, row := range rs[t.Name] {
			pending[rowRef{t.Name, row[schema.IDColumn]}] = true
		}
	}
	for _, t := range r.order {
		if len(t.PrimaryKey) == 0 {
			n, err := r.deleteOwned(ctx, t, old[t.Name], rs[t.Name])
			if err != nil {
				return stats, err
			}
			stats.deleted += n
		}
		var (
			cols  = t.ColumnNames()
			query = r.builder.Upsert(t.Name, cols, t.PrimaryKeyNames())
		)
		for _, row := range rs[t.Name] {
			args := make([]any, len(cols))
			for i, c := range cols {
				args[i] = row[c]
			}
			for _, fk := range t.ForeignKeys {
				v := row[fk.Column.Name]
				if v == nil || !fk.Column.Nullable || !pending[rowRef{fk.RefTable.Name, v}] {
					continue
				}
				args[slices.Index(cols, fk.Column.Name)] = nil
				deferred = append(deferred, deferredFK{table: t, column: fk.Column.Name, value: v, id: row[schema.IDColumn]})
			}
			if _, err := r.conn.Exec(ctx, query, args...); err != nil {
				return stats, fmt.Errorf("repository: write %s: %w", t.Name, err)
			}
			stats.upserted++
			if t.HasID() {
				delete(pending, rowRef{t.Name, row[schema.IDColumn]})
			}
		}
	}
	for _, d := range deferred {
		query := r.builder.Update(d.table.Name, []string{d.column}, []string{schema.IDColumn})
		if _, err := r.conn.Exec(ctx, query, d.value, d.id); err != nil {
			return stats, fmt.Errorf("repository: write %s.%s: %w", d.table.Name, d.column, err)
		}
		stats.deferred++
	}
	n, err := r.delete(ctx, old, rs)
	stats.deleted += n
	return stats, err
}

// delete deletes the keyed rows of old missing from keep, children
// first. Rows of tables without a primary key are deleted by owner; when
// keep is not nil they were already replaced by write.
func (r *Repository) delete(ctx context.Context, old, keep mapper.RowSet) (int64, error) {
	var deleted int64
	for _, t := range slices.Backward(r.order) {
		if len(t.PrimaryKey) == 0 {
			if keep != nil {
				continue
			}
			n, err := r.deleteOwned(ctx, t, old[t.Name], nil)
			if err != nil {
				return deleted, err
			}
			deleted += n
			continue
		}
		var (
			keys  = t.PrimaryKeyNames()
			kept  = make(map[string]bool)
			query = r.builder.Delete(t.Name, keys)
		)
		for _, row := range keep[t.Name] {
			kept[r.key(t, row, keys)] = true
		}
		for _, row := range old[t.Name] {
			if kept[r.key(t, row, keys)] {
				continue
			}
			args := make([]any, len(keys))
			for i, k := range keys {
				args[i] = row[k]
			}
			n, err := r.conn.Exec(ctx, query, args...)
			if err != nil {
				return deleted, fmt.Errorf("repository: delete %s: %w", t.Name, err)
			}
			deleted += n
		}
	}
	return deleted, nil
}

// deleteOwned deletes the rows of a table without primary key by their
// owner foreign key, for every owner of the old and new rows.
func (r *Repository) deleteOwned(ctx context.Context, t *schema.Table, rows ...[]mapper.Row) (int64, error) {
	if len(t.ForeignKeys) == 0 {
		return 0, fmt.Errorf("repository: table %s has neither primary nor foreign key", t.Name)
	}
	var (
		owner   = t.ForeignKeys[0].Column.Name
		query   = r.builder.Delete(t.Name, []string{owner})
		seen    = make(map[any]bool)
		deleted int64
	)
	for _, row := range slices.Concat(rows...) {
		v := row[owner]
		if v == nil || seen[v] {
			continue
		}
		seen[v] = true
		n, err := r.conn.Exec(ctx, query, v)
		if err != nil {
			return deleted, fmt.Errorf("repository: delete %s: %w", t.Name, err)
		}
		deleted += n
	}
	return deleted, nil
}

// key returns the identity of a row by its key columns. Values go
// through the adapter first, so a saved value and the value loaded back
// from the database yield the same key.
func (r *Repository) key(t *schema.Table, row mapper.Row, keys []string) string {
	k := ""
	for _, name := range keys {
		v := row[name]
		if c, ok := t.Column(name); ok {
			if dv, err := r.adapter.Decode(c.Type, r.adapter.Encode(v)); err == nil {
				v = dv
			}
		}
		k += fmt.Sprint(v) + "\x00"
	}
	return k
}
