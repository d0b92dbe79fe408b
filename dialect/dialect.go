package dialect

import (
	"context"
	"fmt"
)

// Dialect names.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Rows is a fully read query result. Values holds one slice per row,
// in the order of Columns, as returned by the driver.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Values)
}

// Index returns the position of the named column, or -1.
func (r *Rows) Index(column string) int {
	for i, c := range r.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// ExecQuerier wraps the Exec and Query methods of a connection.
type ExecQuerier interface {
	// Exec executes a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// Query executes a query and reads all of its rows.
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
}

// Connection is the database connection used by repositories. Queries
// use "?" placeholders; the connection rebinds them for its dialect.
type Connection interface {
	ExecQuerier
	// Transaction runs fn in a transaction. Calls nest: only the outermost
	// call begins and commits, and any failure rolls back the outermost
	// transaction. fn must use the given context for its statements.
	Transaction(ctx context.Context, fn func(context.Context) error) error
	// Dialect returns the dialect name of the connection.
	Dialect() string
	// Close closes the connection.
	Close() error
}

// Get returns the adapter of the named dialect.
func Get(name string) (Adapter, error) {
	switch name {
	case SQLite, "sqlite3":
		return NewSQLite(), nil
	case MySQL:
		return NewMySQL(), nil
	case Postgres, "postgresql", "pgx":
		return NewPostgres(), nil
	}
	return nil, fmt.Errorf("dialect: unsupported dialect %q", name)
}
