package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/aggregate"
	"github.com/syssam/aggregate/dialect"
)

// Driver is a dialect.Connection backed by a database/sql pool.
// Transactions are carried by the context passed to Transaction's callback.
type Driver struct {
	db      *sql.DB
	dialect string
	adapter dialect.Adapter
}

// Open opens a database with the registered driver name and returns a
// Driver for it. The dialect is derived from the driver name ("pgx" and
// "postgres" are Postgres, "sqlite" and "sqlite3" are SQLite).
func Open(driverName, source string) (*Driver, error) {
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, Classify("open", err)
	}
	drv, err := OpenDB(driverName, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return drv, nil
}

// OpenDB wraps the given database/sql.DB with a Driver.
func OpenDB(name string, db *sql.DB) (*Driver, error) {
	a, err := dialect.Get(name)
	if err != nil {
		return nil, err
	}
	return &Driver{db: db, dialect: a.Name(), adapter: a}, nil
}

// DB returns the underlying *sql.DB instance.
func (d *Driver) DB() *sql.DB { return d.db }

// Dialect implements the dialect.Connection interface.
func (d *Driver) Dialect() string { return d.dialect }

// Adapter returns the dialect adapter used to rebind and encode arguments.
func (d *Driver) Adapter() dialect.Adapter { return d.adapter }

// Ping verifies the database is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	return Classify("ping", d.db.PingContext(ctx))
}

// Close closes the underlying pool.
func (d *Driver) Close() error { return Classify("close", d.db.Close()) }

// execQuerier is implemented by *sql.DB and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// txKey is the context key of the running transaction.
type txKey struct{}

// txState is the transaction of one outermost Transaction call.
type txState struct {
	drv   *Driver
	tx    *sql.Tx
	depth int
	// failed is set when a nested level returned an error.
	failed bool
}

func (d *Driver) state(ctx context.Context) (*txState, bool) {
	st, ok := ctx.Value(txKey{}).(*txState)
	if !ok || st.drv != d {
		return nil, false
	}
	return st, true
}

func (d *Driver) conn(ctx context.Context) execQuerier {
	if st, ok := d.state(ctx); ok {
		return st.tx
	}
	return d.db
}

// TxDepth returns the transaction nesting depth of the context, zero
// outside of a transaction.
func (d *Driver) TxDepth(ctx context.Context) int {
	if st, ok := d.state(ctx); ok {
		return st.depth
	}
	return 0
}

func (d *Driver) args(args []any) []any {
	if len(args) == 0 {
		return args
	}
	argv := make([]any, len(args))
	for i, a := range args {
		argv[i] = d.adapter.Encode(a)
	}
	return argv
}

// Exec implements the dialect.ExecQuerier interface.
func (d *Driver) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.conn(ctx).ExecContext(ctx, d.adapter.Rebind(query), d.args(args)...)
	if err != nil {
		return 0, Classify("exec", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, Classify("exec", err)
	}
	return n, nil
}

// Query implements the dialect.ExecQuerier interface. All rows are read
// before it returns.
func (d *Driver) Query(ctx context.Context, query string, args ...any) (*dialect.Rows, error) {
	rows, err := d.conn(ctx).QueryContext(ctx, d.adapter.Rebind(query), d.args(args)...)
	if err != nil {
		return nil, Classify("query", err)
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, Classify("query", err)
	}
	res := &dialect.Rows{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, Classify("scan", err)
		}
		res.Values = append(res.Values, values)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify("query", err)
	}
	return res, nil
}

// ErrNestedRollback is returned by the outermost Transaction call when
// a nested call failed but the error was not propagated.
var ErrNestedRollback = errors.New("dialect/sql: nested transaction failed")

// Transaction implements the dialect.Connection interface. Only the
// outermost call begins a transaction; nested calls increase the depth
// and run in the same transaction.
func (d *Driver) Transaction(ctx context.Context, fn func(context.Context) error) error {
	if st, ok := d.state(ctx); ok {
		st.depth++
		defer func() { st.depth-- }()
		if err := fn(ctx); err != nil {
			st.failed = true
			return err
		}
		return nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return Classify("begin", err)
	}
	st := &txState{drv: d, tx: tx, depth: 1}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	err = fn(context.WithValue(ctx, txKey{}, st))
	if err == nil && st.failed {
		err = ErrNestedRollback
	}
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, &aggregate.RollbackError{Err: Classify("rollback", rerr)})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return Classify("commit", err)
	}
	return nil
}

// String implements the fmt.Stringer interface.
func (d *Driver) String() string {
	return fmt.Sprintf("sql.Driver(%s)", strings.ToLower(d.dialect))
}

var _ dialect.Connection = (*Driver)(nil)
