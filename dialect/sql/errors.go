package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/syssam/aggregate"
)

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation    = "23505"
	pgIntegrityClass     = "23"
	pgConnectionClass    = "08"
	pgQueryCanceled      = "57014"
	pgLockNotAvailable   = "55P03"
	pgAdminShutdown      = "57P01"
	pgCannotConnectNow   = "57P03"
	pgTooManyConnections = "53300"
)

// MySQL error numbers.
const (
	mysqlDuplicateEntry         = 1062
	mysqlBadNull                = 1048
	mysqlNoDefault              = 1364
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
	mysqlLockWaitTimeout        = 1205
	mysqlQueryInterrupted       = 3024
	mysqlTooManyConnections     = 1040
	mysqlAccessDenied           = 1045
)

// sqlStateError is implemented by errors carrying a SQLSTATE code.
type sqlStateError interface {
	SQLState() string
}

// Classify converts a native driver error into an *aggregate.Error.
// Errors that are already classified are returned as is.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *aggregate.Error
	if errors.As(err, &ae) {
		return err
	}
	return aggregate.NewError(classify(err), op, err)
}

func classify(err error) aggregate.Code {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return aggregate.CodeNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return aggregate.CodeTimeout
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone), errors.Is(err, mysql.ErrInvalidConn):
		return aggregate.CodeConnection
	}
	if e, ok := asError[*pq.Error](err); ok {
		return pgCode(string(e.Code))
	}
	if e, ok := asError[*pgconn.PgError](err); ok {
		return pgCode(e.Code)
	}
	if e, ok := asError[*mysql.MySQLError](err); ok {
		return mysqlCode(e.Number)
	}
	if e, ok := asError[*sqlite.Error](err); ok {
		return sqliteCode(e.Code(), e.Error())
	}
	if e, ok := asError[sqlStateError](err); ok {
		return pgCode(e.SQLState())
	}
	if _, ok := asError[*pgconn.ConnectError](err); ok {
		return aggregate.CodeConnection
	}
	if pgconn.Timeout(err) {
		return aggregate.CodeTimeout
	}
	if e, ok := asError[net.Error](err); ok {
		if e.Timeout() {
			return aggregate.CodeTimeout
		}
		return aggregate.CodeConnection
	}
	return fallback(err.Error())
}

func pgCode(code string) aggregate.Code {
	switch {
	case code == pgUniqueViolation:
		return aggregate.CodeDuplicate
	case strings.HasPrefix(code, pgIntegrityClass):
		return aggregate.CodeConstraint
	case strings.HasPrefix(code, pgConnectionClass),
		code == pgAdminShutdown, code == pgCannotConnectNow, code == pgTooManyConnections:
		return aggregate.CodeConnection
	case code == pgQueryCanceled, code == pgLockNotAvailable:
		return aggregate.CodeTimeout
	}
	return aggregate.CodeUnknown
}

func mysqlCode(n uint16) aggregate.Code {
	switch n {
	case mysqlDuplicateEntry:
		return aggregate.CodeDuplicate
	case mysqlForeignKeyParent, mysqlForeignKeyChild, mysqlCheckConstraintViolate, mysqlBadNull, mysqlNoDefault:
		return aggregate.CodeConstraint
	case mysqlLockWaitTimeout, mysqlQueryInterrupted:
		return aggregate.CodeTimeout
	case mysqlTooManyConnections, mysqlAccessDenied:
		return aggregate.CodeConnection
	}
	return aggregate.CodeUnknown
}

func sqliteCode(code int, msg string) aggregate.Code {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return aggregate.CodeDuplicate
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return aggregate.CodeTimeout
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB:
		return aggregate.CodeConnection
	}
	if code&0xff == sqlite3.SQLITE_CONSTRAINT {
		if fallback(msg) == aggregate.CodeDuplicate {
			return aggregate.CodeDuplicate
		}
		return aggregate.CodeConstraint
	}
	return fallback(msg)
}

// fallback classifies errors of drivers without typed errors by message.
func fallback(msg string) aggregate.Code {
	switch {
	case containsAny(msg,
		"Error 1062",                 // MySQL
		"violates unique constraint", // Postgres
		"UNIQUE constraint failed",   // SQLite
	):
		return aggregate.CodeDuplicate
	case containsAny(msg,
		"Error 1451", "Error 1452", "Error 3819",
		"violates foreign key constraint",
		"violates check constraint",
		"violates not-null constraint",
		"FOREIGN KEY constraint failed",
		"CHECK constraint failed",
		"NOT NULL constraint failed",
	):
		return aggregate.CodeConstraint
	case containsAny(msg, "connection refused", "broken pipe", "bad connection"):
		return aggregate.CodeConnection
	}
	return aggregate.CodeUnknown
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
