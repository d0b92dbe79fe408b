package sql

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/aggregate"
	"github.com/syssam/aggregate/dialect"
)

func mockDriver(t *testing.T, name string) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	drv, err := OpenDB(name, db)
	require.NoError(t, err)
	return drv, mock
}

func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
	}{
		{"postgres", dialect.Postgres},
		{"pgx", dialect.Postgres},
		{"mysql", dialect.MySQL},
		{"sqlite", dialect.SQLite},
		{"sqlite3", dialect.SQLite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv, _ := mockDriver(t, tt.name)
			assert.Equal(t, tt.dialect, drv.Dialect())
			assert.Equal(t, tt.dialect, drv.Adapter().Name())
			assert.NotNil(t, drv.DB())
		})
	}
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	_, err = OpenDB("oracle", db)
	require.Error(t, err)
}

func TestDriverExec(t *testing.T) {
	drv, mock := mockDriver(t, dialect.Postgres)
	id := uuid.New()
	mock.ExpectExec(`DELETE FROM "orders" WHERE "id" = $1`).
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := drv.Exec(context.Background(), `DELETE FROM "orders" WHERE "id" = ?`, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectExec(`DELETE FROM "orders"`).WillReturnError(errors.New(`pq: update or delete on table "orders" violates foreign key constraint`))
	_, err = drv.Exec(context.Background(), `DELETE FROM "orders"`)
	require.Error(t, err)
	assert.True(t, aggregate.IsConstraint(err))
	assert.Equal(t, aggregate.CodeConstraint, aggregate.CodeOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverQuery(t *testing.T) {
	drv, mock := mockDriver(t, dialect.SQLite)
	mock.ExpectQuery(`SELECT "id", "number" FROM "orders" WHERE "number" = ?`).
		WithArgs("A-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "number"}).
			AddRow("a", "A-1").
			AddRow("b", nil))
	rows, err := drv.Query(context.Background(), `SELECT "id", "number" FROM "orders" WHERE "number" = ?`, "A-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "number"}, rows.Columns)
	require.Equal(t, 2, rows.Len())
	assert.Equal(t, "a", rows.Values[0][0])
	assert.Nil(t, rows.Values[1][1])
	assert.Equal(t, 1, rows.Index("number"))
	assert.Equal(t, -1, rows.Index("total"))

	mock.ExpectQuery("SELECT 1").WillReturnError(context.DeadlineExceeded)
	_, err = drv.Query(context.Background(), "SELECT 1")
	require.ErrorIs(t, err, aggregate.ErrTimeout)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTransaction(t *testing.T) {
	t.Run("Nested", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.SQLite)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT 1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT 2").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		ctx := context.Background()
		err := drv.Transaction(ctx, func(ctx context.Context) error {
			assert.Equal(t, 1, drv.TxDepth(ctx))
			if _, err := drv.Exec(ctx, "INSERT 1"); err != nil {
				return err
			}
			return drv.Transaction(ctx, func(ctx context.Context) error {
				assert.Equal(t, 2, drv.TxDepth(ctx))
				_, err := drv.Exec(ctx, "INSERT 2")
				return err
			})
		})
		require.NoError(t, err)
		assert.Zero(t, drv.TxDepth(ctx))
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("Rollback", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.MySQL)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT 1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT 2").WillReturnError(errors.New("Error 1062: Duplicate entry 'x' for key 'PRIMARY'"))
		mock.ExpectRollback()
		err := drv.Transaction(context.Background(), func(ctx context.Context) error {
			if _, err := drv.Exec(ctx, "INSERT 1"); err != nil {
				return err
			}
			return drv.Transaction(ctx, func(ctx context.Context) error {
				_, err := drv.Exec(ctx, "INSERT 2")
				return err
			})
		})
		require.Error(t, err)
		assert.True(t, aggregate.IsDuplicate(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("SwallowedNestedError", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.SQLite)
		mock.ExpectBegin()
		mock.ExpectRollback()
		err := drv.Transaction(context.Background(), func(ctx context.Context) error {
			_ = drv.Transaction(ctx, func(context.Context) error {
				return errors.New("boom")
			})
			return nil
		})
		require.ErrorIs(t, err, ErrNestedRollback)
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("BeginFailure", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.Postgres)
		mock.ExpectBegin().WillReturnError(errors.New("dial tcp 127.0.0.1:5432: connection refused"))
		err := drv.Transaction(context.Background(), func(context.Context) error {
			t.Fatal("callback must not run")
			return nil
		})
		require.Error(t, err)
		assert.Equal(t, aggregate.CodeConnection, aggregate.CodeOf(err))
	})
	t.Run("Panic", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.SQLite)
		mock.ExpectBegin()
		mock.ExpectRollback()
		assert.Panics(t, func() {
			_ = drv.Transaction(context.Background(), func(context.Context) error {
				panic("boom")
			})
		})
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("OtherDriver", func(t *testing.T) {
		drv, mock := mockDriver(t, dialect.SQLite)
		other, otherMock := mockDriver(t, dialect.SQLite)
		mock.ExpectBegin()
		mock.ExpectCommit()
		otherMock.ExpectExec("INSERT 1").WillReturnResult(sqlmock.NewResult(0, 1))
		err := drv.Transaction(context.Background(), func(ctx context.Context) error {
			assert.Zero(t, other.TxDepth(ctx))
			_, err := other.Exec(ctx, "INSERT 1")
			return err
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
		require.NoError(t, otherMock.ExpectationsWereMet())
	})
}
