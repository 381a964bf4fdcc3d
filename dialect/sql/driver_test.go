package sql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/relmap/dialect"
)

func TestOpenDB(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)
	require.NotNil(t, drv)
	assert.Equal(t, dialect.Postgres, drv.Dialect())
	assert.Equal(t, db, drv.DB())

	mock.ExpectClose()
	require.NoError(t, drv.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen(t *testing.T) {
	_, err := Open("oracle", "dsn")
	require.EqualError(t, err, `dialect: unsupported dialect "oracle"`)

	drv, err := Open("sqlite", "file:driver-open?mode=memory")
	require.NoError(t, err)
	defer drv.Close()
	assert.Equal(t, dialect.SQLite, drv.Dialect())
}

func TestDialectMethod(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"postgres", dialect.Postgres},
		{"postgres+otel", dialect.Postgres},
		{"pgx", dialect.Postgres},
		{"mysql", dialect.MySQL},
		{"sqlite3", dialect.SQLite},
		{"custom", "custom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := NewDriver(tt.name, Conn{})
			assert.Equal(t, tt.want, drv.Dialect())
		})
	}
}

func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	t.Run("Rows", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name FROM users").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a8m").AddRow(2, nil))
		rows := &Rows{}
		require.NoError(t, drv.Query(context.Background(), "SELECT id, name FROM users", []any{}, rows))
		values, err := ScanValues(rows)
		require.NoError(t, err)
		require.Len(t, values, 2)
		assert.EqualValues(t, 1, values[0]["id"])
		assert.Nil(t, values[1]["name"])
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InvalidDest", func(t *testing.T) {
		err := drv.Query(context.Background(), "SELECT 1", []any{}, new(int))
		require.EqualError(t, err, "dialect/sql: invalid type *int. expect *sql.Rows")
	})

	t.Run("InvalidArgs", func(t *testing.T) {
		err := drv.Query(context.Background(), "SELECT 1", 1, &Rows{})
		require.EqualError(t, err, "dialect/sql: invalid type int. expect []any for args")
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("boom"))
		err := drv.Query(context.Background(), "SELECT 1", []any{}, &Rows{})
		require.EqualError(t, err, "dialect/sql: query: boom")
	})
}

func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.MySQL, db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(10, 1))
	var res sql.Result
	require.NoError(t, drv.Exec(context.Background(), "INSERT INTO users DEFAULT VALUES", []any{}, &res))
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.EqualValues(t, 10, id)

	mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 3))
	require.NoError(t, drv.Exec(context.Background(), "DELETE FROM users", []any{}, nil))

	mock.ExpectExec("UPDATE users").WillReturnError(errors.New("locked"))
	err = drv.Exec(context.Background(), "UPDATE users SET a = 1", []any{}, nil)
	require.EqualError(t, err, "dialect/sql: exec: locked")

	err = drv.Exec(context.Background(), "UPDATE users SET a = 1", nil, nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), "INSERT INTO users DEFAULT VALUES", []any{}, nil))
	require.NoError(t, tx.Commit())

	mock.ExpectBegin()
	mock.ExpectRollback()
	tx, err = drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}
