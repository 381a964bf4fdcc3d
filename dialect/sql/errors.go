package sql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/syssam/relmap"
)

// sqlStateError is implemented by pgx (*pgconn.PgError) and other drivers
// exposing SQLSTATE codes.
type sqlStateError interface {
	SQLState() string
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// ClassifyConstraint reports which kind of constraint, if any, the driver
// error violated.
func ClassifyConstraint(err error) relmap.ConstraintKind {
	if err == nil {
		return relmap.ConstraintNone
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if k := fromSQLState(string(pqErr.Code)); k != relmap.ConstraintNone {
			return k
		}
	}
	var stateErr sqlStateError
	if errors.As(err, &stateErr) {
		if k := fromSQLState(stateErr.SQLState()); k != relmap.ConstraintNone {
			return k
		}
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return relmap.ConstraintUnique
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return relmap.ConstraintForeignKey
		case mysqlCheckConstraintViolate:
			return relmap.ConstraintCheck
		}
	}
	// SQLite drivers only expose the message.
	msg := err.Error()
	switch {
	case containsAny(msg, "UNIQUE constraint failed", "violates unique constraint", "Error 1062"):
		return relmap.ConstraintUnique
	case containsAny(msg, "FOREIGN KEY constraint failed", "violates foreign key constraint", "Error 1451", "Error 1452"):
		return relmap.ConstraintForeignKey
	case containsAny(msg, "CHECK constraint failed", "violates check constraint", "Error 3819"):
		return relmap.ConstraintCheck
	}
	return relmap.ConstraintNone
}

func fromSQLState(code string) relmap.ConstraintKind {
	switch code {
	case pgUniqueViolation:
		return relmap.ConstraintUnique
	case pgForeignKeyViolation:
		return relmap.ConstraintForeignKey
	case pgCheckViolation:
		return relmap.ConstraintCheck
	}
	return relmap.ConstraintNone
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
func IsUniqueConstraintError(err error) bool {
	return ClassifyConstraint(err) == relmap.ConstraintUnique
}

// IsForeignKeyConstraintError reports if the error resulted from a foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	return ClassifyConstraint(err) == relmap.ConstraintForeignKey
}

// IsCheckConstraintError reports if the error resulted from a check constraint violation.
func IsCheckConstraintError(err error) bool {
	return ClassifyConstraint(err) == relmap.ConstraintCheck
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
