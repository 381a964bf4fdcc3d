package dialect

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Dialect names supported by relmap.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the two database operations every plan step needs.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	// It scans the result into the pointer v. For SQL drivers, it is dialect/sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the pointer v. For SQL drivers, it is *dialect/sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for executing plans.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// UpsertFamily identifies the upsert syntax a dialect speaks.
type UpsertFamily uint8

// Upsert syntax families.
const (
	UpsertNone UpsertFamily = iota
	UpsertOnConflict
	UpsertOnDuplicateKey
)

// Capabilities describes what a dialect can express. It is consulted by the
// schema differ and both sequencers to fail fast or to pick an alternate
// statement form.
type Capabilities struct {
	// Name is the dialect name (one of MySQL, SQLite, Postgres).
	Name string
	// DeferrableFK reports support for DEFERRABLE foreign keys and SET CONSTRAINTS.
	DeferrableFK bool
	// PartialIndexes reports support for CREATE INDEX ... WHERE.
	PartialIndexes bool
	// ExclusionConstraints reports support for EXCLUDE constraints.
	ExclusionConstraints bool
	// VectorType reports support for vector column types.
	VectorType bool
	// IndexMethods reports support for USING <method> on indexes.
	IndexMethods bool
	// TransactionalDDL reports whether DDL statements can be rolled back.
	TransactionalDDL bool
	// AlterForeignKeys reports whether foreign keys can be added to or
	// dropped from an existing table with ALTER TABLE.
	AlterForeignKeys bool
	// AlterColumns reports whether column definitions, primary keys and
	// table constraints of an existing table can be altered in place.
	AlterColumns bool
	// Comments reports support for table and column comments.
	Comments bool
	// Returning reports support for INSERT ... RETURNING.
	Returning bool
	// IncrementOutsidePK reports whether auto-increment columns may live
	// outside the primary key.
	IncrementOutsidePK bool
	// MaxIdentifier is the maximum identifier length. Zero means unlimited.
	MaxIdentifier int
	// Upsert is the upsert syntax family.
	Upsert UpsertFamily
}

var capabilities = map[string]Capabilities{
	Postgres: {
		Name:                 Postgres,
		DeferrableFK:         true,
		PartialIndexes:       true,
		ExclusionConstraints: true,
		VectorType:           true,
		IndexMethods:         true,
		TransactionalDDL:     true,
		AlterForeignKeys:     true,
		AlterColumns:         true,
		Comments:             true,
		Returning:            true,
		IncrementOutsidePK:   true,
		MaxIdentifier:        63,
		Upsert:               UpsertOnConflict,
	},
	MySQL: {
		Name:             MySQL,
		IndexMethods:     true,
		AlterForeignKeys: true,
		AlterColumns:     true,
		Comments:         true,
		MaxIdentifier:    64,
		Upsert:           UpsertOnDuplicateKey,
	},
	SQLite: {
		Name:             SQLite,
		DeferrableFK:     true,
		PartialIndexes:   true,
		TransactionalDDL: true,
		Upsert:           UpsertOnConflict,
	},
}

// CapabilitiesOf returns the capability descriptor of the given dialect.
// Driver names with a dialect prefix (e.g. "sqlite3", "postgres+otel")
// resolve to the base dialect.
func CapabilitiesOf(name string) (Capabilities, error) {
	switch {
	case strings.HasPrefix(name, Postgres), name == "pgx":
		return capabilities[Postgres], nil
	case strings.HasPrefix(name, MySQL):
		return capabilities[MySQL], nil
	case strings.HasPrefix(name, "sqlite"):
		return capabilities[SQLite], nil
	}
	return Capabilities{}, fmt.Errorf("dialect: unsupported dialect %q", name)
}

// MustCapabilities is like CapabilitiesOf but panics on unknown dialects.
func MustCapabilities(name string) Capabilities {
	c, err := CapabilitiesOf(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Quote quotes an identifier according to the dialect rules.
func (c Capabilities) Quote(ident string) string {
	if c.Name == Postgres {
		return pq.QuoteIdentifier(ident)
	}
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// QuoteTable quotes a possibly schema-qualified table name.
func (c Capabilities) QuoteTable(schema, name string) string {
	if schema == "" {
		return c.Quote(name)
	}
	return c.Quote(schema) + "." + c.Quote(name)
}
