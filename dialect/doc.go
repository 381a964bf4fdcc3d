// Package dialect provides the database dialect abstraction used by relmap.
//
// This package defines the driver interfaces every plan executes against and
// the capability descriptors consulted while planning, allowing relmap to
// target PostgreSQL, MySQL and SQLite from the same schema model.
//
// # Supported Dialects
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// A Tx is accepted wherever a plan is executed; when the caller hands in its
// own transaction the executor neither commits nor rolls it back.
//
// # Capabilities
//
// Capabilities is a fixed set of flags per dialect:
//
//	caps := dialect.MustCapabilities(dialect.Postgres)
//	caps.DeferrableFK         // true
//	caps.ExclusionConstraints // true
//	caps.TransactionalDDL     // true
//
// The schema differ raises a CapabilityError when the target schema uses a
// construct the dialect cannot express, before any statement is sent.
//
// # Sub-packages
//
//   - dialect/sql: database/sql driver and the transactional plan executor
//   - dialect/sql/schema: schema model, diff engine and DDL sequencer
//   - dialect/sql/sqlgraph: entity graph, subject builder and cascade sequencer
package dialect
