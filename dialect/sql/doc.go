// Package sql provides the database/sql backed driver and the transactional
// plan executor.
//
// Driver adapts a *sql.DB to dialect.Driver:
//
//	drv, err := sql.Open("pgx", dsn)   // dialect: postgres
//	drv := sql.OpenDB(dialect.SQLite, db)
//
// # Executing plans
//
// Execute runs a list of steps in one transaction and rolls back on the
// first failure:
//
//	err := sql.Execute(ctx, drv, sql.Statements(
//	    `CREATE TABLE "parents" ("id" bigint NOT NULL, PRIMARY KEY ("id"))`,
//	    `CREATE TABLE "children" (...)`,
//	), sql.WithDDL())
//
//	var serr *relmap.StatementExecutionError
//	if errors.As(err, &serr) {
//	    fmt.Println(serr.Position, serr.Statement, serr.Constraint)
//	}
//
// ExecuteTx runs the steps on a transaction owned by the caller and leaves
// commit and rollback to it.
//
// # Constraint errors
//
// ClassifyConstraint maps driver errors of lib/pq, pgx, go-sql-driver/mysql
// and SQLite to unique, foreign-key and check violations.
package sql
