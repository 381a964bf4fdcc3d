// Package schema holds the relational schema model and synchronizes live
// databases with it.
//
// A Model is a set of tables with columns, primary keys, indexes, unique,
// check and exclusion constraints and foreign keys. Diff compares a target
// model with the live one and returns the changes; Sequence orders them so
// that every statement finds its dependencies in place:
//
//	changes, err := schema.Diff(target, live, schema.WithDialect(dialect.Postgres))
//	if err != nil {
//		return err
//	}
//	plan, err := schema.Sequence(dialect.Postgres, changes)
//	if err != nil {
//		return err
//	}
//	fmt.Println(plan.Describe())
//
// Migrate wraps the three steps (inspect, diff, sequence) and executes the
// plan, one transaction per schema scope:
//
//	m, err := schema.NewMigrate(drv, schema.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	plan, err := m.Synchronize(ctx, target)
//
// Live schemas are read with Atlas. Plans can be reversed to obtain the
// down migration.
package schema
