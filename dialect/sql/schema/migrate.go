package schema

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/relmap/dialect"
	"github.com/syssam/relmap/dialect/sql"
)

// MigrateOption allows configuring Migrate using functional arguments.
type MigrateOption func(*Migrate)

// WithSchemaName adds a schema scope that is inspected even when no target
// table lives in it, so that its owned tables can be dropped.
func WithSchemaName(name string) MigrateOption {
	return func(m *Migrate) {
		if !slices.Contains(m.scopes, name) {
			m.scopes = append(m.scopes, name)
		}
	}
}

// WithInspector sets the inspector used to read the live schema.
func WithInspector(i Inspector) MigrateOption {
	return func(m *Migrate) {
		m.inspector = i
	}
}

// WithLogger sets the logger of the migration. Defaults to slog.Default().
func WithLogger(l *slog.Logger) MigrateOption {
	return func(m *Migrate) {
		m.logger = l
	}
}

// WithDiffHook adds a list of DiffHook to the schema migration.
//
//	schema.WithDiffHook(func(next schema.Differ) schema.Differ {
//		return schema.DiffFunc(func(target, live *schema.Model) ([]schema.Change, error) {
//			// Code before standard diff.
//			changes, err := next.Diff(target, live)
//			if err != nil {
//				return nil, err
//			}
//			// After diff, you can filter
//			// changes or return new ones.
//			return changes, nil
//		})
//	})
func WithDiffHook(hooks ...DiffHook) MigrateOption {
	return func(m *Migrate) {
		m.hooks = append(m.hooks, hooks...)
	}
}

// WithDiffOptions passes options to the diff engine.
func WithDiffOptions(opts ...DiffOption) MigrateOption {
	return func(m *Migrate) {
		m.diffOpts = append(m.diffOpts, opts...)
	}
}

// Migrate synchronizes a live database with a target model.
type Migrate struct {
	drv       dialect.Driver
	caps      dialect.Capabilities
	inspector Inspector
	logger    *slog.Logger
	scopes    []string
	hooks     []DiffHook
	diffOpts  []DiffOption
}

// NewMigrate creates a migration for the driver. Without WithInspector, the
// live schema is read through Atlas from the database of a *sql.Driver.
func NewMigrate(drv dialect.Driver, opts ...MigrateOption) (*Migrate, error) {
	caps, err := dialect.CapabilitiesOf(drv.Dialect())
	if err != nil {
		return nil, err
	}
	m := &Migrate{drv: drv, caps: caps, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	if m.inspector == nil {
		db, ok := sqlDB(drv)
		if !ok {
			return nil, errors.New("schema: missing inspector for driver without *sql.DB")
		}
		if m.inspector, err = NewAtlasInspector(caps.Name, db); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func sqlDB(drv dialect.Driver) (*stdsql.DB, bool) {
	switch d := drv.(type) {
	case *sql.Driver:
		db, ok := d.ExecQuerier.(*stdsql.DB)
		return db, ok
	case *sql.StatsDriver:
		return sqlDB(d.Driver)
	}
	return nil, false
}

// Inspect reads the live model of every scope concurrently.
func (m *Migrate) Inspect(ctx context.Context, scopes ...string) (*Model, error) {
	models := make([]*Model, len(scopes))
	g, ctx := errgroup.WithContext(ctx)
	for i, scope := range scopes {
		g.Go(func() error {
			live, err := m.inspector.Inspect(ctx, scope)
			if err != nil {
				return err
			}
			models[i] = live
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	live := NewModel()
	for _, sm := range models {
		live.Tables = append(live.Tables, sm.Tables...)
	}
	return live, nil
}

// Plan computes the plan turning the live database into target. No
// statement is executed.
func (m *Migrate) Plan(ctx context.Context, target *Model) (*Plan, error) {
	scopes := target.Scopes()
	for _, s := range m.scopes {
		if !slices.Contains(scopes, s) {
			scopes = append(scopes, s)
		}
	}
	slices.Sort(scopes)
	live, err := m.Inspect(ctx, scopes...)
	if err != nil {
		return nil, err
	}
	opts := append([]DiffOption{WithDialect(m.caps.Name)}, m.diffOpts...)
	var differ Differ = DiffFunc(func(target, live *Model) ([]Change, error) {
		return Diff(target, live, opts...)
	})
	for i := len(m.hooks) - 1; i >= 0; i-- {
		differ = m.hooks[i](differ)
	}
	changes, err := differ.Diff(target, live)
	if err != nil {
		return nil, err
	}
	plan, err := Sequence(m.caps.Name, changes)
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "schema plan computed",
		"dialect", m.caps.Name, "scopes", len(plan.Scopes), "changes", len(changes), "statements", len(plan.Statements()))
	return plan, nil
}

// Synchronize plans and executes the migration. Each scope runs in its own
// transaction; scopes are executed in order and the first failure stops
// the migration. The plan is returned even when execution fails.
func (m *Migrate) Synchronize(ctx context.Context, target *Model) (*Plan, error) {
	plan, err := m.Plan(ctx, target)
	if err != nil {
		return nil, err
	}
	if err := m.Execute(ctx, plan); err != nil {
		return plan, err
	}
	return plan, nil
}

// Execute runs a computed plan.
func (m *Migrate) Execute(ctx context.Context, plan *Plan) error {
	for _, sp := range plan.Scopes {
		if len(sp.Statements) == 0 {
			continue
		}
		err := sql.Execute(ctx, m.drv, sql.Statements(sp.Statements...), sql.WithDDL(), sql.WithLogger(m.logger))
		if err != nil {
			return fmt.Errorf("schema: synchronize scope %q: %w", sp.Scope, err)
		}
	}
	return nil
}
