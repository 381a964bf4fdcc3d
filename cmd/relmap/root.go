package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "modernc.org/sqlite"

	"github.com/syssam/relmap/dialect/sql"
	"github.com/syssam/relmap/dialect/sql/schema"
	"github.com/syssam/relmap/loader"
)

// env is the state shared by the commands of one invocation.
type env struct {
	v      *viper.Viper
	file   string
	cfg    *Config
	logger *slog.Logger
	drv    *sql.StatsDriver
}

func newRootCmd() *cobra.Command {
	e := &env{v: newViper()}
	cmd := &cobra.Command{
		Use:   "relmap",
		Short: "Synchronize database schemas with entity metadata",
		Long: `relmap diffs the tables described by a metadata file against a live
database and prints or applies the DDL in an order that keeps
referential integrity.

Examples:

  relmap plan --metadata schema.yaml --dsn postgres://localhost/app
  relmap plan --down
  relmap sync --dialect sqlite --dsn file:app.db
  relmap watch
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(e.v, e.file)
			if err != nil {
				return err
			}
			if e.logger, err = cfg.logger(cmd.ErrOrStderr()); err != nil {
				return err
			}
			e.cfg = cfg
			return nil
		},
	}
	f := cmd.PersistentFlags()
	f.StringVar(&e.file, "config", "", "config file (default ./relmap.yaml)")
	f.String("metadata", "", "entity metadata file (default schema.yaml)")
	f.String("dialect", "", "database dialect: postgres, mysql or sqlite")
	f.String("dsn", "", "data source name of the database")
	f.StringSlice("schema", nil, "additional schema scopes to inspect")
	for key, name := range map[string]string{"metadata": "metadata", "dialect": "dialect", "dsn": "dsn", "schemas": "schema"} {
		if err := e.v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(err)
		}
	}
	cmd.AddCommand(newPlanCmd(e), newSyncCmd(e), newWatchCmd(e))
	return cmd
}

// open loads the metadata and connects to the database.
func (e *env) open() (*loader.Result, *schema.Migrate, io.Closer, error) {
	res, err := loader.Load(e.cfg.Metadata)
	if err != nil {
		return nil, nil, nil, err
	}
	name, err := e.cfg.driverName()
	if err != nil {
		return nil, nil, nil, err
	}
	if e.cfg.DSN == "" {
		return nil, nil, nil, errors.New("missing dsn: set --dsn or RELMAP_DSN")
	}
	conn, err := sql.Open(name, e.cfg.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	drv := sql.NewStatsDriver(conn, sql.WithStatsLogger(e.logger))
	opts := []schema.MigrateOption{schema.WithLogger(e.logger)}
	for _, s := range e.cfg.Schemas {
		opts = append(opts, schema.WithSchemaName(s))
	}
	m, err := schema.NewMigrate(drv, opts...)
	if err != nil {
		drv.Close()
		return nil, nil, nil, err
	}
	e.drv = drv
	return res, m, drv, nil
}

func (e *env) plan(ctx context.Context) (*schema.Plan, *schema.Migrate, io.Closer, error) {
	res, m, closer, err := e.open()
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := m.Plan(ctx, res.Model)
	if err != nil {
		closer.Close()
		return nil, nil, nil, err
	}
	return p, m, closer, nil
}

var (
	createColor = color.New(color.FgGreen)
	dropColor   = color.New(color.FgRed)
	alterColor  = color.New(color.FgYellow)
	scopeColor  = color.New(color.FgCyan, color.Bold)
)

// printPlan writes the statements of the plan grouped by scope.
func printPlan(w io.Writer, p *schema.Plan) {
	if p.Empty() {
		color.New(color.FgGreen, color.Bold).Fprintln(w, "Schema is in sync.")
		return
	}
	for _, s := range p.Scopes {
		scope := s.Scope
		if scope == "" {
			scope = "default"
		}
		scopeColor.Fprintf(w, "-- scope %s (%d statements)\n", scope, len(s.Statements))
		for _, stmt := range s.Statements {
			c := color.New(color.Reset)
			switch {
			case strings.HasPrefix(stmt, "CREATE"):
				c = createColor
			case strings.HasPrefix(stmt, "DROP"):
				c = dropColor
			case strings.HasPrefix(stmt, "ALTER"):
				c = alterColor
			}
			c.Fprintf(w, "%s;\n", stmt)
		}
	}
}

func newPlanCmd(e *env) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the statements synchronizing the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, closer, err := e.plan(cmd.Context())
			if err != nil {
				return err
			}
			defer closer.Close()
			if down {
				if p, err = p.Reverse(); err != nil {
					return err
				}
			}
			printPlan(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "print the statements undoing the plan")
	return cmd
}

// review prints the data loss warnings of the plan and fails on drops
// that were not allowed.
func review(w io.Writer, p *schema.Plan, allowDrop bool) error {
	var opts []schema.ValidateOption
	if allowDrop {
		opts = append(opts, schema.AllowDropTable(), schema.AllowDropColumn())
	}
	r := schema.ValidateDiff(p.Changes(), opts...)
	for _, warn := range r.Warnings {
		alterColor.Fprintf(w, "warning: %s\n", warn)
	}
	if r.HasErrors() {
		return fmt.Errorf("refusing to apply the plan (use --allow-drop): %w", r.Err())
	}
	return nil
}

func newSyncCmd(e *env) *cobra.Command {
	var dryRun, allowDrop bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Apply the statements synchronizing the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, m, closer, err := e.plan(cmd.Context())
			if err != nil {
				return err
			}
			defer closer.Close()
			printPlan(cmd.OutOrStdout(), p)
			if dryRun || p.Empty() {
				return nil
			}
			if err := review(cmd.OutOrStdout(), p, allowDrop); err != nil {
				return err
			}
			if err := m.Execute(cmd.Context(), p); err != nil {
				return err
			}
			e.logger.Info("schema synchronized", "stats", e.drv.QueryStats().Stats().String())
			color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "Applied %d statements.\n", len(p.Statements()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without applying it")
	cmd.Flags().BoolVar(&allowDrop, "allow-drop", false, "apply plans that drop tables or columns")
	return cmd
}
