package sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syssam/relmap"
	"github.com/syssam/relmap/dialect"
)

// Step is one unit of an execution plan, usually a single statement.
type Step interface {
	// Exec runs the step on the given connection.
	Exec(context.Context, dialect.ExecQuerier) error
	// String returns the statement text used in logs and errors.
	String() string
}

// Statement is a Step that executes a fixed query.
type Statement struct {
	Query string
	Args  []any
}

// Exec implements the Step interface.
func (s Statement) Exec(ctx context.Context, conn dialect.ExecQuerier) error {
	args := s.Args
	if args == nil {
		args = []any{}
	}
	return conn.Exec(ctx, s.Query, args, nil)
}

// String implements the Step interface.
func (s Statement) String() string { return s.Query }

// Statements converts raw statements into steps.
func Statements(queries ...string) []Step {
	steps := make([]Step, len(queries))
	for i, q := range queries {
		steps[i] = Statement{Query: q}
	}
	return steps
}

// ExecOption configures Execute and ExecuteTx.
type ExecOption func(*execConfig)

type execConfig struct {
	logger *slog.Logger
	ddl    bool
	txOpts *TxOptions
}

// WithLogger sets the logger used for statement and summary logging.
func WithLogger(l *slog.Logger) ExecOption {
	return func(c *execConfig) {
		c.logger = l
	}
}

// WithDDL marks the steps as schema statements. Dialects that cannot roll
// back DDL log a warning before the first statement runs.
func WithDDL() ExecOption {
	return func(c *execConfig) {
		c.ddl = true
	}
}

// WithTxOptions sets the options of the transaction started by Execute.
func WithTxOptions(opts *TxOptions) ExecOption {
	return func(c *execConfig) {
		c.txOpts = opts
	}
}

func newExecConfig(opts []ExecOption) *execConfig {
	c := &execConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs the steps in a new transaction on drv. The first failing step
// aborts the run, rolls back the transaction and returns a
// *relmap.StatementExecutionError. A canceled context stops issuing
// statements and rolls back the same way.
func Execute(ctx context.Context, drv dialect.Driver, steps []Step, opts ...ExecOption) error {
	cfg := newExecConfig(opts)
	if len(steps) == 0 {
		return nil
	}
	if cfg.ddl {
		if caps, err := dialect.CapabilitiesOf(drv.Dialect()); err == nil && !caps.TransactionalDDL {
			cfg.logger.WarnContext(ctx, "dialect does not support transactional DDL; a failure leaves earlier statements applied",
				"dialect", caps.Name, "statements", len(steps))
		}
	}
	var (
		tx  dialect.Tx
		err error
		// The transaction is not bound to ctx: cancellation is observed
		// between statements and rolled back here, not by database/sql.
		txCtx = context.WithoutCancel(ctx)
	)
	if d, ok := drv.(*Driver); ok && cfg.txOpts != nil {
		tx, err = d.BeginTx(txCtx, cfg.txOpts)
	} else {
		tx, err = drv.Tx(txCtx)
	}
	if err != nil {
		return fmt.Errorf("dialect/sql: begin transaction: %w", err)
	}
	start := time.Now()
	if err := run(ctx, tx, steps, cfg); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, &relmap.RollbackError{Err: rerr})
		}
		cfg.logger.InfoContext(ctx, "plan rolled back", "statements", len(steps), "error", err)
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dialect/sql: commit: %w", err)
	}
	cfg.logger.InfoContext(ctx, "plan executed", "statements", len(steps), "duration", time.Since(start))
	return nil
}

// ExecuteTx runs the steps on a caller-supplied transaction. The transaction
// is neither committed nor rolled back; on failure the caller decides.
func ExecuteTx(ctx context.Context, tx dialect.Tx, steps []Step, opts ...ExecOption) error {
	return run(ctx, tx, steps, newExecConfig(opts))
}

func run(ctx context.Context, conn dialect.ExecQuerier, steps []Step, cfg *execConfig) error {
	planned := make([]string, len(steps))
	for i, s := range steps {
		planned[i] = s.String()
	}
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return &relmap.StatementExecutionError{Position: i, Statement: planned[i], Planned: planned, Err: err}
		}
		cfg.logger.DebugContext(ctx, "exec", "position", i, "statement", planned[i])
		if err := s.Exec(ctx, conn); err != nil {
			return &relmap.StatementExecutionError{
				Position:   i,
				Statement:  planned[i],
				Planned:    planned,
				Constraint: ClassifyConstraint(err),
				Err:        err,
			}
		}
	}
	return nil
}
