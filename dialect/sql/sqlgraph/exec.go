package sqlgraph

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/syssam/relmap/dialect"
	"github.com/syssam/relmap/dialect/sql"
)

const deferConstraints = "SET CONSTRAINTS ALL DEFERRED"

// PlanSave plans the save of the roots and of the entities reachable from
// them through edges that cascade inserts or updates.
func PlanSave(ctx context.Context, cfg Config, roots ...*Entity) (*Plan, error) {
	return plan(ctx, cfg, IntentSave, roots)
}

// PlanRemove plans the deletion of the roots and of the entities reachable
// from them through edges that cascade removals.
func PlanRemove(ctx context.Context, cfg Config, roots ...*Entity) (*Plan, error) {
	return plan(ctx, cfg, IntentRemove, roots)
}

// PlanSoftRemove plans the soft deletion of the roots.
func PlanSoftRemove(ctx context.Context, cfg Config, roots ...*Entity) (*Plan, error) {
	return plan(ctx, cfg, IntentSoftRemove, roots)
}

// PlanRecover plans the recovery of soft deleted roots.
func PlanRecover(ctx context.Context, cfg Config, roots ...*Entity) (*Plan, error) {
	return plan(ctx, cfg, IntentRecover, roots)
}

func plan(ctx context.Context, cfg Config, intent Intent, roots []*Entity) (*Plan, error) {
	b, err := newBuilder(cfg)
	if err != nil {
		return nil, err
	}
	if err := b.build(ctx, intent, roots); err != nil {
		return nil, err
	}
	p, err := Sequence(cfg, b.result())
	if err != nil {
		return nil, err
	}
	p.entities = b.visited
	return p, nil
}

// Save plans and executes the save of the roots in one transaction on drv.
func Save(ctx context.Context, drv dialect.Driver, g *Schema, roots ...*Entity) error {
	return execute(ctx, drv, g, IntentSave, roots)
}

// Remove plans and executes the deletion of the roots in one transaction
// on drv.
func Remove(ctx context.Context, drv dialect.Driver, g *Schema, roots ...*Entity) error {
	return execute(ctx, drv, g, IntentRemove, roots)
}

// SoftRemove plans and executes the soft deletion of the roots.
func SoftRemove(ctx context.Context, drv dialect.Driver, g *Schema, roots ...*Entity) error {
	return execute(ctx, drv, g, IntentSoftRemove, roots)
}

// Recover plans and executes the recovery of soft deleted roots.
func Recover(ctx context.Context, drv dialect.Driver, g *Schema, roots ...*Entity) error {
	return execute(ctx, drv, g, IntentRecover, roots)
}

func execute(ctx context.Context, drv dialect.Driver, g *Schema, intent Intent, roots []*Entity) error {
	cfg := Config{
		Schema:  g,
		Dialect: drv.Dialect(),
		Fetcher: &QueryFetcher{Conn: drv, Dialect: drv.Dialect()},
	}
	p, err := plan(ctx, cfg, intent, roots)
	if err != nil {
		return err
	}
	return p.Exec(ctx, drv)
}

// Exec executes the plan in a new transaction on drv. On success, database
// generated keys are set on the new entities and every entity of the plan
// is marked as persisted. On failure the keys assigned during execution
// are cleared.
func (p *Plan) Exec(ctx context.Context, drv dialect.Driver, opts ...sql.ExecOption) error {
	if p.Empty() {
		p.commit()
		return nil
	}
	if err := p.checkDialect(drv.Dialect()); err != nil {
		return err
	}
	generated := p.generated()
	opts = append([]sql.ExecOption{sql.WithLogger(p.logger)}, opts...)
	if err := sql.Execute(ctx, drv, p.steps(), opts...); err != nil {
		for _, e := range generated {
			e.ID = nil
		}
		return err
	}
	p.commit()
	return nil
}

// ExecTx executes the plan on a caller supplied transaction, which is
// neither committed nor rolled back. Entities are marked as persisted once
// every statement succeeded.
func (p *Plan) ExecTx(ctx context.Context, tx dialect.Tx, opts ...sql.ExecOption) error {
	if d, ok := tx.(interface{ Dialect() string }); ok {
		if err := p.checkDialect(d.Dialect()); err != nil {
			return err
		}
	}
	generated := p.generated()
	opts = append([]sql.ExecOption{sql.WithLogger(p.logger)}, opts...)
	if err := sql.ExecuteTx(ctx, tx, p.steps(), opts...); err != nil {
		for _, e := range generated {
			e.ID = nil
		}
		return err
	}
	p.commit()
	return nil
}

// checkDialect fails when the plan was built for another dialect than
// the one of the connection.
func (p *Plan) checkDialect(name string) error {
	if caps, err := dialect.CapabilitiesOf(name); err != nil || caps.Name != p.Dialect {
		return fmt.Errorf("sqlgraph: %s plan executed on %s driver", p.Dialect, name)
	}
	return nil
}

func (p *Plan) steps() []sql.Step {
	steps := make([]sql.Step, 0, len(p.Steps)+1)
	if p.Defer {
		steps = append(steps, sql.Statement{Query: deferConstraints})
	}
	for _, s := range p.Steps {
		steps = append(steps, s)
	}
	return steps
}

// generated returns the new entities whose key is assigned by the database.
func (p *Plan) generated() []*Entity {
	var out []*Entity
	for _, s := range p.Steps {
		if s.Kind == StepApply && s.Subject.Op == OpInsert && s.Subject.Entity != nil && s.Subject.Entity.ID == nil {
			out = append(out, s.Subject.Entity)
		}
	}
	return out
}

func (p *Plan) commit() {
	for _, s := range p.Steps {
		e := s.Subject.Entity
		if s.Kind != StepApply || e == nil {
			continue
		}
		switch s.Subject.Op {
		case OpDelete:
			e.removed = true
		case OpSoftDelete:
			e.values[s.Subject.Node.SoftDelete] = s.softAt
		case OpRecover:
			e.values[s.Subject.Node.SoftDelete] = nil
		default:
			e.commit()
		}
	}
	// Entities without a statement of their own still take the new state
	// of their edges.
	for _, e := range p.entities {
		if !e.removed {
			e.commit()
		}
	}
}

// String returns the statement text of the step.
func (s *Step) String() string {
	b, err := s.builder()
	if err != nil {
		return fmt.Sprintf("/* %s: %v */", s.Subject, err)
	}
	query, _, err := b.ToSql()
	if err != nil {
		return fmt.Sprintf("/* %s: %v */", s.Subject, err)
	}
	return query
}

// Exec executes the step on conn. Keys generated by inserts are set on the
// entity of the subject.
func (s *Step) Exec(ctx context.Context, conn dialect.ExecQuerier) error {
	subj := s.Subject
	if s.Kind == StepApply && subj.Op == OpSoftDelete {
		s.softAt = s.plan.now()
	}
	b, err := s.builder()
	if err != nil {
		return err
	}
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	switch {
	case s.Kind != StepApply || subj.Op != OpInsert || subj.Entity == nil || subj.Entity.ID != nil:
		return conn.Exec(ctx, query, args, nil)
	case s.plan.caps.Returning:
		var rows sql.Rows
		if err := conn.Query(ctx, query, args, &rows); err != nil {
			return err
		}
		values, err := sql.ScanValues(rows)
		if err != nil {
			return err
		}
		if len(values) != 1 {
			return fmt.Errorf("sqlgraph: insert %s returned %d rows", subj.Table, len(values))
		}
		subj.Entity.ID = values[0][subj.Node.ID.Column]
	default:
		var res sql.Result
		if err := conn.Exec(ctx, query, args, &res); err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		subj.Entity.ID = id
	}
	return nil
}

func (s *Step) builder() (sq.Sqlizer, error) {
	var (
		p    = s.plan
		subj = s.Subject
	)
	ph := placeholder(p.caps)
	table := p.table(subj.Table)
	switch s.Kind {
	case StepBackfill, StepDetach:
		set := make(map[string]any, len(s.Refs))
		for _, r := range s.Refs {
			set[r.Column] = nil
			if s.Kind == StepBackfill {
				set[r.Column] = r.To.Entity.ID
			}
		}
		return p.update(table, set, subj).PlaceholderFormat(ph), nil
	}
	switch subj.Op {
	case OpInsert:
		values := subj.values()
		if len(values) == 0 {
			return p.insertDefaults(table, subj), nil
		}
		cols := slices.Sorted(maps.Keys(values))
		b := sq.Insert(table).PlaceholderFormat(ph)
		args := make([]any, len(cols))
		for i, c := range cols {
			b = b.Columns(p.caps.Quote(c))
			args[i] = values[c]
		}
		b = b.Values(args...)
		if p.returning(subj) {
			b = b.Suffix("RETURNING " + p.caps.Quote(subj.Node.ID.Column))
		}
		return b, nil
	case OpUpdate:
		return p.update(table, subj.values(), subj).PlaceholderFormat(ph), nil
	case OpSoftDelete, OpRecover:
		col, err := subj.Node.column(subj.Node.SoftDelete)
		if err != nil {
			return nil, err
		}
		var v any
		if subj.Op == OpSoftDelete {
			v = s.softAt
		}
		return p.update(table, map[string]any{col: v}, subj).PlaceholderFormat(ph), nil
	case OpDelete:
		b := sq.Delete(table).PlaceholderFormat(ph)
		for _, w := range p.where(subj) {
			b = b.Where(w)
		}
		return b, nil
	}
	return nil, fmt.Errorf("sqlgraph: unexpected operation %s", subj.Op)
}

func (p *Plan) update(table string, set map[string]any, subj *Subject) sq.UpdateBuilder {
	b := sq.Update(table)
	for _, c := range slices.Sorted(maps.Keys(set)) {
		b = b.Set(p.caps.Quote(c), set[c])
	}
	for _, w := range p.where(subj) {
		b = b.Where(w)
	}
	return b
}

// where returns one equality per key column of the subject row. Keys are
// always bound as parameters: a key generated by an earlier insert is still
// unknown when the plan is rendered.
func (p *Plan) where(subj *Subject) []sq.Sqlizer {
	if subj.Entity != nil {
		col, id := subj.key()
		return []sq.Sqlizer{p.keyEq(col, id)}
	}
	var out []sq.Sqlizer
	for _, c := range slices.Sorted(maps.Keys(subj.Where)) {
		out = append(out, p.keyEq(c, subj.Where[c]))
	}
	return out
}

func (p *Plan) keyEq(col string, v any) sq.Sqlizer {
	return sq.Expr(p.caps.Quote(col)+" = ?", v)
}

func (p *Plan) returning(subj *Subject) bool {
	return p.caps.Returning && subj.Entity != nil && subj.Entity.ID == nil
}

// insertDefaults renders the insert of a row without explicit values.
func (p *Plan) insertDefaults(table string, subj *Subject) sq.Sqlizer {
	if p.caps.Name == dialect.MySQL {
		return sq.Expr("INSERT INTO " + table + " () VALUES ()")
	}
	query := "INSERT INTO " + table + " DEFAULT VALUES"
	if p.returning(subj) {
		query += " RETURNING " + p.caps.Quote(subj.Node.ID.Column)
	}
	return sq.Expr(query)
}

func placeholder(caps dialect.Capabilities) sq.PlaceholderFormat {
	if caps.Name == dialect.Postgres {
		return sq.Dollar
	}
	return sq.Question
}

func (p *Plan) table(qname string) string {
	if s, n, ok := strings.Cut(qname, "."); ok {
		return p.caps.QuoteTable(s, n)
	}
	return p.caps.Quote(qname)
}

// values returns the column values of the subject with references
// resolved to the current keys of their rows. Broken references are
// written as NULL.
func (s *Subject) values() map[string]any {
	values := maps.Clone(s.Values)
	if values == nil {
		values = make(map[string]any)
	}
	for _, r := range s.Refs {
		if r.broken {
			values[r.Column] = nil
		} else if r.To.Entity != nil {
			values[r.Column] = r.To.Entity.ID
		}
	}
	return values
}

// QueryFetcher is a Fetcher reading rows with the given connection.
type QueryFetcher struct {
	Conn    dialect.ExecQuerier
	Dialect string
}

// Fetch implements the Fetcher interface.
func (f *QueryFetcher) Fetch(ctx context.Context, table, keyColumn string, key any, column string) ([]any, error) {
	caps, err := dialect.CapabilitiesOf(f.Dialect)
	if err != nil {
		return nil, err
	}
	p := &Plan{caps: caps}
	ph := placeholder(caps)
	query, args, err := sq.Select(caps.Quote(column)).
		From(p.table(table)).
		Where(sq.Eq{caps.Quote(keyColumn): key}).
		PlaceholderFormat(ph).
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows sql.Rows
	if err := f.Conn.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	rs, err := sql.ScanValues(rows)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(rs))
	for i, r := range rs {
		out[i] = r[column]
	}
	return out, nil
}
