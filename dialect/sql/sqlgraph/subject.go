package sqlgraph

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/relmap"
	"github.com/syssam/relmap/dialect"
	"github.com/syssam/relmap/dialect/sql/schema"
)

// Op is the row operation of a subject.
type Op uint8

// Row operations.
const (
	OpInsert Op = iota + 1
	OpUpdate
	OpDelete
	OpSoftDelete
	OpRecover
)

var opNames = map[Op]string{
	OpInsert:     "insert",
	OpUpdate:     "update",
	OpDelete:     "delete",
	OpSoftDelete: "soft-delete",
	OpRecover:    "recover",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Op(%d)", o)
}

// Intent is the operation requested on the roots of a plan.
type Intent uint8

// Plan intents.
const (
	IntentSave Intent = iota + 1
	IntentRemove
	IntentSoftRemove
	IntentRecover
)

// Subject is one pending row operation of a plan.
type Subject struct {
	// Entity is nil for join table rows.
	Entity *Entity
	// Node is nil for join table rows.
	Node  *Node
	Table string
	Op    Op
	// Values holds the column values written by inserts and updates.
	// Values of unresolved references are filled before execution.
	Values map[string]any
	// Where selects join table rows of deletes.
	Where map[string]any
	// Refs are the rows this subject references.
	Refs []*Ref

	seq int
}

func (s *Subject) String() string {
	if s.Entity == nil {
		return fmt.Sprintf("%s %s%v", s.Op, s.Table, valuesString(s.Values, s.Where))
	}
	return fmt.Sprintf("%s %s", s.Op, s.Entity)
}

func valuesString(values, where map[string]any) string {
	m := values
	if len(m) == 0 {
		m = where
	}
	keys := slices.Sorted(maps.Keys(m))
	out := "("
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%v", k, m[k])
	}
	return out + ")"
}

// key returns the primary key of the subject row.
func (s *Subject) key() (string, any) {
	return s.Node.ID.Column, s.Entity.ID
}

// Ref is a reference of a subject row to the row of another subject. The
// value of Column is the key of To, which may be generated by the database.
type Ref struct {
	Column string
	To     *Subject
	// Nullable reports whether the column accepts NULL, so that the row can
	// be written first and back-filled later.
	Nullable bool
	// Deferrable reports whether the constraint can be deferred to the end
	// of the transaction while the key of To is known before it is written.
	Deferrable bool

	// Set by the sequencer when the reference is part of a broken cycle.
	broken   bool
	deferred bool
}

// Breakable reports whether the reference may be written out of order.
func (r *Ref) Breakable() bool { return r.Nullable || r.Deferrable }

// Fetcher reads the stored value of a column, used to confirm orphan
// candidates before they are deleted or detached.
type Fetcher interface {
	// Fetch returns the values of column in the rows of table whose key
	// column equals key.
	Fetch(ctx context.Context, table, keyColumn string, key any, column string) ([]any, error)
}

// FetchFunc adapts an ordinary function to the Fetcher interface.
type FetchFunc func(ctx context.Context, table, keyColumn string, key any, column string) ([]any, error)

// Fetch calls f(ctx, table, keyColumn, key, column).
func (f FetchFunc) Fetch(ctx context.Context, table, keyColumn string, key any, column string) ([]any, error) {
	return f(ctx, table, keyColumn, key, column)
}

// Config configures planning.
type Config struct {
	Schema  *Schema
	Dialect string
	// Fetcher confirms orphan candidates. Without a fetcher the loaded
	// edges are trusted.
	Fetcher Fetcher
	Logger  *slog.Logger
	// Now returns the soft deletion time. Defaults to time.Now.
	Now func() time.Time
}

// BuildSubjects walks the entity graph from the roots and returns one
// subject per row to write, in discovery order.
func BuildSubjects(ctx context.Context, cfg Config, intent Intent, roots ...*Entity) ([]*Subject, error) {
	b, err := newBuilder(cfg)
	if err != nil {
		return nil, err
	}
	if err := b.build(ctx, intent, roots); err != nil {
		return nil, err
	}
	return b.result(), nil
}

type builder struct {
	cfg      Config
	caps     dialect.Capabilities
	arena    map[*Entity]int
	visited  []*Entity
	subjects map[*Entity]*Subject
	joins    map[string]*Subject
	order    []*Subject
	// attached holds the stored targets attached to a source through an
	// edge whose foreign key lives on the target row.
	attached map[string]bool
}

func newBuilder(cfg Config) (*builder, error) {
	if cfg.Schema == nil {
		return nil, fmt.Errorf("%w: missing schema", relmap.ErrInvalidGraph)
	}
	caps, err := dialect.CapabilitiesOf(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &builder{
		cfg:      cfg,
		caps:     caps,
		arena:    make(map[*Entity]int),
		subjects: make(map[*Entity]*Subject),
		joins:    make(map[string]*Subject),
		attached: make(map[string]bool),
	}, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{relmap.ErrInvalidGraph}, args...)...)
}

func (b *builder) node(e *Entity) (*Node, error) {
	n, ok := b.cfg.Schema.Node(e.Type)
	if !ok {
		return nil, invalid("unknown entity type %q", e.Type)
	}
	if n.ID == nil {
		return nil, invalid("%s has no id column", n.Type)
	}
	return n, nil
}

// visit adds e to the identity arena. It reports false if e was already
// visited.
func (b *builder) visit(e *Entity) bool {
	if _, ok := b.arena[e]; ok {
		return false
	}
	b.arena[e] = len(b.visited)
	b.visited = append(b.visited, e)
	return true
}

func (b *builder) add(s *Subject) *Subject {
	s.seq = len(b.order)
	b.order = append(b.order, s)
	return s
}

// subject returns the subject of an entity, creating an insert or update
// subject on first use.
func (b *builder) subject(e *Entity, n *Node) *Subject {
	if s, ok := b.subjects[e]; ok {
		return s
	}
	op := OpUpdate
	if !e.stored {
		op = OpInsert
		if e.ID == nil && n.ID.Generation == schema.GenUUID {
			e.ID = uuid.New()
		}
	}
	s := b.add(&Subject{Entity: e, Node: n, Table: n.Table, Op: op, Values: make(map[string]any)})
	b.subjects[e] = s
	return s
}

func (b *builder) build(ctx context.Context, intent Intent, roots []*Entity) error {
	switch intent {
	case IntentSave:
		orphans, err := b.save(roots)
		if err != nil {
			return err
		}
		confirmed, err := b.confirm(ctx, orphans)
		if err != nil {
			return err
		}
		return b.remove(confirmed, IntentRemove)
	case IntentRemove, IntentSoftRemove, IntentRecover:
		return b.remove(roots, intent)
	}
	return fmt.Errorf("sqlgraph: unknown intent %d", intent)
}

// result drops update subjects without pending changes.
func (b *builder) result() []*Subject {
	out := make([]*Subject, 0, len(b.order))
	for _, s := range b.order {
		if s.Op == OpUpdate && len(s.Values) == 0 && len(s.Refs) == 0 {
			continue
		}
		s.seq = len(out)
		out = append(out, s)
	}
	return out
}

// orphan is a stored target detached from an edge whose foreign key lives
// on the target row.
type orphan struct {
	source *Entity
	target *Entity
	edge   *Edge
}

// save walks the graph breadth-first, following the edges whose cascade
// flags permit the write of their targets.
func (b *builder) save(roots []*Entity) ([]orphan, error) {
	queue := slices.Clone(roots)
	var orphans []orphan
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if !b.visit(e) {
			continue
		}
		if e.removed {
			return nil, invalid("%s was removed", e)
		}
		n, err := b.node(e)
		if err != nil {
			return nil, err
		}
		s, err := b.fields(e, n)
		if err != nil {
			return nil, err
		}
		for _, name := range n.edgeNames() {
			edge := n.Edges[name]
			targets := e.edges[name]
			if edge.Spec.Rel != M2M && edge.Spec.Rel != O2M && len(targets) > 1 {
				return nil, invalid("%s edge %s of %s has %d targets", edge.Spec.Rel, name, e, len(targets))
			}
			for _, t := range targets {
				if t.Type != edge.To.Type {
					return nil, invalid("edge %s of %s expects %s, got %s", name, e, edge.To.Type, t.Type)
				}
				switch {
				case !t.stored && !edge.Spec.Cascade.Has(CascadeInsert):
					return nil, invalid("new %s reachable from %s through edge %q that does not cascade inserts", t.Type, e, name)
				case !t.stored, edge.Spec.Cascade.Has(CascadeUpdate):
					queue = append(queue, t)
				}
				if err := b.relate(s, e, edge, t); err != nil {
					return nil, err
				}
			}
			if !e.stored {
				continue
			}
			for _, d := range e.detached(name) {
				switch {
				case edge.Spec.Rel == M2M:
					b.unlink(e, edge, d)
				case edge.Spec.fkOnSource():
					if len(targets) == 0 {
						if !edge.Spec.Nullable {
							return nil, invalid("cannot detach %s from %s: column %q is not nullable", d, e, edge.Spec.Columns[0])
						}
						s.Values[edge.Spec.Columns[0]] = nil
					}
				default:
					orphans = append(orphans, orphan{source: e, target: d, edge: edge})
				}
			}
		}
	}
	return orphans, nil
}

// fields returns the subject of e with its changed field values.
func (b *builder) fields(e *Entity, n *Node) (*Subject, error) {
	s := b.subject(e, n)
	if !e.stored && e.ID == nil && n.ID.Generation == schema.GenNone {
		return nil, invalid("%s has no id and %s keys are not generated", e, n.Type)
	}
	if s.Op == OpInsert && e.ID != nil {
		s.Values[n.ID.Column] = e.ID
	}
	for _, name := range slices.Sorted(maps.Keys(e.values)) {
		if e.stored && !e.dirty[name] {
			continue
		}
		f, ok := n.Fields[name]
		if !ok {
			return nil, invalid("unknown field %q of %s", name, n.Type)
		}
		s.Values[f.Column] = e.values[name]
	}
	return s, nil
}

// relate records the foreign key value linking e to t on the row holding
// the key.
func (b *builder) relate(s *Subject, e *Entity, edge *Edge, t *Entity) error {
	spec := edge.Spec
	changed := !e.wasLoaded(edge.Name, t) || !t.stored
	switch {
	case !changed:
		if !spec.fkOnSource() && spec.Rel != M2M {
			b.attached[rowKey(t)] = true
		}
	case spec.Rel == M2M:
		return b.link(e, edge, t)
	case spec.fkOnSource():
		return b.reference(s, spec.Columns[0], t, spec)
	default:
		if t.stored {
			b.attached[rowKey(t)] = true
		}
		tn, err := b.node(t)
		if err != nil {
			return err
		}
		return b.reference(b.subject(t, tn), spec.Columns[0], e, spec)
	}
	return nil
}

// reference sets column of s to the key of t. A reference to a new row is
// resolved when the row is written.
func (b *builder) reference(s *Subject, column string, t *Entity, spec *EdgeSpec) error {
	if t.stored {
		s.Values[column] = t.ID
		return nil
	}
	ts := b.subjects[t]
	if ts == nil {
		n, err := b.node(t)
		if err != nil {
			return err
		}
		ts = b.subject(t, n)
	}
	s.Values[column] = t.ID
	s.Refs = append(s.Refs, &Ref{
		Column:   column,
		To:       ts,
		Nullable: spec.Nullable && spec.Rel != M2M,
		// The key must be known before the row is written.
		Deferrable: spec.Deferrable && b.caps.Name == dialect.Postgres && t.ID != nil,
	})
	return nil
}

func rowKey(e *Entity) string {
	return fmt.Sprintf("%s#%v", e.Type, e.ID)
}

func (b *builder) joinKey(table string, owner, target *Entity, spec *EdgeSpec) string {
	// Both directions of an M2M relation share the join row.
	if spec.Inverse {
		owner, target = target, owner
	}
	id := func(e *Entity) string {
		if e.stored {
			return rowKey(e)
		}
		return fmt.Sprintf("%p", e)
	}
	return table + "|" + id(owner) + "|" + id(target)
}

// link adds the join row of an M2M edge.
func (b *builder) link(e *Entity, edge *Edge, t *Entity) error {
	key := "+" + b.joinKey(edge.Spec.Table, e, t, edge.Spec)
	if _, ok := b.joins[key]; ok {
		return nil
	}
	owner, target := edge.Spec.joinColumns()
	s := b.add(&Subject{Table: edge.Spec.Table, Op: OpInsert, Values: make(map[string]any)})
	b.joins[key] = s
	if err := b.reference(s, owner, e, edge.Spec); err != nil {
		return err
	}
	return b.reference(s, target, t, edge.Spec)
}

// unlink deletes the join row of an M2M edge.
func (b *builder) unlink(e *Entity, edge *Edge, t *Entity) {
	key := "-" + b.joinKey(edge.Spec.Table, e, t, edge.Spec)
	if _, ok := b.joins[key]; ok {
		return
	}
	owner, target := edge.Spec.joinColumns()
	b.joins[key] = b.add(&Subject{
		Table: edge.Spec.Table,
		Op:    OpDelete,
		Where: map[string]any{owner: e.ID, target: t.ID},
	})
}

// confirm keeps the orphans that are not attached through another path and
// whose rows still reference their source. Orphans of edges without orphan
// removal are detached instead.
func (b *builder) confirm(ctx context.Context, orphans []orphan) ([]*Entity, error) {
	var removed []*Entity
	for _, o := range orphans {
		if b.attached[rowKey(o.target)] {
			continue
		}
		spec := o.edge.Spec
		col := spec.Columns[0]
		if b.cfg.Fetcher != nil {
			n, err := b.node(o.target)
			if err != nil {
				return nil, err
			}
			values, err := b.cfg.Fetcher.Fetch(ctx, n.Table, n.ID.Column, o.target.ID, col)
			if err != nil {
				return nil, fmt.Errorf("sqlgraph: fetch orphan %s: %w", o.target, err)
			}
			switch {
			case len(values) == 0:
				b.cfg.Logger.DebugContext(ctx, "orphan row is gone", "entity", o.target.String())
				continue
			case len(values) > 1:
				return nil, relmap.NewOrphanResolutionError(o.target.Type, o.edge.Name, o.target.ID,
					fmt.Sprintf("key matches %d rows", len(values)))
			case !sameKey(values[0], o.source.ID):
				b.cfg.Logger.DebugContext(ctx, "orphan row was re-parented", "entity", o.target.String())
				continue
			}
		}
		switch {
		case spec.OrphanRemoval:
			removed = append(removed, o.target)
		case spec.Nullable:
			n, err := b.node(o.target)
			if err != nil {
				return nil, err
			}
			b.visit(o.target)
			b.subject(o.target, n).Values[col] = nil
		default:
			return nil, invalid("cannot detach %s from %s: column %q is not nullable", o.target, o.source, col)
		}
	}
	return removed, nil
}

// remove walks the graph from the roots following the edges that cascade
// the intent and adds one delete, soft-delete or recover subject per row.
func (b *builder) remove(roots []*Entity, intent Intent) error {
	op, flag := OpDelete, CascadeRemove
	switch intent {
	case IntentSoftRemove:
		op, flag = OpSoftDelete, CascadeSoftRemove
	case IntentRecover:
		op, flag = OpRecover, CascadeRecover
	}
	subjects := make(map[*Entity]*Subject)
	get := func(e *Entity) (*Subject, error) {
		if s, ok := subjects[e]; ok {
			return s, nil
		}
		n, err := b.node(e)
		if err != nil {
			return nil, err
		}
		if op != OpDelete && n.SoftDelete == "" {
			return nil, invalid("%s does not support soft deletion", n.Type)
		}
		s, ok := b.subjects[e]
		if ok {
			s.Op, s.Values, s.Refs = op, nil, nil
		} else {
			s = b.add(&Subject{Entity: e, Node: n, Table: n.Table, Op: op})
			b.subjects[e] = s
		}
		subjects[e] = s
		return s, nil
	}
	queue := slices.Clone(roots)
	seen := make(map[*Entity]bool)
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if seen[e] || !e.stored {
			continue
		}
		seen[e] = true
		b.visit(e)
		s, err := get(e)
		if err != nil {
			return err
		}
		n := s.Node
		for _, name := range n.edgeNames() {
			edge := n.Edges[name]
			spec := edge.Spec
			if op == OpDelete && spec.Rel == M2M {
				owner, _ := spec.joinColumns()
				key := "-" + spec.Table + "|" + owner + "|" + rowKey(e)
				if _, ok := b.joins[key]; !ok {
					js := b.add(&Subject{Table: spec.Table, Op: OpDelete, Where: map[string]any{owner: e.ID}})
					js.Refs = append(js.Refs, &Ref{Column: owner, To: s})
					b.joins[key] = js
				}
			}
			if !spec.Cascade.Has(flag) || spec.Rel == M2M {
				continue
			}
			for _, t := range related(e, name) {
				queue = append(queue, t)
				if op != OpDelete {
					continue
				}
				ts, err := get(t)
				if err != nil {
					return err
				}
				// The referencing row is deleted first.
				ref := &Ref{Column: spec.Columns[0], Nullable: spec.Nullable, Deferrable: spec.Deferrable && b.caps.Name == dialect.Postgres}
				if spec.fkOnSource() {
					ref.To = ts
					s.Refs = append(s.Refs, ref)
				} else {
					ref.To = s
					ts.Refs = append(ts.Refs, ref)
				}
			}
		}
	}
	return nil
}

// related returns the stored targets of an edge, current or loaded.
func related(e *Entity, edge string) []*Entity {
	var out []*Entity
	for _, t := range slices.Concat(e.edges[edge], e.loaded[edge]) {
		if t.stored && !slices.ContainsFunc(out, t.same) {
			out = append(out, t)
		}
	}
	return out
}
