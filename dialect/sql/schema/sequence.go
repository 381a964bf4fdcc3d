package schema

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/relmap"
	"github.com/syssam/relmap/dialect"
	"github.com/syssam/relmap/graph"
)

// Plan is an ordered, dialect specific synchronization plan. Changes of
// different scopes are never interleaved: each ScopePlan runs as one unit.
type Plan struct {
	Dialect string
	Scopes  []*ScopePlan
}

// ScopePlan holds the ordered changes of one schema qualifier and the
// statements they render to.
type ScopePlan struct {
	Scope      string
	Changes    []Change
	Statements []string
}

// Changes returns the ordered changes of all scopes.
func (p *Plan) Changes() []Change {
	var changes []Change
	for _, s := range p.Scopes {
		changes = append(changes, s.Changes...)
	}
	return changes
}

// Statements returns the statements of all scopes in execution order.
func (p *Plan) Statements() []string {
	var stmts []string
	for _, s := range p.Scopes {
		stmts = append(stmts, s.Statements...)
	}
	return stmts
}

// Empty reports whether the plan holds no statement.
func (p *Plan) Empty() bool {
	return len(p.Statements()) == 0
}

// Reverse returns the plan undoing p.
func (p *Plan) Reverse() (*Plan, error) {
	return Sequence(p.Dialect, Reverse(p.Changes()))
}

// PlanSynchronize computes the plan turning live into target on the given
// dialect. It is a pure function of its inputs.
func PlanSynchronize(dialectName string, target, live *Model, opts ...DiffOption) (*Plan, error) {
	changes, err := Diff(target, live, append([]DiffOption{WithDialect(dialectName)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return Sequence(dialectName, changes)
}

// Sequence orders an unordered set of changes into an executable plan. The
// result depends only on the set, not on the order of the input slice.
func Sequence(dialectName string, changes []Change) (*Plan, error) {
	caps, err := dialect.CapabilitiesOf(dialectName)
	if err != nil {
		return nil, err
	}
	byScope := make(map[string][]Change)
	for _, c := range changes {
		byScope[c.Table.Schema] = append(byScope[c.Table.Schema], c)
	}
	scopes := make([]string, 0, len(byScope))
	for s := range byScope {
		scopes = append(scopes, s)
	}
	slices.Sort(scopes)
	plan := &Plan{Dialect: caps.Name}
	b := builder{caps: caps}
	for _, s := range scopes {
		ordered, err := sequenceScope(caps, byScope[s])
		if err != nil {
			return nil, err
		}
		sp := &ScopePlan{Scope: s, Changes: ordered}
		for _, c := range ordered {
			stmts, err := b.Statements(c)
			if err != nil {
				return nil, err
			}
			sp.Statements = append(sp.Statements, stmts...)
		}
		plan.Scopes = append(plan.Scopes, sp)
	}
	return plan, nil
}

// fold moves foreign keys added to tables created in the same plan into the
// CreateTable change, for dialects that cannot alter foreign keys. Other
// changes the dialect cannot run are rejected.
func fold(caps dialect.Capabilities, changes []Change) ([]Change, error) {
	b := builder{caps: caps}
	created := make(map[string]*Table)
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if c.Kind == CreateTable {
			c.Table = c.Table.Clone()
			created[c.Table.QualifiedName()] = c.Table
		}
		out = append(out, c)
	}
	kept := out[:0]
	for _, c := range out {
		t, isNew := created[c.Table.QualifiedName()]
		switch {
		case c.Kind == CreateTable:
		case isNew && c.Kind == AddForeignKey && !caps.AlterForeignKeys:
			t.ForeignKeys = append(t.ForeignKeys, c.ForeignKey.Clone())
			continue
		case !isNew:
			if err := b.unsupported(c); err != nil {
				return nil, err
			}
		}
		kept = append(kept, c)
	}
	for _, t := range created {
		slices.SortFunc(t.ForeignKeys, func(a, b *ForeignKey) int { return cmp.Compare(a.Symbol, b.Symbol) })
	}
	return kept, nil
}

// phase returns the coarse position of a change kind in a plan. Drops of
// dependent objects come first, then structural changes, then additions
// of dependent objects and finally table drops.
func phase(k ChangeKind) int {
	switch k {
	case DropForeignKey:
		return 0
	case DropIndex, DropUnique, DropCheck, DropExclusion:
		return 1
	case RenameTable, RenameColumn:
		return 2
	case DropColumn:
		return 3
	case CreateTable:
		return 4
	case AddColumn, ChangeColumn, ChangePrimaryKey:
		return 5
	case AddIndex, AddUnique, AddCheck, AddExclusion:
		return 6
	case AddForeignKey:
		return 7
	case ChangeComment:
		return 8
	default:
		return 9
	}
}

func sequenceScope(caps dialect.Capabilities, changes []Change) ([]Change, error) {
	changes, err := fold(caps, changes)
	if err != nil {
		return nil, err
	}
	// Sort first so that node numbers, and the result, do not depend on
	// the input order.
	slices.SortStableFunc(changes, func(a, b Change) int {
		return cmp.Or(cmp.Compare(a.Key(), b.Key()), cmp.Compare(a.String(), b.String()))
	})
	g := graph.New[int]()
	for i := range changes {
		g.AddNode(i)
	}
	s := &sequencer{changes: changes, g: g}
	s.dependencies()
	if _, err := g.BreakCycles(nil); err != nil {
		var (
			members []string
			ce      *graph.CycleError[int]
		)
		if errors.As(err, &ce) {
			for _, n := range ce.Cycle {
				members = append(members, changes[n].String())
			}
		}
		return nil, relmap.NewCycleUnbreakableError(members...)
	}
	rank := tableRank(changes)
	prio := func(i int) (int, int) {
		c := changes[i]
		r := rank[c.Table.QualifiedName()]
		if c.Kind == DropTable || c.Kind == DropForeignKey {
			r = -r
		}
		return phase(c.Kind), r
	}
	order, err := g.Sort(func(a, b int) bool {
		pa, ra := prio(a)
		pb, rb := prio(b)
		if pa != pb {
			return pa < pb
		}
		if ra != rb {
			return ra < rb
		}
		return a < b
	})
	if err != nil {
		return nil, relmap.NewCycleUnbreakableError(fmt.Sprint(err))
	}
	out := make([]Change, len(order))
	for i, n := range order {
		out[i] = changes[n]
	}
	return out, nil
}

// tableRank orders the tables touched by the changes so that referenced
// tables come before the tables referencing them.
func tableRank(changes []Change) map[string]int {
	g := graph.New[string]()
	refs := func(owner string, fks []*ForeignKey) {
		for _, fk := range fks {
			g.AddNode(fk.RefTable)
			if fk.RefTable != owner {
				g.MustAddEdge(graph.Edge[string]{From: owner, To: fk.RefTable, Kind: graph.FKReference, Breakable: true})
			}
		}
	}
	for _, c := range changes {
		owner := c.Table.QualifiedName()
		g.AddNode(owner)
		switch c.Kind {
		case CreateTable, DropTable:
			refs(owner, c.Table.ForeignKeys)
		case AddForeignKey, DropForeignKey:
			refs(owner, []*ForeignKey{c.ForeignKey})
		}
	}
	rank := make(map[string]int)
	if _, err := g.BreakCycles(nil); err != nil {
		return rank
	}
	order, err := g.Sort(nil)
	if err != nil {
		return rank
	}
	for i, t := range order {
		rank[t] = i
	}
	return rank
}

type sequencer struct {
	changes []Change
	g       *graph.Graph[int]
}

func (s *sequencer) edge(from, to int, kind graph.Kind, breakable bool) {
	if from == to {
		return
	}
	s.g.MustAddEdge(graph.Edge[int]{From: from, To: to, Kind: kind, Breakable: breakable, Label: s.changes[from].String()})
}

// on returns the indexes of changes of the given kinds on table qname.
func (s *sequencer) on(qname string, kinds ...ChangeKind) []int {
	var out []int
	for i, c := range s.changes {
		if c.Table.QualifiedName() == qname && slices.Contains(kinds, c.Kind) {
			out = append(out, i)
		}
	}
	return out
}

// dependencies adds an edge from every change to the changes it must run
// after.
func (s *sequencer) dependencies() {
	structural := []ChangeKind{CreateTable, AddColumn, ChangeColumn, ChangePrimaryKey, RenameTable, RenameColumn}
	for i, c := range s.changes {
		t := c.Table.QualifiedName()
		// Changes of a renamed table address it by its new name.
		if c.Kind != RenameTable {
			for _, j := range s.on(t, RenameTable) {
				s.edge(i, j, graph.UpdateAfter, false)
			}
		}
		switch c.Kind {
		case DropForeignKey:
			for _, table := range []string{t, c.ForeignKey.RefTable} {
				for _, j := range s.on(table, DropTable, DropColumn, DropUnique, DropIndex, ChangeColumn, ChangePrimaryKey) {
					s.edge(j, i, graph.DeleteBefore, false)
				}
			}
		case AddForeignKey:
			for _, j := range s.on(t, structural...) {
				s.edge(i, j, graph.InsertBefore, false)
			}
			for _, j := range s.on(c.ForeignKey.RefTable, append(structural, AddUnique, AddIndex)...) {
				s.edge(i, j, graph.FKReference, false)
			}
		case AddIndex, AddUnique, AddCheck, AddExclusion:
			for _, j := range s.on(t, structural...) {
				s.edge(i, j, graph.InsertBefore, false)
			}
		case ChangePrimaryKey:
			for _, j := range s.on(t, AddColumn, ChangeColumn, RenameColumn) {
				s.edge(i, j, graph.InsertBefore, false)
			}
		case ChangeComment:
			for _, j := range s.on(t, structural...) {
				s.edge(i, j, graph.UpdateAfter, false)
			}
		case DropTable:
			// A referenced table is dropped after the tables referencing it.
			for j, o := range s.changes {
				if o.Kind != DropTable || j == i {
					continue
				}
				for _, fk := range o.Table.ForeignKeys {
					if fk.RefTable == t {
						s.edge(i, j, graph.DeleteBefore, true)
					}
				}
			}
		}
	}
	s.renames()
	s.nameConflicts()
}

// renames orders changes addressing a table or column by its old name
// before the rename, and changes addressing it by its new name after it.
func (s *sequencer) renames() {
	for j, r := range s.changes {
		switch r.Kind {
		case RenameTable:
			old := QualifiedName(r.Table.Schema, r.OldName)
			for i, c := range s.changes {
				if c.Table.QualifiedName() != old || i == j {
					continue
				}
				if c.Kind == CreateTable {
					s.edge(i, j, graph.NameConflict, false)
				} else {
					s.edge(j, i, graph.UpdateAfter, false)
				}
			}
		case RenameColumn:
			t := r.Table.QualifiedName()
			for i, c := range s.changes {
				if c.Table.QualifiedName() != t || c.Column == nil {
					continue
				}
				switch c.Column.Name {
				case r.NewName:
					s.edge(i, j, graph.UpdateAfter, false)
				case r.OldName:
					if c.Kind == AddColumn {
						s.edge(i, j, graph.NameConflict, false)
					} else {
						s.edge(j, i, graph.UpdateAfter, false)
					}
				}
			}
		}
	}
}

// nameConflicts orders the creation of a named object after the drop of an
// object with the same name in the scope.
func (s *sequencer) nameConflicts() {
	dropped := make(map[string][]int)
	for i, c := range s.changes {
		switch c.Kind {
		case DropIndex, DropUnique, DropCheck, DropExclusion, DropForeignKey:
			dropped[c.ObjectName()] = append(dropped[c.ObjectName()], i)
		}
	}
	for i, c := range s.changes {
		var names []string
		switch c.Kind {
		case AddIndex, AddUnique, AddCheck, AddExclusion, AddForeignKey:
			names = []string{c.ObjectName()}
		case CreateTable:
			names = constraintNames(c.Table)
		}
		for _, n := range names {
			for _, j := range dropped[n] {
				s.edge(i, j, graph.NameConflict, false)
			}
		}
	}
}

func constraintNames(t *Table) []string {
	var names []string
	for _, idx := range t.Indexes {
		names = append(names, idx.Name)
	}
	for _, u := range t.Uniques {
		names = append(names, u.Name)
	}
	for _, c := range t.Checks {
		names = append(names, c.Name)
	}
	for _, e := range t.Exclusions {
		names = append(names, e.Name)
	}
	for _, fk := range t.ForeignKeys {
		names = append(names, fk.Symbol)
	}
	return names
}

// Describe renders the plan as a human readable listing, one change per line
// followed by its statements.
func (p *Plan) Describe() string {
	var b strings.Builder
	for _, s := range p.Scopes {
		scope := s.Scope
		if scope == "" {
			scope = "default"
		}
		fmt.Fprintf(&b, "-- scope %s\n", scope)
		for _, stmt := range s.Statements {
			b.WriteString(stmt + ";\n")
		}
	}
	return b.String()
}
