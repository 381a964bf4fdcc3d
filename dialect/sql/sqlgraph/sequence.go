package sqlgraph

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/syssam/relmap"
	"github.com/syssam/relmap/dialect"
	"github.com/syssam/relmap/graph"
)

// StepKind is the kind of a plan step.
type StepKind uint8

// Step kinds.
const (
	// StepApply applies the operation of its subject.
	StepApply StepKind = iota
	// StepBackfill sets the columns of references that were written as
	// NULL to break an insert cycle.
	StepBackfill
	// StepDetach clears the columns of references that must be removed
	// before the rows of a delete cycle can be deleted.
	StepDetach
)

// Step is one statement of a plan.
type Step struct {
	Kind    StepKind
	Subject *Subject
	// Refs are the columns written by backfill and detach steps.
	Refs []*Ref

	plan   *Plan
	softAt time.Time
}

// Plan is an ordered list of row operations.
type Plan struct {
	Dialect string
	// Defer reports whether the plan starts by deferring the constraint
	// checks to the end of the transaction.
	Defer bool
	Steps []*Step

	caps     dialect.Capabilities
	now      func() time.Time
	logger   *slog.Logger
	entities []*Entity
}

// Sequence orders the subjects into a plan: inserts with referenced rows
// first, then the backfill of broken references, then updates, then soft
// deletes and recoveries, then deletes with referencing rows first.
// Dependency cycles are broken by removing breakable references in lexical
// order of (table, referenced table, column).
func Sequence(cfg Config, subjects []*Subject) (*Plan, error) {
	caps, err := dialect.CapabilitiesOf(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	p := &Plan{Dialect: caps.Name, caps: caps, now: cfg.Now, logger: cfg.Logger}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	g := graph.New[int]()
	refs := make(map[*graph.Edge[int]]*Ref)
	for i, s := range subjects {
		if s.seq != i {
			return nil, fmt.Errorf("sqlgraph: subject %s out of sequence", s)
		}
		g.AddNode(i)
	}
	for _, s := range subjects {
		for _, r := range s.Refs {
			switch {
			case s.Op == OpInsert && r.To.Op == OpInsert:
				e := g.MustAddEdge(graph.Edge[int]{From: s.seq, To: r.To.seq, Kind: graph.InsertBefore, Breakable: r.Breakable(), Label: r.Column})
				refs[e] = r
			case s.Op == OpDelete && r.To.Op == OpDelete:
				// The referenced row is deleted after the referencing one.
				e := g.MustAddEdge(graph.Edge[int]{From: r.To.seq, To: s.seq, Kind: graph.DeleteBefore, Breakable: r.Breakable(), Label: r.Column})
				refs[e] = r
			}
		}
	}
	table := func(k int) string { return subjects[k].Table }
	removed, err := g.BreakCycles(func(a, b *graph.Edge[int]) int {
		return cmp.Or(
			cmp.Compare(table(a.From), table(b.From)),
			cmp.Compare(table(a.To), table(b.To)),
			cmp.Compare(a.Label, b.Label),
			cmp.Compare(a.Seq, b.Seq),
		)
	})
	if err != nil {
		var ce *graph.CycleError[int]
		if errors.As(err, &ce) {
			tables := make([]string, len(ce.Cycle))
			for i, k := range ce.Cycle {
				tables[i] = table(k)
			}
			return nil, relmap.NewCycleUnbreakableError(tables...)
		}
		return nil, err
	}
	for _, e := range removed {
		r := refs[e]
		if r.Deferrable {
			r.deferred = true
			p.Defer = true
		} else {
			r.broken = true
		}
		p.logger.Debug("reference cycle broken", "table", table(e.From), "column", r.Column, "deferred", r.deferred)
	}
	order, err := g.Sort(nil)
	if err != nil {
		return nil, err
	}
	var backfills, detaches, deletes []*Step
	for _, k := range order {
		s := subjects[k]
		switch s.Op {
		case OpInsert:
			p.add(StepApply, s)
			if broken := brokenRefs(s); len(broken) > 0 {
				backfills = append(backfills, &Step{Kind: StepBackfill, Subject: s, Refs: broken, plan: p})
			}
		case OpDelete:
			if broken := brokenRefs(s); len(broken) > 0 {
				detaches = append(detaches, &Step{Kind: StepDetach, Subject: s, Refs: broken, plan: p})
			}
			deletes = append(deletes, &Step{Kind: StepApply, Subject: s, plan: p})
		}
	}
	p.Steps = append(p.Steps, backfills...)
	for _, s := range subjects {
		if s.Op == OpUpdate {
			p.add(StepApply, s)
		}
	}
	for _, s := range subjects {
		if s.Op == OpSoftDelete || s.Op == OpRecover {
			p.add(StepApply, s)
		}
	}
	p.Steps = append(p.Steps, detaches...)
	p.Steps = append(p.Steps, deletes...)
	return p, nil
}

func (p *Plan) add(kind StepKind, s *Subject) {
	p.Steps = append(p.Steps, &Step{Kind: kind, Subject: s, plan: p})
}

func brokenRefs(s *Subject) []*Ref {
	var out []*Ref
	for _, r := range s.Refs {
		if r.broken {
			out = append(out, r)
		}
	}
	return out
}

// Subjects returns the subjects applied by the plan in execution order.
func (p *Plan) Subjects() []*Subject {
	var out []*Subject
	for _, s := range p.Steps {
		if s.Kind == StepApply {
			out = append(out, s.Subject)
		}
	}
	return out
}

// Statements returns the statement text of every step.
func (p *Plan) Statements() []string {
	var out []string
	if p.Defer {
		out = append(out, deferConstraints)
	}
	for _, s := range p.Steps {
		out = append(out, s.String())
	}
	return out
}

// String describes the plan one step per line.
func (p *Plan) String() string {
	var b strings.Builder
	if p.Defer {
		b.WriteString("defer constraints\n")
	}
	for i, s := range p.Steps {
		fmt.Fprintf(&b, "%d. ", i+1)
		switch s.Kind {
		case StepBackfill:
			b.WriteString("backfill ")
		case StepDetach:
			b.WriteString("detach ")
		}
		b.WriteString(s.Subject.String())
		if len(s.Refs) > 0 {
			cols := make([]string, len(s.Refs))
			for i, r := range s.Refs {
				cols[i] = r.Column
			}
			fmt.Fprintf(&b, " [%s]", strings.Join(cols, ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Empty reports whether the plan has no steps.
func (p *Plan) Empty() bool { return len(p.Steps) == 0 }

