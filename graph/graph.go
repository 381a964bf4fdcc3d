package graph

import (
	"cmp"
	"container/heap"
	"fmt"
	"slices"
	"strings"
)

// Kind describes why one node depends on another.
type Kind uint8

// Edge kinds.
const (
	// FKReference: From holds a foreign key referencing To.
	FKReference Kind = iota
	// InsertBefore: To must be inserted before From.
	InsertBefore
	// UpdateAfter: From is an update that runs after To.
	UpdateAfter
	// DeleteBefore: To must be deleted before From.
	DeleteBefore
	// NameConflict: From adds a name that To drops.
	NameConflict
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case FKReference:
		return "fk-reference"
	case InsertBefore:
		return "insert-before"
	case UpdateAfter:
		return "update-after"
	case DeleteBefore:
		return "delete-before"
	case NameConflict:
		return "name-conflict"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Edge is a directed dependency: From depends on To, so To is ordered first.
type Edge[K cmp.Ordered] struct {
	From, To K
	Kind     Kind
	// Breakable reports whether the dependency can be deferred
	// (nullable or deferrable foreign key).
	Breakable bool
	// Label is free text used in diagnostics and tie-breaking
	// (e.g. the FK column list).
	Label string
	// Seq is the discovery order, assigned by AddEdge.
	Seq int
}

func (e *Edge[K]) String() string {
	return fmt.Sprintf("%v -[%s]-> %v", e.From, e.Kind, e.To)
}

// Graph is a directed dependency graph. The zero value is not usable; use New.
type Graph[K cmp.Ordered] struct {
	nodes map[K]struct{}
	out   map[K][]*Edge[K]
	seq   int
}

// New returns an empty graph.
func New[K cmp.Ordered]() *Graph[K] {
	return &Graph[K]{
		nodes: make(map[K]struct{}),
		out:   make(map[K][]*Edge[K]),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph[K]) AddNode(k K) {
	g.nodes[k] = struct{}{}
}

// HasNode reports whether k was added to the graph.
func (g *Graph[K]) HasNode(k K) bool {
	_, ok := g.nodes[k]
	return ok
}

// AddEdge adds the edge e. Both endpoints must already be nodes of the graph.
func (g *Graph[K]) AddEdge(e Edge[K]) (*Edge[K], error) {
	if !g.HasNode(e.From) {
		return nil, fmt.Errorf("graph: unknown node %v", e.From)
	}
	if !g.HasNode(e.To) {
		return nil, fmt.Errorf("graph: unknown node %v", e.To)
	}
	e.Seq = g.seq
	g.seq++
	ne := &e
	g.out[e.From] = append(g.out[e.From], ne)
	return ne, nil
}

// MustAddEdge is like AddEdge but panics on unknown nodes.
func (g *Graph[K]) MustAddEdge(e Edge[K]) *Edge[K] {
	ne, err := g.AddEdge(e)
	if err != nil {
		panic(err)
	}
	return ne
}

// RemoveEdge removes the given edge. It reports whether the edge was found.
func (g *Graph[K]) RemoveEdge(e *Edge[K]) bool {
	edges := g.out[e.From]
	for i := range edges {
		if edges[i] == e {
			g.out[e.From] = slices.Delete(edges, i, i+1)
			return true
		}
	}
	return false
}

// Nodes returns all nodes in ascending order.
func (g *Graph[K]) Nodes() []K {
	nodes := make([]K, 0, len(g.nodes))
	for k := range g.nodes {
		nodes = append(nodes, k)
	}
	slices.Sort(nodes)
	return nodes
}

// Edges returns all edges in discovery order.
func (g *Graph[K]) Edges() []*Edge[K] {
	var edges []*Edge[K]
	for _, es := range g.out {
		edges = append(edges, es...)
	}
	slices.SortFunc(edges, func(a, b *Edge[K]) int { return cmp.Compare(a.Seq, b.Seq) })
	return edges
}

// Dependencies returns the outgoing edges of k, ordered by target then discovery.
func (g *Graph[K]) Dependencies(k K) []*Edge[K] {
	edges := slices.Clone(g.out[k])
	slices.SortFunc(edges, func(a, b *Edge[K]) int {
		if c := cmp.Compare(a.To, b.To); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	return edges
}

// SCCs returns the strongly connected components of the graph using
// Tarjan's algorithm. Components are returned dependencies first and
// members of each component are sorted. The result is independent of
// insertion order.
func (g *Graph[K]) SCCs() [][]K {
	var (
		index   int
		stack   []K
		onStack = make(map[K]bool)
		indices = make(map[K]int)
		lowlink = make(map[K]int)
		sccs    [][]K
	)
	var connect func(v K)
	connect = func(v K) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true
		for _, e := range g.Dependencies(v) {
			w := e.To
			if _, seen := indices[w]; !seen {
				connect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}
		if lowlink[v] == indices[v] {
			var scc []K
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}
	for _, v := range g.Nodes() {
		if _, seen := indices[v]; !seen {
			connect(v)
		}
	}
	return sccs
}

// Cycles returns the components that contain at least one cycle: components
// with more than one member, or a single member with a self-edge.
func (g *Graph[K]) Cycles() [][]K {
	var cycles [][]K
	for _, scc := range g.SCCs() {
		if len(scc) > 1 || g.selfLoop(scc[0]) {
			cycles = append(cycles, scc)
		}
	}
	return cycles
}

func (g *Graph[K]) selfLoop(k K) bool {
	for _, e := range g.out[k] {
		if e.To == k {
			return true
		}
	}
	return false
}

// CyclePath returns one concrete cycle inside the component scc, starting
// and ending at the same node. It walks the smallest member following the
// smallest in-component dependency until a node repeats.
func (g *Graph[K]) CyclePath(scc []K) []K {
	if len(scc) == 0 {
		return nil
	}
	in := make(map[K]bool, len(scc))
	for _, k := range scc {
		in[k] = true
	}
	var (
		path []K
		pos  = make(map[K]int)
		v    = slices.Min(scc)
	)
	for {
		if i, ok := pos[v]; ok {
			return append(path[i:], v)
		}
		pos[v] = len(path)
		path = append(path, v)
		next, found := v, false
		for _, e := range g.Dependencies(v) {
			if in[e.To] {
				next, found = e.To, true
				break
			}
		}
		if !found {
			return path
		}
		v = next
	}
}

// BreakCycles removes breakable edges until the graph is acyclic. At each
// step the first breakable edge, according to order, whose endpoints lie in
// the same cyclic component is removed. It returns the removed edges. If a
// cyclic component has no breakable edge, BreakCycles stops and returns a
// *CycleError naming one cycle of that component; edges removed so far stay
// removed. A nil order compares edges by From, then To, then insertion.
func (g *Graph[K]) BreakCycles(order func(a, b *Edge[K]) int) ([]*Edge[K], error) {
	if order == nil {
		order = func(a, b *Edge[K]) int {
			return cmp.Or(cmp.Compare(a.From, b.From), cmp.Compare(a.To, b.To), cmp.Compare(a.Seq, b.Seq))
		}
	}
	var removed []*Edge[K]
	for {
		cycles := g.Cycles()
		if len(cycles) == 0 {
			return removed, nil
		}
		var candidates []*Edge[K]
		for _, scc := range cycles {
			in := make(map[K]bool, len(scc))
			for _, k := range scc {
				in[k] = true
			}
			var local []*Edge[K]
			for _, k := range scc {
				for _, e := range g.out[k] {
					if in[e.To] && e.Breakable {
						local = append(local, e)
					}
				}
			}
			if len(local) == 0 {
				return removed, &CycleError[K]{Cycle: g.CyclePath(scc)}
			}
			candidates = append(candidates, local...)
		}
		slices.SortFunc(candidates, order)
		g.RemoveEdge(candidates[0])
		removed = append(removed, candidates[0])
	}
}

// CycleError is returned by Sort and BreakCycles when the graph contains a
// cycle that could not be resolved.
type CycleError[K cmp.Ordered] struct {
	Cycle []K
}

func (e *CycleError[K]) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, k := range e.Cycle {
		parts[i] = fmt.Sprint(k)
	}
	return "graph: cycle detected: " + strings.Join(parts, " -> ")
}

// Sort returns the nodes in dependency order: for every edge From -> To,
// To precedes From. Among nodes that are ready at the same time, the one
// that is smaller according to less is emitted first; a nil less orders
// by key. Sort returns a *CycleError if the graph is cyclic.
func (g *Graph[K]) Sort(less func(a, b K) bool) ([]K, error) {
	if less == nil {
		less = cmp.Less[K]
	}
	pending := make(map[K]int, len(g.nodes))
	dependents := make(map[K][]K)
	for from, edges := range g.out {
		for _, e := range edges {
			pending[from]++
			dependents[e.To] = append(dependents[e.To], from)
		}
	}
	ready := &nodeHeap[K]{less: less}
	for k := range g.nodes {
		if pending[k] == 0 {
			ready.items = append(ready.items, k)
		}
	}
	heap.Init(ready)
	sorted := make([]K, 0, len(g.nodes))
	for ready.Len() > 0 {
		k := heap.Pop(ready).(K)
		sorted = append(sorted, k)
		for _, d := range dependents[k] {
			pending[d]--
			if pending[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}
	if len(sorted) != len(g.nodes) {
		cycles := g.Cycles()
		return nil, &CycleError[K]{Cycle: g.CyclePath(cycles[0])}
	}
	return sorted, nil
}

type nodeHeap[K cmp.Ordered] struct {
	items []K
	less  func(a, b K) bool
}

func (h *nodeHeap[K]) Len() int           { return len(h.items) }
func (h *nodeHeap[K]) Less(i, j int) bool { return h.less(h.items[i], h.items[j]) }
func (h *nodeHeap[K]) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *nodeHeap[K]) Push(x any)         { h.items = append(h.items, x.(K)) }

func (h *nodeHeap[K]) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}
