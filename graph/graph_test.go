package graph

import (
	"cmp"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraph(nodes ...string) *Graph[string] {
	g := New[string]()
	for _, n := range nodes {
		g.AddNode(n)
	}
	return g
}

func TestAddEdge(t *testing.T) {
	g := newGraph("a", "b")
	e, err := g.AddEdge(Edge[string]{From: "a", To: "b", Kind: FKReference})
	require.NoError(t, err)
	assert.Equal(t, 0, e.Seq)

	_, err = g.AddEdge(Edge[string]{From: "a", To: "c"})
	require.EqualError(t, err, "graph: unknown node c")
	_, err = g.AddEdge(Edge[string]{From: "x", To: "a"})
	require.EqualError(t, err, "graph: unknown node x")

	assert.Panics(t, func() { g.MustAddEdge(Edge[string]{From: "a", To: "z"}) })

	e2 := g.MustAddEdge(Edge[string]{From: "b", To: "a", Breakable: true})
	assert.Equal(t, 1, e2.Seq)
	assert.Equal(t, []*Edge[string]{e, e2}, g.Edges())

	assert.True(t, g.RemoveEdge(e))
	assert.False(t, g.RemoveEdge(e))
	assert.Equal(t, []*Edge[string]{e2}, g.Edges())
}

func TestSort(t *testing.T) {
	t.Run("Chain", func(t *testing.T) {
		g := newGraph("comments", "posts", "users")
		g.MustAddEdge(Edge[string]{From: "comments", To: "posts"})
		g.MustAddEdge(Edge[string]{From: "posts", To: "users"})
		order, err := g.Sort(nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"users", "posts", "comments"}, order)
	})

	t.Run("TieBreakByKey", func(t *testing.T) {
		g := newGraph("d", "c", "b", "a")
		g.MustAddEdge(Edge[string]{From: "a", To: "d"})
		order, err := g.Sort(nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c", "d", "a"}, order)
	})

	t.Run("CustomLess", func(t *testing.T) {
		g := newGraph("a", "b", "c")
		order, err := g.Sort(func(a, b string) bool { return a > b })
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b", "a"}, order)
	})

	t.Run("Cycle", func(t *testing.T) {
		g := newGraph("a", "b", "c")
		g.MustAddEdge(Edge[string]{From: "a", To: "b"})
		g.MustAddEdge(Edge[string]{From: "b", To: "a"})
		_, err := g.Sort(nil)
		var cerr *CycleError[string]
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, []string{"a", "b", "a"}, cerr.Cycle)
		assert.EqualError(t, err, "graph: cycle detected: a -> b -> a")
	})

	t.Run("SelfLoop", func(t *testing.T) {
		g := newGraph("employees")
		g.MustAddEdge(Edge[string]{From: "employees", To: "employees"})
		_, err := g.Sort(nil)
		require.Error(t, err)
	})
}

func TestSortPermutations(t *testing.T) {
	edges := [][2]int{{1, 0}, {2, 1}, {3, 0}, {3, 2}, {4, 3}}
	var want []int
	permute([]int{0, 1, 2, 3, 4}, func(p []int) {
		g := New[int]()
		for _, n := range p {
			g.AddNode(n)
		}
		for i := len(edges) - 1; i >= 0; i-- {
			g.MustAddEdge(Edge[int]{From: edges[i][0], To: edges[i][1]})
		}
		order, err := g.Sort(nil)
		require.NoError(t, err)
		if want == nil {
			want = order
		}
		assert.Equal(t, want, order)
	})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, want)
}

func permute(xs []int, f func([]int)) {
	var rec func(int)
	rec = func(k int) {
		if k == len(xs) {
			f(xs)
			return
		}
		for i := k; i < len(xs); i++ {
			xs[k], xs[i] = xs[i], xs[k]
			rec(k + 1)
			xs[k], xs[i] = xs[i], xs[k]
		}
	}
	rec(0)
}

func TestSCCs(t *testing.T) {
	g := newGraph("a", "b", "c", "d", "e")
	g.MustAddEdge(Edge[string]{From: "a", To: "b"})
	g.MustAddEdge(Edge[string]{From: "b", To: "c"})
	g.MustAddEdge(Edge[string]{From: "c", To: "a"})
	g.MustAddEdge(Edge[string]{From: "d", To: "c"})
	g.MustAddEdge(Edge[string]{From: "e", To: "e"})

	sccs := g.SCCs()
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d"}, {"e"}}, sccs)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"e"}}, g.Cycles())
	assert.Equal(t, []string{"a", "b", "c", "a"}, g.CyclePath([]string{"a", "b", "c"}))
	assert.Equal(t, []string{"e", "e"}, g.CyclePath([]string{"e"}))
}

func TestBreakCycles(t *testing.T) {
	byLabel := func(a, b *Edge[string]) int { return cmp.Compare(a.Label, b.Label) }

	t.Run("Acyclic", func(t *testing.T) {
		g := newGraph("a", "b")
		g.MustAddEdge(Edge[string]{From: "a", To: "b", Breakable: true})
		removed, err := g.BreakCycles(byLabel)
		require.NoError(t, err)
		assert.Empty(t, removed)
	})

	t.Run("LexicalOrder", func(t *testing.T) {
		g := newGraph("a", "b")
		g.MustAddEdge(Edge[string]{From: "a", To: "b", Breakable: true, Label: "z"})
		g.MustAddEdge(Edge[string]{From: "b", To: "a", Breakable: true, Label: "m"})
		removed, err := g.BreakCycles(byLabel)
		require.NoError(t, err)
		require.Len(t, removed, 1)
		assert.Equal(t, "m", removed[0].Label)
		order, err := g.Sort(nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, order)
	})

	t.Run("OnlyBreakableEdge", func(t *testing.T) {
		g := newGraph("a", "b", "c")
		g.MustAddEdge(Edge[string]{From: "a", To: "b", Label: "a"})
		g.MustAddEdge(Edge[string]{From: "b", To: "c", Label: "b"})
		g.MustAddEdge(Edge[string]{From: "c", To: "a", Breakable: true, Label: "c"})
		removed, err := g.BreakCycles(byLabel)
		require.NoError(t, err)
		require.Len(t, removed, 1)
		assert.Equal(t, "c", removed[0].From)
	})

	t.Run("StopsWhenAcyclic", func(t *testing.T) {
		g := newGraph("a", "b", "c")
		g.MustAddEdge(Edge[string]{From: "a", To: "b", Breakable: true, Label: "1"})
		g.MustAddEdge(Edge[string]{From: "b", To: "a", Breakable: true, Label: "2"})
		g.MustAddEdge(Edge[string]{From: "c", To: "a", Breakable: true, Label: "0"})
		removed, err := g.BreakCycles(byLabel)
		require.NoError(t, err)
		require.Len(t, removed, 1)
		assert.Equal(t, "1", removed[0].Label)
	})

	t.Run("Unbreakable", func(t *testing.T) {
		g := newGraph("a", "b")
		g.MustAddEdge(Edge[string]{From: "a", To: "b"})
		g.MustAddEdge(Edge[string]{From: "b", To: "a"})
		_, err := g.BreakCycles(byLabel)
		var cerr *CycleError[string]
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, []string{"a", "b", "a"}, cerr.Cycle)
	})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "fk-reference", FKReference.String())
	assert.Equal(t, "name-conflict", NameConflict.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
