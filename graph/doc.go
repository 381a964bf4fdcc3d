// Package graph provides the dependency graph shared by the schema and the
// persistence planners.
//
// A Graph holds ordered keys (change indices for DDL planning, subject
// indices for cascade planning) and typed edges. An edge From -> To means
// From depends on To, so To is ordered first:
//
//	g := graph.New[int]()
//	g.AddNode(0) // CREATE TABLE parent
//	g.AddNode(1) // CREATE TABLE child
//	g.MustAddEdge(graph.Edge[int]{From: 1, To: 0, Kind: graph.FKReference})
//	order, err := g.Sort(nil) // [0 1]
//
// # Cycles
//
// SCCs returns the strongly connected components (Tarjan), Cycles the
// cyclic ones. BreakCycles removes breakable edges in a caller-defined order
// until the graph is acyclic, and reports a *CycleError when a cycle has no
// breakable edge left.
//
// Every traversal iterates nodes and edges in sorted order, so results do
// not depend on map iteration or insertion order.
package graph
