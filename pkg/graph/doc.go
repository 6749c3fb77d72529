// Package graph holds the dependency graph discovered by a transitive walk.
//
// Nodes are package versions keyed by "name@version"; edges point from a
// dependent to its dependency. Unlike a layered DAG, dependency graphs may
// contain cycles (accepts -> body-parser -> accepts), so [Graph] allows them
// and reports them through [Graph.HasCycle].
//
// A [Graph] is built by a single goroutine (the resolver's collector) and is
// not safe for concurrent mutation.
//
// Serialization uses a stable JSON form sorted by node ID:
//
//	_ = graph.WriteFile(g, "express.json")
//	g2, _ := graph.Read(r)
package graph
