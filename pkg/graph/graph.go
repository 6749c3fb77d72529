package graph

import (
	"cmp"
	"errors"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [Graph.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Graph.AddNode] when a node with the
	// same ID already exists.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [Graph.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Graph.AddEdge] when the To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")
)

// Node is one package version in the graph.
type Node struct {
	ID      string // "name@version"
	Name    string
	Version string
}

// Edge is a dependency from one package version to another.
type Edge struct {
	From string
	To   string
}

// Conflict records a package name that was reached at more than one version.
type Conflict struct {
	Name     string   // Package name
	Versions []string // Distinct versions seen, sorted
	Chosen   string   // Version kept in the flattened result
}

// Graph is a directed dependency graph that may contain cycles.
// The zero value is not usable; call [New].
type Graph struct {
	root      string
	nodes     map[string]*Node
	edges     []Edge
	edgeSet   map[Edge]struct{}
	outgoing  map[string][]string
	incoming  map[string][]string
	conflicts []Conflict
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		edgeSet:  make(map[Edge]struct{}),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// NodeID returns the canonical node ID for a package version.
func NodeID(name, version string) string { return name + "@" + version }

// AddNode adds a node. ID defaults to NodeID(Name, Version) when empty.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" && n.Name != "" {
		n.ID = NodeID(n.Name, n.Version)
	}
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	g.nodes[n.ID] = &n
	return nil
}

// AddEdge adds a directed edge between two existing nodes.
// Adding the same edge twice is a no-op.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := g.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if _, dup := g.edgeSet[e]; dup {
		return nil
	}
	g.edgeSet[e] = struct{}{}
	g.edges = append(g.edges, e)
	g.outgoing[e.From] = append(g.outgoing[e.From], e.To)
	g.incoming[e.To] = append(g.incoming[e.To], e.From)
	return nil
}

// SetRoot marks the node the walk started from.
func (g *Graph) SetRoot(id string) { g.root = id }

// Root returns the root node ID, or "" if none was set.
func (g *Graph) Root() string { return g.root }

// AddConflict records a version conflict.
func (g *Graph) AddConflict(c Conflict) { g.conflicts = append(g.conflicts, c) }

// Conflicts returns recorded conflicts sorted by name.
func (g *Graph) Conflicts() []Conflict {
	out := slices.Clone(g.conflicts)
	slices.SortFunc(out, func(a, b Conflict) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *Node) int { return cmp.Compare(a.ID, b.ID) })
	return nodes
}

// Edges returns a copy of all edges sorted by (From, To).
func (g *Graph) Edges() []Edge {
	edges := slices.Clone(g.edges)
	slices.SortFunc(edges, func(a, b Edge) int {
		return cmp.Or(cmp.Compare(a.From, b.From), cmp.Compare(a.To, b.To))
	})
	return edges
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Children returns the IDs this node depends on, in insertion order.
func (g *Graph) Children(id string) []string { return g.outgoing[id] }

// Parents returns the IDs that depend on this node, in insertion order.
func (g *Graph) Parents(id string) []string { return g.incoming[id] }

// HasCycle reports whether the graph contains a directed cycle.
func (g *Graph) HasCycle() bool {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(g.nodes))
	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		for _, child := range g.outgoing[id] {
			switch color[child] {
			case white:
				if dfs(child) {
					return true
				}
			case gray:
				return true
			}
		}
		color[id] = black
		return false
	}

	for id := range g.nodes {
		if color[id] == white && dfs(id) {
			return true
		}
	}
	return false
}
