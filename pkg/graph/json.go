package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Document is the JSON serialization of a [Graph].
type Document struct {
	Root      string        `json:"root,omitempty"`
	Nodes     []NodeDoc     `json:"nodes"`
	Edges     []EdgeDoc     `json:"edges"`
	Conflicts []ConflictDoc `json:"conflicts,omitempty"`
}

// NodeDoc is a serialized node.
type NodeDoc struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// EdgeDoc is a serialized edge.
type EdgeDoc struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ConflictDoc is a serialized version conflict.
type ConflictDoc struct {
	Name     string   `json:"name"`
	Versions []string `json:"versions"`
	Chosen   string   `json:"chosen"`
}

// ToDocument converts g to its serialized form. Output order is stable.
func ToDocument(g *Graph) Document {
	doc := Document{
		Root:  g.Root(),
		Nodes: make([]NodeDoc, 0, g.NodeCount()),
		Edges: make([]EdgeDoc, 0, g.EdgeCount()),
	}
	for _, n := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, NodeDoc{ID: n.ID, Name: n.Name, Version: n.Version})
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, EdgeDoc{From: e.From, To: e.To})
	}
	for _, c := range g.Conflicts() {
		doc.Conflicts = append(doc.Conflicts, ConflictDoc{Name: c.Name, Versions: c.Versions, Chosen: c.Chosen})
	}
	return doc
}

// FromDocument rebuilds a Graph, validating node IDs and edge endpoints.
func FromDocument(doc Document) (*Graph, error) {
	g := New()
	for _, n := range doc.Nodes {
		if err := g.AddNode(Node{ID: n.ID, Name: n.Name, Version: n.Version}); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
	}
	for _, e := range doc.Edges {
		if err := g.AddEdge(Edge{From: e.From, To: e.To}); err != nil {
			return nil, fmt.Errorf("edge %s -> %s: %w", e.From, e.To, err)
		}
	}
	for _, c := range doc.Conflicts {
		g.AddConflict(Conflict{Name: c.Name, Versions: c.Versions, Chosen: c.Chosen})
	}
	if doc.Root != "" {
		if _, ok := g.Node(doc.Root); !ok {
			return nil, fmt.Errorf("root %q: %w", doc.Root, ErrUnknownSourceNode)
		}
		g.SetRoot(doc.Root)
	}
	return g, nil
}

// Write writes a graph as JSON to w.
func Write(g *Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ToDocument(g)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteFile writes a graph to a JSON file.
func WriteFile(g *Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return Write(g, f)
}

// Read decodes a JSON graph from r.
func Read(r io.Reader) (*Graph, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return FromDocument(doc)
}
