package spatial

import (
	"fmt"
	"sort"
)

// Graph is an undirected, unweighted graph over region identifiers.
// Nodes keep insertion order; neighbour lists are reported sorted by ID.
// There are no self edges and no parallel edges.
type Graph struct {
	nodes []string
	index map[string]int
	adj   []map[int]struct{}
	edges int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// AddNode inserts id if it is not present. It reports whether the node was new.
func (g *Graph) AddNode(id string) bool {
	if _, ok := g.index[id]; ok {
		return false
	}
	g.index[id] = len(g.nodes)
	g.nodes = append(g.nodes, id)
	g.adj = append(g.adj, make(map[int]struct{}))
	return true
}

// AddEdge links a and b in both directions. Both nodes must exist.
func (g *Graph) AddEdge(a, b string) error {
	if a == b {
		return fmt.Errorf("self edge on %q", a)
	}
	ia, ok := g.index[a]
	if !ok {
		return fmt.Errorf("unknown node %q", a)
	}
	ib, ok := g.index[b]
	if !ok {
		return fmt.Errorf("unknown node %q", b)
	}
	if _, dup := g.adj[ia][ib]; dup {
		return nil
	}
	g.adj[ia][ib] = struct{}{}
	g.adj[ib][ia] = struct{}{}
	g.edges++
	return nil
}

// HasNode reports whether id is a node of the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// HasEdge reports whether a and b are adjacent.
func (g *Graph) HasEdge(a, b string) bool {
	ia, ok := g.index[a]
	if !ok {
		return false
	}
	ib, ok := g.index[b]
	if !ok {
		return false
	}
	_, ok = g.adj[ia][ib]
	return ok
}

// Neighbors returns the IDs adjacent to id, sorted. Unknown or isolated
// nodes yield an empty slice.
func (g *Graph) Neighbors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(g.adj[i]))
	for j := range g.adj[i] {
		out = append(out, g.nodes[j])
	}
	sort.Strings(out)
	return out
}

// Degree returns the number of neighbours of id.
func (g *Graph) Degree(id string) int {
	i, ok := g.index[id]
	if !ok {
		return 0
	}
	return len(g.adj[i])
}

// Nodes returns a copy of the node IDs in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	return g.edges
}

// Subgraph returns the graph induced by keep. Node order follows g; IDs in
// keep that are not nodes of g are ignored.
func (g *Graph) Subgraph(keep []string) *Graph {
	want := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		want[id] = struct{}{}
	}

	sub := NewGraph()
	for _, id := range g.nodes {
		if _, ok := want[id]; ok {
			sub.AddNode(id)
		}
	}
	for _, id := range sub.nodes {
		for _, n := range g.Neighbors(id) {
			if sub.HasNode(n) && id < n {
				_ = sub.AddEdge(id, n)
			}
		}
	}
	return sub
}
