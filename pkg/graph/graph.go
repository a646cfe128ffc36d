package graph

import (
	"github.com/citegraph/layoutd/pkg/errors"
)

// Edge is a directed connection between two vertices, source (cited, older)
// to target (citing, newer). Weight defaults to 1.0; Type is an informational
// tag carried through from the data source.
type Edge struct {
	Source string  `json:"source_id" bson:"source_id"`
	Target string  `json:"target_id" bson:"target_id"`
	Weight float64 `json:"weight,omitempty" bson:"weight,omitempty"`
	Type   string  `json:"edge_type,omitempty" bson:"edge_type,omitempty"`
}

// Graph is an immutable directed graph with O(1) neighbor lookup by vertex
// key. Build one with [Builder]. The zero value is empty but usable for
// reads.
//
// Graph is safe for concurrent reads; the connected-components cache is
// populated on first use and must not race with it (call
// ConnectedComponents once up front if sharing across goroutines).
type Graph struct {
	vertexIdx map[string]int
	vertexIDs []string

	adjOut [][]int
	adjIn  [][]int

	weights   map[[2]int]float64
	edgeCount int

	components [][]int // computed lazily; graph is immutable so never invalidated
}

// VertexCount returns the number of vertices. O(1).
func (g *Graph) VertexCount() int { return len(g.vertexIDs) }

// EdgeCount returns the number of edges. O(1).
func (g *Graph) EdgeCount() int { return g.edgeCount }

// Vertices returns all vertex ids in index order. The returned slice is
// shared with the graph and must not be modified.
func (g *Graph) Vertices() []string { return g.vertexIDs }

// Contains reports whether the vertex exists in the graph.
func (g *Graph) Contains(id string) bool {
	_, ok := g.vertexIdx[id]
	return ok
}

// ContainsEdge reports whether the directed edge source -> target exists.
func (g *Graph) ContainsEdge(source, target string) bool {
	si, ok := g.vertexIdx[source]
	if !ok {
		return false
	}
	ti, ok := g.vertexIdx[target]
	if !ok {
		return false
	}
	for _, n := range g.adjOut[si] {
		if n == ti {
			return true
		}
	}
	return false
}

// Outgoing returns the ids of vertices this vertex has edges to, in
// insertion order, and whether the vertex exists. The returned slice is
// freshly allocated on every call.
func (g *Graph) Outgoing(id string) ([]string, bool) {
	idx, ok := g.vertexIdx[id]
	if !ok {
		return nil, false
	}
	return g.resolve(g.adjOut[idx]), true
}

// Incoming returns the ids of vertices that have edges to this vertex, in
// insertion order, and whether the vertex exists.
func (g *Graph) Incoming(id string) ([]string, bool) {
	idx, ok := g.vertexIdx[id]
	if !ok {
		return nil, false
	}
	return g.resolve(g.adjIn[idx]), true
}

// OutDegree returns the number of outgoing edges, or 0 for unknown vertices.
func (g *Graph) OutDegree(id string) int {
	if idx, ok := g.vertexIdx[id]; ok {
		return len(g.adjOut[idx])
	}
	return 0
}

// InDegree returns the number of incoming edges, or 0 for unknown vertices.
func (g *Graph) InDegree(id string) int {
	if idx, ok := g.vertexIdx[id]; ok {
		return len(g.adjIn[idx])
	}
	return 0
}

// Weight returns the weight of the edge source -> target, or 0 and false if
// the edge does not exist.
func (g *Graph) Weight(source, target string) (float64, bool) {
	si, ok := g.vertexIdx[source]
	if !ok {
		return 0, false
	}
	ti, ok := g.vertexIdx[target]
	if !ok {
		return 0, false
	}
	w, ok := g.weights[[2]int{si, ti}]
	return w, ok
}

// IsolatedVertices returns the ids of vertices with no incoming and no
// outgoing edges.
func (g *Graph) IsolatedVertices() []string {
	var isolated []string
	for idx, id := range g.vertexIDs {
		if len(g.adjOut[idx]) == 0 && len(g.adjIn[idx]) == 0 {
			isolated = append(isolated, id)
		}
	}
	return isolated
}

func (g *Graph) resolve(idxs []int) []string {
	ids := make([]string, len(idxs))
	for i, idx := range idxs {
		ids[i] = g.vertexIDs[idx]
	}
	return ids
}

// Builder accumulates edges and explicit vertices before freezing them into
// a Graph. Duplicate edges between the same ordered pair are allowed at this
// level; callers that require dedup (the layout engine does) filter before
// adding.
type Builder struct {
	vertices map[string]struct{}
	order    []string
	edges    []Edge
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{vertices: make(map[string]struct{})}
}

// AddEdge records a directed edge. Self-loops and empty endpoints are
// rejected with an INVALID_INPUT error. A zero weight is stored as 1.0.
func (b *Builder) AddEdge(source, target string, weight float64) error {
	if source == "" || target == "" {
		return errors.New(errors.ErrCodeInvalidInput, "edge endpoint must not be empty")
	}
	if source == target {
		return errors.New(errors.ErrCodeInvalidInput, "self-loop %s -> %s is not allowed", source, target)
	}
	if weight == 0 {
		weight = 1.0
	}
	b.addVertex(source)
	b.addVertex(target)
	b.edges = append(b.edges, Edge{Source: source, Target: target, Weight: weight})
	return nil
}

// AddVertex registers a vertex without edges. Useful for carrying isolated
// vertices through to placement.
func (b *Builder) AddVertex(id string) {
	if id == "" {
		return
	}
	b.addVertex(id)
}

func (b *Builder) addVertex(id string) {
	if _, ok := b.vertices[id]; !ok {
		b.vertices[id] = struct{}{}
		b.order = append(b.order, id)
	}
}

// EdgeCount returns the number of edges recorded so far.
func (b *Builder) EdgeCount() int { return len(b.edges) }

// Build freezes the accumulated vertices and edges into an immutable Graph.
// Vertex indices follow first-seen order, so two builders fed the same edge
// sequence produce identical graphs.
func (b *Builder) Build() *Graph {
	g := &Graph{
		vertexIdx: make(map[string]int, len(b.order)),
		vertexIDs: make([]string, len(b.order)),
		weights:   make(map[[2]int]float64, len(b.edges)),
	}
	for i, id := range b.order {
		g.vertexIdx[id] = i
		g.vertexIDs[i] = id
	}

	g.adjOut = make([][]int, len(b.order))
	g.adjIn = make([][]int, len(b.order))

	for _, e := range b.edges {
		si := g.vertexIdx[e.Source]
		ti := g.vertexIdx[e.Target]
		g.adjOut[si] = append(g.adjOut[si], ti)
		g.adjIn[ti] = append(g.adjIn[ti], si)
		g.weights[[2]int{si, ti}] = e.Weight
		g.edgeCount++
	}
	return g
}
