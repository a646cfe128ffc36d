package graph

// Stats summarizes the structure of a graph for diagnostics and reporting.
type Stats struct {
	VertexCount      int     `json:"vertex_count"`
	EdgeCount        int     `json:"edge_count"`
	AvgOutDegree     float64 `json:"avg_out_degree"`
	AvgInDegree      float64 `json:"avg_in_degree"`
	Density          float64 `json:"density"`
	IsDAG            bool    `json:"is_dag"`
	IsolatedVertices int     `json:"isolated_vertices"`
}

// Stats computes summary statistics. Includes a full cycle check, so it is
// O(V+E) and meant for diagnostics, not per-request hot paths.
func (g *Graph) Stats() Stats {
	var totalOut, totalIn int
	for idx := range g.vertexIDs {
		totalOut += len(g.adjOut[idx])
		totalIn += len(g.adjIn[idx])
	}

	s := Stats{
		VertexCount:      g.VertexCount(),
		EdgeCount:        g.EdgeCount(),
		IsDAG:            g.IsDAG(),
		IsolatedVertices: len(g.IsolatedVertices()),
	}
	if n := g.VertexCount(); n > 0 {
		s.AvgOutDegree = float64(totalOut) / float64(n)
		s.AvgInDegree = float64(totalIn) / float64(n)
		if n > 1 {
			s.Density = float64(g.EdgeCount()) / float64(n*(n-1))
		}
	}
	return s
}
