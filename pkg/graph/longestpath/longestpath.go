// Package longestpath finds the longest path in a DAG given a topological
// order of its vertices.
//
// This is the legacy seed for the longest-path layering strategy. The
// primary layering engine (pkg/layer) derives layers independently; this
// package is retained for the compatibility strategy and as a diagnostic
// (the longest chain length bounds the number of layers).
package longestpath

import (
	"github.com/citegraph/layoutd/pkg/errors"
	"github.com/citegraph/layoutd/pkg/graph"
)

// Result describes the longest path found in a DAG.
type Result struct {
	// Path lists the vertex ids from start to end.
	Path []string

	// Length is the number of vertices on the path.
	Length int
}

// Find computes the longest path by single-pass dynamic programming over
// the topological order: for each vertex in order, relax its outgoing edges
// so that distance[target] = max(distance[target], distance[vertex]+1).
// Ties in the maximal distance are broken by iteration order; the caller
// only uses the path as a placement seed, so any maximal path is
// acceptable.
//
// Runs in O(V+E). The order must be a valid topological order of g;
// use toposort.Validate if in doubt.
func Find(g *graph.Graph, order []string) Result {
	if len(order) == 0 {
		return Result{}
	}

	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}

	distance := make([]int, len(order))
	predecessor := make([]int, len(order))
	for i := range predecessor {
		predecessor[i] = -1
	}

	for i, id := range order {
		outs, _ := g.Outgoing(id)
		for _, target := range outs {
			ti, ok := index[target]
			if !ok {
				continue
			}
			if d := distance[i] + 1; d > distance[ti] {
				distance[ti] = d
				predecessor[ti] = i
			}
		}
	}

	maxIdx := 0
	for i, d := range distance {
		if d > distance[maxIdx] {
			maxIdx = i
		}
	}

	var path []string
	for i := maxIdx; i >= 0; i = predecessor[i] {
		path = append(path, order[i])
	}
	reverse(path)

	return Result{Path: path, Length: len(path)}
}

// ValidatePath confirms every consecutive pair in path is a real edge of g.
// A violation means an internal invariant was broken upstream and is
// reported as INVALID_PATH.
func ValidatePath(g *graph.Graph, path []string) error {
	for i := 1; i < len(path); i++ {
		if !g.ContainsEdge(path[i-1], path[i]) {
			return errors.New(errors.ErrCodeInvalidPath,
				"path references missing edge %s -> %s", path[i-1], path[i])
		}
	}
	return nil
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
