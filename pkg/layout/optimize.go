package layout

import (
	"sort"

	"github.com/charmbracelet/log"

	"github.com/citegraph/layoutd/pkg/graph"
)

// OptimizeOptions controls the post-placement optimization passes.
type OptimizeOptions struct {
	// CompactLayout removes vertical gaps left inside layers.
	CompactLayout bool `json:"compact_layout" toml:"compact_layout"`

	// MaxIterations bounds the optimization loop.
	MaxIterations int `json:"max_iterations" toml:"max_iterations"`
}

// DefaultOptimizeOptions returns the standard optimization behavior.
func DefaultOptimizeOptions() OptimizeOptions {
	return OptimizeOptions{CompactLayout: true, MaxIterations: 10}
}

// Optimize runs optimization passes in place until no pass improves the
// layout or MaxIterations is reached.
func Optimize(positions []Position, cfg Config, opts OptimizeOptions, logger *log.Logger) {
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 1
	}
	cfg = cfg.normalize()

	for i := 0; i < opts.MaxIterations; i++ {
		improved := false
		if opts.CompactLayout {
			improved = compact(positions, cfg) || improved
		}
		if !improved {
			if logger != nil {
				logger.Debug("layout optimization converged", "iterations", i+1)
			}
			return
		}
	}
}

// compact closes vertical gaps within each layer: vertices are sorted by y
// and reassigned contiguous levels. Returns whether any vertex moved.
func compact(positions []Position, cfg Config) bool {
	byLayer := make(map[int][]int)
	for i, p := range positions {
		byLayer[p.Layer] = append(byLayer[p.Layer], i)
	}

	pitch := cfg.BlockHeight + cfg.VerticalGap
	improved := false

	for _, indices := range byLayer {
		sort.Slice(indices, func(a, b int) bool {
			return positions[indices[a]].Y < positions[indices[b]].Y
		})
		for level, idx := range indices {
			y := float64(level) * pitch
			if positions[idx].Y != y || positions[idx].Level != level {
				positions[idx].Y = y
				positions[idx].Level = level
				improved = true
			}
		}
	}
	return improved
}

// OrderLayers produces the per-layer left-to-right (top-to-bottom) vertex
// orderings used for crossing counting. Vertices are ordered by id within
// each layer, matching PlaceAll, so counted crossings reflect the rendered
// layout. A barycenter or median reordering pass would slot in here; the
// id ordering is the deterministic baseline it would have to beat.
func OrderLayers(layers map[string]int) map[int][]string {
	orders := make(map[int][]string)
	for id, layer := range layers {
		orders[layer] = append(orders[layer], id)
	}
	for _, ids := range orders {
		sort.Strings(ids)
	}
	return orders
}

// CountCrossings sums the edge crossings between every pair of adjacent
// layers for the given per-layer orderings.
func CountCrossings(g *graph.Graph, orders map[int][]string) int {
	layerNums := make([]int, 0, len(orders))
	for layer := range orders {
		layerNums = append(layerNums, layer)
	}
	sort.Ints(layerNums)

	crossings := 0
	for i := 0; i+1 < len(layerNums); i++ {
		upper, lower := layerNums[i], layerNums[i+1]
		if lower != upper+1 {
			continue
		}
		crossings += countLayerCrossings(g, orders[upper], orders[lower])
	}
	return crossings
}

// countLayerCrossings counts crossings between two adjacent layers with a
// Fenwick tree in O(E log V). Two edges (u1,v1), (u2,v2) cross iff
// pos(u1) < pos(u2) and pos(v1) > pos(v2), so after sorting edges by
// source position the answer is the number of inversions among target
// positions.
func countLayerCrossings(g *graph.Graph, upper, lower []string) int {
	if len(upper) == 0 || len(lower) == 0 {
		return 0
	}

	lowerPos := make(map[string]int, len(lower))
	for i, id := range lower {
		lowerPos[id] = i
	}

	type edge struct{ upper, lower int }
	var edges []edge
	for i, id := range upper {
		outs, _ := g.Outgoing(id)
		for _, target := range outs {
			if pos, ok := lowerPos[target]; ok {
				edges = append(edges, edge{i, pos})
			}
		}
	}
	if len(edges) < 2 {
		return 0
	}

	sort.Slice(edges, func(a, b int) bool {
		if edges[a].upper != edges[b].upper {
			return edges[a].upper < edges[b].upper
		}
		return edges[a].lower < edges[b].lower
	})

	fenwick := make([]int, len(lower)+1)
	crossings, total := 0, 0
	for _, e := range edges {
		lessOrEqual := 0
		for q := e.lower + 1; q > 0; q -= q & (-q) {
			lessOrEqual += fenwick[q]
		}
		crossings += total - lessOrEqual

		total++
		for q := e.lower + 1; q <= len(lower); q += q & (-q) {
			fenwick[q]++
		}
	}
	return crossings
}
