// Package layer implements global layer assignment for citation graphs
// processed as incremental edge batches.
//
// Layer assignment must be global, not per-batch: a vertex's layer is
// max(layer of its predecessors) + 1, and a batch arriving late can deepen
// chains discovered earlier. [State] therefore keeps adjacency and current
// layers for every vertex seen so far and recomputes only the vertices a
// new batch could have affected (a dirty worklist), propagating changes to
// transitive successors until a fixed point.
//
// The update rule is monotone for a DAG: a recomputation derived from
// up-to-date predecessors can only raise a layer. This makes the algorithm
// idempotent and batch-order-insensitive — any partition of an edge set
// into batches converges to the same layer map, which is the property the
// batch pipeline relies on.
package layer

import (
	"io"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/citegraph/layoutd/pkg/errors"
	"github.com/citegraph/layoutd/pkg/graph"
)

// MaxPropagationRounds caps PropagateUntilConvergence. Hitting the cap
// means an extremely long dependency chain grew across rounds or the input
// contains a cycle; either way the partial layer map is still usable and
// the condition is surfaced, never swallowed.
const MaxPropagationRounds = 100

// State holds the global layering state across batches. It has exactly one
// logical owner (the batch orchestrator) and is not safe for concurrent
// mutation.
type State struct {
	layers   map[string]int
	outgoing map[string]map[string]struct{}
	incoming map[string]map[string]struct{}
	dirty    map[string]struct{}

	maxLayer  int
	edgeCount int
	rounds    int
	logger    *log.Logger
}

// NewState creates an empty layering state. A nil logger disables logging.
func NewState(logger *log.Logger) *State {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &State{
		layers:   make(map[string]int),
		outgoing: make(map[string]map[string]struct{}),
		incoming: make(map[string]map[string]struct{}),
		dirty:    make(map[string]struct{}),
		logger:   logger,
	}
}

// AddBatch records a batch of edges. Invalid edges (empty endpoint,
// self-loop) are skipped, duplicates are ignored, and every newly seen
// vertex starts at layer 0. The target of each new edge is marked dirty:
// its layer may be stale now that it has a new predecessor. Returns the
// number of new edges recorded.
func (s *State) AddBatch(edges []graph.Edge) int {
	newEdges := 0
	newVertices := 0

	for _, e := range edges {
		if e.Source == "" || e.Target == "" || e.Source == e.Target {
			continue
		}

		if _, ok := s.layers[e.Source]; !ok {
			s.layers[e.Source] = 0
			newVertices++
		}
		if _, ok := s.layers[e.Target]; !ok {
			s.layers[e.Target] = 0
			newVertices++
		}

		out := s.outgoing[e.Source]
		if out == nil {
			out = make(map[string]struct{})
			s.outgoing[e.Source] = out
		}
		if _, dup := out[e.Target]; dup {
			continue
		}
		out[e.Target] = struct{}{}
		newEdges++

		in := s.incoming[e.Target]
		if in == nil {
			in = make(map[string]struct{})
			s.incoming[e.Target] = in
		}
		in[e.Source] = struct{}{}

		s.dirty[e.Target] = struct{}{}
	}

	s.edgeCount += newEdges
	s.logger.Debug("batch added",
		"new_vertices", newVertices,
		"new_edges", newEdges,
		"dirty", len(s.dirty))
	return newEdges
}

// Propagate runs one worklist pass: the dirty set is drained into a queue,
// each dequeued vertex's layer is recomputed from its predecessors, and
// vertices whose layer changed enqueue all their successors. Returns the
// number of vertices whose layer changed.
//
// A single pass is not guaranteed to reach the fixed point — a vertex may
// be recomputed before a predecessor updates and be reprocessed later via
// the successor enqueue. Convergence is defined by Propagate returning 0.
func (s *State) Propagate() int {
	s.rounds++
	if len(s.dirty) == 0 {
		return 0
	}

	queue := make([]string, 0, len(s.dirty))
	for v := range s.dirty {
		queue = append(queue, v)
	}
	s.dirty = make(map[string]struct{})

	// In a DAG no layer can exceed vertexCount-1. A vertex pushed past that
	// bound sits on a cycle; it is re-marked dirty instead of enqueued so the
	// pass terminates and the round cap reports the condition.
	maxValid := len(s.layers) - 1

	updated := 0
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]

		newLayer := 0
		for pred := range s.incoming[v] {
			if l, ok := s.layers[pred]; ok && l+1 > newLayer {
				newLayer = l + 1
			}
		}

		if newLayer > maxValid {
			s.dirty[v] = struct{}{}
			continue
		}

		if newLayer != s.layers[v] {
			s.layers[v] = newLayer
			if newLayer > s.maxLayer {
				s.maxLayer = newLayer
			}
			updated++
			for succ := range s.outgoing[v] {
				queue = append(queue, succ)
			}
		}
	}

	return updated
}

// PropagateUntilConvergence runs Propagate until a pass makes no updates.
// Returns the total number of updates. If MaxPropagationRounds passes run
// without converging, the partial layer map is kept and a
// CONVERGENCE_NOT_REACHED error is returned alongside the total; callers
// treat it as a warning, not a fatal failure.
func (s *State) PropagateUntilConvergence() (int, error) {
	total := 0
	for i := 1; ; i++ {
		updates := s.Propagate()
		total += updates
		if updates == 0 {
			if len(s.dirty) > 0 {
				s.logger.Warn("layer propagation stuck, cycle suspected",
					"rounds", i, "stuck_vertices", len(s.dirty))
				return total, errors.New(errors.ErrCodeConvergence,
					"propagation stuck with %d vertices beyond the layer bound (cycle suspected)", len(s.dirty))
			}
			s.logger.Debug("layer propagation converged", "rounds", i, "updates", total)
			return total, nil
		}
		if i >= MaxPropagationRounds {
			s.logger.Warn("layer propagation hit round cap",
				"rounds", i, "updates", total, "max_layer", s.maxLayer)
			return total, errors.New(errors.ErrCodeConvergence,
				"propagation stopped after %d rounds with updates still pending", i)
		}
		if i%10 == 0 {
			s.logger.Info("layer propagation progress",
				"round", i, "updates", updates, "max_layer", s.maxLayer)
		}
	}
}

// Layer returns the current layer of a vertex and whether it is known.
func (s *State) Layer(id string) (int, bool) {
	l, ok := s.layers[id]
	return l, ok
}

// Layers returns a copy of the vertex -> layer map. Safe to hold after
// further batches mutate the state.
func (s *State) Layers() map[string]int {
	out := make(map[string]int, len(s.layers))
	for id, l := range s.layers {
		out[id] = l
	}
	return out
}

// VertexCount returns the number of vertices seen so far.
func (s *State) VertexCount() int { return len(s.layers) }

// EdgeCount returns the number of distinct edges recorded so far.
func (s *State) EdgeCount() int { return s.edgeCount }

// MaxLayer returns the highest layer assigned so far.
func (s *State) MaxLayer() int { return s.maxLayer }

// Validate scans all recorded edges and counts those where
// layer(source) >= layer(target). A positive count indicates cycles or an
// unconverged state; it is reported, never auto-repaired.
func (s *State) Validate() int {
	invalid := 0
	const maxLogged = 10

	for source, targets := range s.outgoing {
		sl := s.layers[source]
		for target := range targets {
			if tl := s.layers[target]; sl >= tl {
				if invalid < maxLogged {
					s.logger.Debug("invalid edge ordering",
						"source", source, "source_layer", sl,
						"target", target, "target_layer", tl)
				}
				invalid++
			}
		}
	}

	if invalid > 0 {
		s.logger.Warn("layer validation found mis-ordered edges (possible cycles)", "count", invalid)
	}
	return invalid
}

// Stats summarizes the layering state.
type Stats struct {
	VertexCount  int         `json:"vertex_count"`
	EdgeCount    int         `json:"edge_count"`
	MaxLayer     int         `json:"max_layer"`
	UniqueLayers int         `json:"unique_layers"`
	Rounds       int         `json:"propagation_rounds"`
	Distribution map[int]int `json:"layer_distribution,omitempty"`
}

// Stats computes the current layer distribution.
func (s *State) Stats() Stats {
	dist := make(map[int]int)
	for _, l := range s.layers {
		dist[l]++
	}
	return Stats{
		VertexCount:  len(s.layers),
		EdgeCount:    s.edgeCount,
		MaxLayer:     s.maxLayer,
		UniqueLayers: len(dist),
		Rounds:       s.rounds,
		Distribution: dist,
	}
}

// LogStats writes a layer-distribution summary to the state's logger.
// Only the first 20 layers are listed to keep logs readable on deep graphs.
func (s *State) LogStats() {
	stats := s.Stats()
	s.logger.Info("global layer state",
		"vertices", stats.VertexCount,
		"edges", stats.EdgeCount,
		"max_layer", stats.MaxLayer,
		"unique_layers", stats.UniqueLayers,
		"rounds", stats.Rounds)

	layers := make([]int, 0, len(stats.Distribution))
	for l := range stats.Distribution {
		layers = append(layers, l)
	}
	sort.Ints(layers)
	for i, l := range layers {
		if i == 20 {
			s.logger.Info("layer distribution truncated", "remaining_layers", len(layers)-20)
			break
		}
		s.logger.Info("layer distribution", "layer", l, "vertices", stats.Distribution[l])
	}
}
