// Package toposort implements a parallel variant of Kahn's algorithm for
// topological ordering of citation graphs.
//
// In-degree counting is parallelized over vertex chunks with atomic
// counters; the main loop drains whole frontiers (levels) at a time and
// relaxes their outgoing edges in parallel. Correctness only depends on a
// counter crossing zero, so relaxed atomic ordering is sufficient and no
// locks are held during relaxation.
//
// The relative order of vertices within one level depends on goroutine
// scheduling and is therefore not deterministic across runs or worker
// counts. Layer assignment downstream derives layers independently, so
// nothing in this module's callers relies on level-internal order.
package toposort

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/citegraph/layoutd/pkg/errors"
	"github.com/citegraph/layoutd/pkg/graph"
)

// DefaultChunkSize is the number of vertices handed to a worker at a time.
const DefaultChunkSize = 1024

// Sorter runs parallel topological sorts with a bounded worker count.
type Sorter struct {
	workers   int
	chunkSize int
}

// Result is the output of a topological sort.
type Result struct {
	// Order lists every vertex id so that each edge's source precedes its
	// target.
	Order []string

	// Position maps vertex id -> index in Order.
	Position map[string]int

	// Levels is the number of frontiers drained; equals the length of the
	// longest chain plus one for a connected DAG.
	Levels int

	// Stats holds timing information for the run.
	Stats Stats
}

// Stats records timing for the two phases of the sort.
type Stats struct {
	InitDuration      time.Duration // in-degree counting
	AlgorithmDuration time.Duration // frontier processing
}

// New creates a Sorter. Worker and chunk counts below 1 are clamped to
// sensible defaults.
func New(workers, chunkSize int) *Sorter {
	if workers < 1 {
		workers = 1
	}
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	return &Sorter{workers: workers, chunkSize: chunkSize}
}

// Sort computes a topological order of g. Returns a CYCLIC_GRAPH error if
// the graph contains a cycle (fewer vertices ordered than exist). The
// context is checked between levels only; a level in flight always
// completes.
func (s *Sorter) Sort(ctx context.Context, g *graph.Graph) (*Result, error) {
	initStart := time.Now()
	inDegree := s.countInDegrees(g)
	initDur := time.Since(initStart)

	algoStart := time.Now()

	vertices := g.Vertices()
	order := make([]string, 0, len(vertices))
	levels := 0

	frontier := make([]string, 0)
	for _, id := range vertices {
		if inDegree[id].Load() == 0 {
			frontier = append(frontier, id)
		}
	}

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeTimeout, err, "topological sort cancelled")
		}
		levels++
		next := s.relaxLevel(g, frontier, inDegree)
		order = append(order, frontier...)
		frontier = next
	}

	if len(order) != len(vertices) {
		return nil, errors.New(errors.ErrCodeCyclicGraph,
			"graph contains a cycle: ordered %d of %d vertices", len(order), len(vertices))
	}

	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	return &Result{
		Order:    order,
		Position: position,
		Levels:   levels,
		Stats: Stats{
			InitDuration:      initDur,
			AlgorithmDuration: time.Since(algoStart),
		},
	}, nil
}

// runChunks feeds items to fn in chunkSize slices through a pool of
// exactly s.workers goroutines. Goroutine count is bounded by the worker
// setting, never by the input size.
func (s *Sorter) runChunks(items []string, fn func(chunk []string)) {
	chunks := make(chan []string, s.workers)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range chunks {
				fn(chunk)
			}
		}()
	}

	for start := 0; start < len(items); start += s.chunkSize {
		end := min(start+s.chunkSize, len(items))
		chunks <- items[start:end]
	}
	close(chunks)
	wg.Wait()
}

// countInDegrees computes per-vertex in-degrees by scanning outgoing edges
// over the worker pool. Each increment targets a distinct per-vertex
// atomic, so workers never contend on a shared lock.
func (s *Sorter) countInDegrees(g *graph.Graph) map[string]*atomic.Int64 {
	vertices := g.Vertices()
	inDegree := make(map[string]*atomic.Int64, len(vertices))
	for _, id := range vertices {
		inDegree[id] = new(atomic.Int64)
	}

	s.runChunks(vertices, func(chunk []string) {
		for _, id := range chunk {
			outs, _ := g.Outgoing(id)
			for _, target := range outs {
				inDegree[target].Add(1)
			}
		}
	})
	return inDegree
}

// relaxLevel processes one frontier: every outgoing edge of every frontier
// vertex decrements its target's in-degree, and targets that reach zero are
// collected for the next frontier.
func (s *Sorter) relaxLevel(g *graph.Graph, frontier []string, inDegree map[string]*atomic.Int64) []string {
	var (
		mu   sync.Mutex
		next []string
	)

	s.runChunks(frontier, func(chunk []string) {
		var local []string
		for _, id := range chunk {
			outs, _ := g.Outgoing(id)
			for _, target := range outs {
				if inDegree[target].Add(-1) == 0 {
					local = append(local, target)
				}
			}
		}
		if len(local) > 0 {
			mu.Lock()
			next = append(next, local...)
			mu.Unlock()
		}
	})
	return next
}

// Validate checks that order is a complete, valid topological order of g.
// Returns an INVALID_PATH error describing the first violation.
func Validate(g *graph.Graph, order []string) error {
	if len(order) != g.VertexCount() {
		return errors.New(errors.ErrCodeInvalidPath,
			"order has %d vertices, graph has %d", len(order), g.VertexCount())
	}
	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	for _, id := range order {
		outs, _ := g.Outgoing(id)
		for _, target := range outs {
			if position[id] >= position[target] {
				return errors.New(errors.ErrCodeInvalidPath,
					"order violated: %s (pos %d) precedes its source %s (pos %d)",
					target, position[target], id, position[id])
			}
		}
	}
	return nil
}
