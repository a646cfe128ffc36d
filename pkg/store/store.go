// Package store abstracts where citation edges come from and where
// computed positions go. The batch pipeline only sees the two interfaces;
// MongoStore is the production implementation and the memory variants back
// tests and the CLI's file-based mode.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/citegraph/layoutd/pkg/graph"
	"github.com/citegraph/layoutd/pkg/layout"
)

// EdgeSource streams citation edges in stable batches. Implementations
// must return the same edge for the same offset across calls while a job
// runs, so a restarted batch reads what the original would have.
type EdgeSource interface {
	// CountEdges returns the total number of edges available.
	CountEdges(ctx context.Context) (int64, error)

	// LoadEdgesBatch returns up to limit edges starting at offset.
	LoadEdgesBatch(ctx context.Context, limit, offset int64) ([]graph.Edge, error)
}

// PositionSink persists computed vertex positions.
type PositionSink interface {
	// SavePositions writes positions in chunks of batchSize. Positions for
	// a vertex replace any previously saved ones.
	SavePositions(ctx context.Context, positions []layout.Position, batchSize int) error
}

// MemorySource is an in-memory EdgeSource. Edges are served in insertion
// order, which gives the stable pagination the pipeline requires.
type MemorySource struct {
	mu    sync.RWMutex
	edges []graph.Edge
}

// NewMemorySource creates a MemorySource over a copy of edges.
func NewMemorySource(edges []graph.Edge) *MemorySource {
	cp := make([]graph.Edge, len(edges))
	copy(cp, edges)
	return &MemorySource{edges: cp}
}

// CountEdges implements EdgeSource.
func (s *MemorySource) CountEdges(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.edges)), nil
}

// LoadEdgesBatch implements EdgeSource.
func (s *MemorySource) LoadEdgesBatch(ctx context.Context, limit, offset int64) ([]graph.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= int64(len(s.edges)) || limit <= 0 {
		return nil, nil
	}
	end := offset + limit
	if end > int64(len(s.edges)) {
		end = int64(len(s.edges))
	}
	batch := make([]graph.Edge, end-offset)
	copy(batch, s.edges[offset:end])
	return batch, nil
}

// MemorySink is an in-memory PositionSink keeping the latest position per
// vertex.
type MemorySink struct {
	mu        sync.RWMutex
	positions map[string]layout.Position
	saves     int
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{positions: make(map[string]layout.Position)}
}

// SavePositions implements PositionSink.
func (s *MemorySink) SavePositions(ctx context.Context, positions []layout.Position, batchSize int) error {
	if batchSize < 1 {
		batchSize = len(positions)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range positions {
		s.positions[p.VertexID] = p
	}
	s.saves++
	return nil
}

// Positions returns the saved positions sorted by vertex id.
func (s *MemorySink) Positions() []layout.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]layout.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VertexID < out[j].VertexID })
	return out
}

// Saves returns how many SavePositions calls were made.
func (s *MemorySink) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
