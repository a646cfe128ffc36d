package pipeline

import (
	"context"
	"testing"

	"github.com/citegraph/layoutd/pkg/errors"
	"github.com/citegraph/layoutd/pkg/graph"
	"github.com/citegraph/layoutd/pkg/layout"
	"github.com/citegraph/layoutd/pkg/store"
)

func chainEdges(ids ...string) []graph.Edge {
	edges := make([]graph.Edge, 0, len(ids)-1)
	for i := 1; i < len(ids); i++ {
		edges = append(edges, graph.Edge{Source: ids[i-1], Target: ids[i], Weight: 1.0})
	}
	return edges
}

func positionsByID(positions []layout.Position) map[string]layout.Position {
	out := make(map[string]layout.Position, len(positions))
	for _, p := range positions {
		out[p.VertexID] = p
	}
	return out
}

func TestRunChain(t *testing.T) {
	source := store.NewMemorySource(chainEdges("a", "b", "c", "d"))
	sink := store.NewMemorySink()

	result, err := NewRunner(source, sink, nil).Run(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.TotalEdges != 3 || result.VertexCount != 4 {
		t.Errorf("edges/vertices = %d/%d, want 3/4", result.TotalEdges, result.VertexCount)
	}
	if !result.Converged || result.InvalidEdges != 0 {
		t.Errorf("converged=%v invalid=%d, want true/0", result.Converged, result.InvalidEdges)
	}
	if result.JobID == "" {
		t.Error("JobID should be set")
	}

	byID := positionsByID(sink.Positions())
	for i, id := range []string{"a", "b", "c", "d"} {
		if byID[id].Layer != i {
			t.Errorf("layer(%s) = %d, want %d", id, byID[id].Layer, i)
		}
	}
}

func TestRunBatchSizeInvariance(t *testing.T) {
	// The saved layout must not depend on how the store paginates.
	edges := []graph.Edge{
		{Source: "a", Target: "b", Weight: 1},
		{Source: "a", Target: "c", Weight: 1},
		{Source: "b", Target: "d", Weight: 1},
		{Source: "c", Target: "d", Weight: 1},
		{Source: "d", Target: "e", Weight: 1},
		{Source: "e", Target: "f", Weight: 1},
		{Source: "b", Target: "f", Weight: 1},
	}

	var reference []layout.Position
	for _, batchSize := range []int64{1, 2, 3, 100} {
		source := store.NewMemorySource(edges)
		sink := store.NewMemorySink()

		opts := DefaultOptions()
		opts.BatchSize = batchSize
		if _, err := NewRunner(source, sink, nil).Run(context.Background(), opts); err != nil {
			t.Fatalf("Run(batch=%d): %v", batchSize, err)
		}

		got := sink.Positions()
		if reference == nil {
			reference = got
			continue
		}
		if len(got) != len(reference) {
			t.Fatalf("batch=%d placed %d vertices, want %d", batchSize, len(got), len(reference))
		}
		for i := range got {
			if got[i] != reference[i] {
				t.Errorf("batch=%d position %d = %+v, want %+v", batchSize, i, got[i], reference[i])
			}
		}
	}
}

func TestRunEmptySourceFails(t *testing.T) {
	source := store.NewMemorySource(nil)
	sink := store.NewMemorySink()

	_, err := NewRunner(source, sink, nil).Run(context.Background(), DefaultOptions())
	if err == nil {
		t.Fatal("Run on empty source should fail")
	}
	if !errors.Is(err, errors.ErrCodeEmptyGraph) {
		t.Errorf("code = %q, want EMPTY_GRAPH", errors.GetCode(err))
	}
}

func TestRunRoutesEdges(t *testing.T) {
	source := store.NewMemorySource(chainEdges("a", "b", "c"))
	sink := store.NewMemorySink()

	result, err := NewRunner(source, sink, nil).Run(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.RoutingStats.TotalEdges != 2 || len(result.EdgePaths) != 2 {
		t.Errorf("routed %d edges with %d paths, want 2/2",
			result.RoutingStats.TotalEdges, len(result.EdgePaths))
	}
}

func TestRunRoutingDisabled(t *testing.T) {
	source := store.NewMemorySource(chainEdges("a", "b", "c"))
	sink := store.NewMemorySink()

	opts := DefaultOptions()
	opts.RouteEdges = false
	result, err := NewRunner(source, sink, nil).Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.EdgePaths) != 0 || result.RoutingStats.TotalEdges != 0 {
		t.Errorf("routing should be skipped, got %d paths", len(result.EdgePaths))
	}
}

func TestRunCyclicInputDegrades(t *testing.T) {
	edges := append(chainEdges("a", "b", "c"), graph.Edge{Source: "c", Target: "a", Weight: 1})
	source := store.NewMemorySource(edges)
	sink := store.NewMemorySink()

	result, err := NewRunner(source, sink, nil).Run(context.Background(), DefaultOptions())
	if err != nil {
		t.Fatalf("cyclic input should degrade, got %v", err)
	}
	if result.Converged {
		t.Error("Converged should be false on cyclic input")
	}
	if result.InvalidEdges == 0 {
		t.Error("validation should flag mis-ordered edges")
	}
	if len(sink.Positions()) == 0 {
		t.Error("partial layout should still be saved")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := store.NewMemorySource(chainEdges("a", "b", "c"))
	sink := store.NewMemorySink()

	_, err := NewRunner(source, sink, nil).Run(ctx, DefaultOptions())
	if err == nil {
		t.Fatal("Run with cancelled context should fail")
	}
	if !errors.Is(err, errors.ErrCodeTimeout) {
		t.Errorf("code = %q, want TIMEOUT", errors.GetCode(err))
	}
	if sink.Saves() != 0 {
		t.Error("cancelled job should not save positions")
	}
}
