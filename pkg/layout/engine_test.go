package layout

import (
	"context"
	"testing"

	"github.com/citegraph/layoutd/pkg/errors"
	"github.com/citegraph/layoutd/pkg/graph"
)

func edgeList(pairs ...[2]string) []graph.Edge {
	out := make([]graph.Edge, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, graph.Edge{Source: p[0], Target: p[1], Weight: 1.0})
	}
	return out
}

func TestComputeRejectsEmptyInput(t *testing.T) {
	_, err := NewEngine(nil).Compute(context.Background(), nil, DefaultOptions())
	if err == nil {
		t.Fatal("Compute on empty input should fail")
	}
	if !errors.Is(err, errors.ErrCodeEmptyGraph) {
		t.Errorf("code = %q, want EMPTY_GRAPH", errors.GetCode(err))
	}
}

func TestComputeRejectsAllInvalidEdges(t *testing.T) {
	edges := []graph.Edge{
		{Source: "a", Target: "a"},
		{Source: "", Target: "b"},
	}
	_, err := NewEngine(nil).Compute(context.Background(), edges, DefaultOptions())
	if !errors.Is(err, errors.ErrCodeEmptyGraph) {
		t.Errorf("code = %q, want EMPTY_GRAPH", errors.GetCode(err))
	}
}

func TestComputeChain(t *testing.T) {
	res, err := NewEngine(nil).Compute(context.Background(),
		edgeList([2]string{"a", "b"}, [2]string{"b", "c"}), DefaultOptions())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if res.Layers["a"] != 0 || res.Layers["b"] != 1 || res.Layers["c"] != 2 {
		t.Errorf("layers = %v, want a:0 b:1 c:2", res.Layers)
	}
	if len(res.Positions) != 3 {
		t.Errorf("positions = %d, want 3", len(res.Positions))
	}
	if len(res.EdgePaths) != 2 {
		t.Errorf("edge paths = %d, want 2", len(res.EdgePaths))
	}
	if !res.Stats.Converged {
		t.Error("chain layout should converge")
	}
	if res.Stats.LayerCount != 3 || res.Stats.MaxLayer != 2 {
		t.Errorf("layer stats = %d/%d, want 3/2", res.Stats.LayerCount, res.Stats.MaxLayer)
	}
	if res.Metadata.LayoutID == "" || res.Metadata.Algorithm != "global" {
		t.Errorf("metadata = %+v", res.Metadata)
	}
}

func TestComputeCountsDroppedEdges(t *testing.T) {
	edges := []graph.Edge{
		{Source: "a", Target: "b", Weight: 1},
		{Source: "a", Target: "b", Weight: 1},
		{Source: "c", Target: "c", Weight: 1},
		{Source: "", Target: "d", Weight: 1},
	}
	res, err := NewEngine(nil).Compute(context.Background(), edges, DefaultOptions())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	diag := res.Stats.Diagnostics
	if diag.Duplicates != 1 || diag.SelfLoops != 1 || diag.EmptyEndpoints != 1 {
		t.Errorf("diagnostics = %+v, want 1 of each", diag)
	}
	if res.Stats.EdgeCount != 1 {
		t.Errorf("EdgeCount = %d, want 1", res.Stats.EdgeCount)
	}
}

func TestComputeAlgorithmsAgreeOnDAG(t *testing.T) {
	edges := edgeList(
		[2]string{"a", "b"}, [2]string{"a", "c"},
		[2]string{"b", "d"}, [2]string{"c", "d"}, [2]string{"d", "e"},
	)

	globalOpts := DefaultOptions()
	lpOpts := DefaultOptions()
	lpOpts.Algorithm = "longest_path"

	globalRes, err := NewEngine(nil).Compute(context.Background(), edges, globalOpts)
	if err != nil {
		t.Fatalf("global: %v", err)
	}
	lpRes, err := NewEngine(nil).Compute(context.Background(), edges, lpOpts)
	if err != nil {
		t.Fatalf("longest_path: %v", err)
	}

	for id, l := range globalRes.Layers {
		if lpRes.Layers[id] != l {
			t.Errorf("layer(%s): global=%d longest_path=%d", id, l, lpRes.Layers[id])
		}
	}
	if lpRes.Metadata.Algorithm != "longest_path" {
		t.Errorf("algorithm = %s, want longest_path", lpRes.Metadata.Algorithm)
	}
}

func TestComputeLongestPathFailsOnCycle(t *testing.T) {
	opts := DefaultOptions()
	opts.Algorithm = "longest_path"

	_, err := NewEngine(nil).Compute(context.Background(),
		edgeList([2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"c", "a"}), opts)
	if err == nil {
		t.Fatal("longest_path on a cycle should fail")
	}
	if !errors.Is(err, errors.ErrCodeCyclicGraph) {
		t.Errorf("code = %q, want CYCLIC_GRAPH", errors.GetCode(err))
	}
}

func TestComputeGlobalDegradesOnCycle(t *testing.T) {
	res, err := NewEngine(nil).Compute(context.Background(),
		edgeList([2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"c", "a"}),
		DefaultOptions())
	if err != nil {
		t.Fatalf("global on a cycle should degrade, got %v", err)
	}
	if res.Stats.Converged {
		t.Error("Converged should be false on cyclic input")
	}
	if len(res.Positions) == 0 {
		t.Error("partial layout should still place vertices")
	}
}

func TestComputeIsolatedVerticesViaBuilder(t *testing.T) {
	// A vertex mentioned only as an endpoint of dropped edges never reaches
	// the graph; isolated vertices can only come from the builder, so the
	// engine places every vertex the graph knows.
	res, err := NewEngine(nil).Compute(context.Background(),
		edgeList([2]string{"a", "b"}), DefaultOptions())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(res.Positions) != res.Stats.VertexCount {
		t.Errorf("placed %d of %d vertices", len(res.Positions), res.Stats.VertexCount)
	}
}

func TestComputeMetadataEchoesCompatOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.EnableSIMD = true
	opts.EnableGPU = true
	opts.MemoryStrategy = "compact"

	res, err := NewEngine(nil).Compute(context.Background(),
		edgeList([2]string{"a", "b"}), opts)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	md := res.Metadata
	if !md.EnableSIMD || !md.EnableGPU || md.MemoryStrategy != "compact" {
		t.Errorf("metadata does not echo compat options: %+v", md)
	}
}

func TestComputeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(nil).Compute(ctx, edgeList([2]string{"a", "b"}), DefaultOptions())
	if err == nil {
		t.Fatal("Compute with cancelled context should fail")
	}
	if !errors.Is(err, errors.ErrCodeTimeout) {
		t.Errorf("code = %q, want TIMEOUT", errors.GetCode(err))
	}
}
