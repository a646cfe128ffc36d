package toposort

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/citegraph/layoutd/pkg/errors"
	"github.com/citegraph/layoutd/pkg/graph"
)

func buildGraph(t *testing.T, edges [][2]string) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	for _, e := range edges {
		if err := b.AddEdge(e[0], e[1], 1.0); err != nil {
			t.Fatal(err)
		}
	}
	return b.Build()
}

func TestSortChain(t *testing.T) {
	g := buildGraph(t, [][2]string{{"a", "b"}, {"b", "c"}})

	res, err := New(2, 16).Sort(context.Background(), g)
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}
	if err := Validate(g, res.Order); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Position["a"] >= res.Position["b"] || res.Position["b"] >= res.Position["c"] {
		t.Errorf("order violated: %v", res.Order)
	}
	if res.Levels != 3 {
		t.Errorf("Levels = %d, want 3", res.Levels)
	}
}

func TestSortDiamond(t *testing.T) {
	g := buildGraph(t, [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}})

	res, err := New(4, 2).Sort(context.Background(), g)
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}
	if err := Validate(g, res.Order); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Order[0] != "a" {
		t.Errorf("first vertex = %s, want a", res.Order[0])
	}
	if res.Order[3] != "d" {
		t.Errorf("last vertex = %s, want d", res.Order[3])
	}
}

func TestSortCyclicFails(t *testing.T) {
	g := buildGraph(t, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}})

	_, err := New(2, 16).Sort(context.Background(), g)
	if err == nil {
		t.Fatal("Sort on a 3-cycle should fail")
	}
	if !errors.Is(err, errors.ErrCodeCyclicGraph) {
		t.Errorf("code = %q, want CYCLIC_GRAPH", errors.GetCode(err))
	}
}

func TestSortLargeParallel(t *testing.T) {
	// Layered graph: 50 layers of 20 vertices, each fully connected to the
	// next layer. Exercises parallel relaxation with several chunks.
	b := graph.NewBuilder()
	const layers, width = 50, 20
	for l := 0; l < layers-1; l++ {
		for i := 0; i < width; i++ {
			for j := 0; j < width; j++ {
				src := fmt.Sprintf("v%d_%d", l, i)
				dst := fmt.Sprintf("v%d_%d", l+1, j)
				if err := b.AddEdge(src, dst, 1.0); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	g := b.Build()

	res, err := New(8, 64).Sort(context.Background(), g)
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}
	if err := Validate(g, res.Order); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Levels != layers {
		t.Errorf("Levels = %d, want %d", res.Levels, layers)
	}
	if len(res.Order) != layers*width {
		t.Errorf("ordered %d vertices, want %d", len(res.Order), layers*width)
	}
}

func TestSortWorkerCountInvariance(t *testing.T) {
	// The set of vertices per level must not depend on worker count.
	edges := [][2]string{
		{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}, {"d", "e"},
		{"a", "f"}, {"f", "e"},
	}
	g := buildGraph(t, edges)

	for _, workers := range []int{1, 2, 8} {
		res, err := New(workers, 1).Sort(context.Background(), g)
		if err != nil {
			t.Fatalf("Sort(workers=%d): %v", workers, err)
		}
		if err := Validate(g, res.Order); err != nil {
			t.Errorf("Validate(workers=%d): %v", workers, err)
		}
	}
}

func TestSortBoundedGoroutines(t *testing.T) {
	// A wide star with chunk size 1 pushes thousands of chunks through the
	// pool; goroutine count must track the configured worker count, not the
	// chunk count.
	b := graph.NewBuilder()
	for i := 0; i < 2000; i++ {
		if err := b.AddEdge(fmt.Sprintf("src%d", i), "sink", 1.0); err != nil {
			t.Fatal(err)
		}
	}
	g := b.Build()

	const workers = 2
	baseline := runtime.NumGoroutine()

	var peak atomic.Int64
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if n := int64(runtime.NumGoroutine()); n > peak.Load() {
				peak.Store(n)
			}
			runtime.Gosched()
		}
	}()

	if _, err := New(workers, 1).Sort(context.Background(), g); err != nil {
		t.Fatalf("Sort: %v", err)
	}
	close(done)
	wg.Wait()

	// baseline + sampler + workers, with slack for runtime goroutines.
	limit := int64(baseline + 1 + workers + 4)
	if p := peak.Load(); p > limit {
		t.Errorf("goroutine peak = %d, want <= %d with %d workers", p, limit, workers)
	}
}

func TestValidateDetectsViolation(t *testing.T) {
	g := buildGraph(t, [][2]string{{"a", "b"}})

	if err := Validate(g, []string{"b", "a"}); err == nil {
		t.Error("Validate should reject a reversed order")
	}
	if err := Validate(g, []string{"a"}); err == nil {
		t.Error("Validate should reject an incomplete order")
	}
}
