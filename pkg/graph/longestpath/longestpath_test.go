package longestpath

import (
	"context"
	"testing"

	"github.com/citegraph/layoutd/pkg/errors"
	"github.com/citegraph/layoutd/pkg/graph"
	"github.com/citegraph/layoutd/pkg/graph/toposort"
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

func order(t *testing.T, g *graph.Graph) []string {
	t.Helper()
	res, err := toposort.New(1, 16).Sort(context.Background(), g)
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}
	return res.Order
}

func TestFindChain(t *testing.T) {
	g := buildGraph(t, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}})

	res := Find(g, order(t, g))

	if res.Length != 4 {
		t.Fatalf("Length = %d, want 4", res.Length)
	}
	want := []string{"a", "b", "c", "d"}
	for i, id := range want {
		if res.Path[i] != id {
			t.Errorf("Path[%d] = %s, want %s", i, res.Path[i], id)
		}
	}
	if err := ValidatePath(g, res.Path); err != nil {
		t.Errorf("ValidatePath: %v", err)
	}
}

func TestFindBranching(t *testing.T) {
	// Diamond of depth 3 plus a longer side chain a -> f -> g -> h -> i.
	g := buildGraph(t, [][2]string{
		{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}, {"d", "e"},
		{"a", "f"}, {"f", "g"}, {"g", "h"}, {"h", "i"},
	})

	res := Find(g, order(t, g))

	if res.Length != 5 {
		t.Fatalf("Length = %d, want 5", res.Length)
	}
	if res.Path[0] != "a" {
		t.Errorf("Path starts at %s, want a", res.Path[0])
	}
	if err := ValidatePath(g, res.Path); err != nil {
		t.Errorf("ValidatePath: %v", err)
	}
}

func TestFindEmptyOrder(t *testing.T) {
	g := buildGraph(t, [][2]string{{"a", "b"}})
	res := Find(g, nil)
	if res.Length != 0 || res.Path != nil {
		t.Errorf("Find on empty order = %+v, want zero result", res)
	}
}

func TestValidatePathRejectsNonEdge(t *testing.T) {
	g := buildGraph(t, [][2]string{{"a", "b"}, {"b", "c"}})

	err := ValidatePath(g, []string{"a", "c"})
	if err == nil {
		t.Fatal("ValidatePath should reject a -> c")
	}
	if !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("code = %q, want INVALID_PATH", errors.GetCode(err))
	}
}
