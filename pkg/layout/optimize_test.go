package layout

import (
	"testing"
)

func TestCompactClosesGaps(t *testing.T) {
	cfg := DefaultConfig()
	pitch := cfg.BlockHeight + cfg.VerticalGap
	positions := []Position{
		{VertexID: "a", Layer: 0, Level: 0, Y: 0},
		{VertexID: "b", Layer: 0, Level: 3, Y: 3 * pitch},
		{VertexID: "c", Layer: 0, Level: 5, Y: 5 * pitch},
	}

	Optimize(positions, cfg, DefaultOptimizeOptions(), nil)

	for i, p := range positions {
		if p.Level != i {
			t.Errorf("level of %s = %d, want %d", p.VertexID, p.Level, i)
		}
		if !almostEqual(p.Y, float64(i)*pitch) {
			t.Errorf("Y of %s = %v, want %v", p.VertexID, p.Y, float64(i)*pitch)
		}
	}
}

func TestCompactPreservesOrder(t *testing.T) {
	cfg := DefaultConfig()
	pitch := cfg.BlockHeight + cfg.VerticalGap
	positions := []Position{
		{VertexID: "low", Layer: 0, Level: 4, Y: 4 * pitch},
		{VertexID: "high", Layer: 0, Level: 1, Y: 1 * pitch},
	}

	Optimize(positions, cfg, DefaultOptimizeOptions(), nil)

	byID := make(map[string]Position)
	for _, p := range positions {
		byID[p.VertexID] = p
	}
	if byID["high"].Level != 0 || byID["low"].Level != 1 {
		t.Errorf("vertical order changed: high=%d low=%d", byID["high"].Level, byID["low"].Level)
	}
}

func TestCompactNoGapsIsNoop(t *testing.T) {
	cfg := DefaultConfig()
	pitch := cfg.BlockHeight + cfg.VerticalGap
	positions := []Position{
		{VertexID: "a", Layer: 0, Level: 0, Y: 0},
		{VertexID: "b", Layer: 0, Level: 1, Y: pitch},
	}
	if compact(positions, cfg) {
		t.Error("compact reported improvement on a gap-free layout")
	}
}

func TestCountCrossingsParallelEdges(t *testing.T) {
	g := buildGraph(t, [][2]string{{"a", "c"}, {"b", "d"}})
	orders := map[int][]string{0: {"a", "b"}, 1: {"c", "d"}}

	if n := CountCrossings(g, orders); n != 0 {
		t.Errorf("parallel edges crossings = %d, want 0", n)
	}
}

func TestCountCrossingsSwappedEdges(t *testing.T) {
	// a is above b, but a connects to the lower target: one crossing.
	g := buildGraph(t, [][2]string{{"a", "d"}, {"b", "c"}})
	orders := map[int][]string{0: {"a", "b"}, 1: {"c", "d"}}

	if n := CountCrossings(g, orders); n != 1 {
		t.Errorf("crossings = %d, want 1", n)
	}
}

func TestCountCrossingsCompleteBipartite(t *testing.T) {
	// K2,2 has exactly one crossing in any ordering.
	g := buildGraph(t, [][2]string{{"a", "c"}, {"a", "d"}, {"b", "c"}, {"b", "d"}})
	orders := map[int][]string{0: {"a", "b"}, 1: {"c", "d"}}

	if n := CountCrossings(g, orders); n != 1 {
		t.Errorf("K2,2 crossings = %d, want 1", n)
	}
}

func TestCountCrossingsSkipsNonAdjacentLayers(t *testing.T) {
	g := buildGraph(t, [][2]string{{"a", "b"}})
	orders := map[int][]string{0: {"a"}, 2: {"b"}}

	if n := CountCrossings(g, orders); n != 0 {
		t.Errorf("non-adjacent layers crossings = %d, want 0", n)
	}
}

func TestOrderLayersDeterministic(t *testing.T) {
	layers := map[string]int{"z": 0, "a": 0, "m": 1}
	orders := OrderLayers(layers)

	if got := orders[0]; len(got) != 2 || got[0] != "a" || got[1] != "z" {
		t.Errorf("layer 0 order = %v, want [a z]", got)
	}
}
