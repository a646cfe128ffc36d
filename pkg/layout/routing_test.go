package layout

import (
	"testing"

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

func TestRouteAdjacentLayersStraight(t *testing.T) {
	cfg := DefaultConfig()
	g := buildGraph(t, [][2]string{{"a", "b"}})
	positions := PlaceAll(map[string]int{"a": 0, "b": 1}, cfg)

	paths, stats := RouteEdges(positions, g, cfg, DefaultRoutingOptions(), nil)

	if len(paths) != 1 || stats.StraightLines != 1 || stats.Polylines != 0 {
		t.Fatalf("paths=%d straight=%d polylines=%d, want 1/1/0",
			len(paths), stats.StraightLines, stats.Polylines)
	}
	points := paths[0].Points
	if len(points) != 2 {
		t.Fatalf("straight path has %d points, want 2", len(points))
	}
	if !almostEqual(points[0].X, cfg.BlockWidth) || !almostEqual(points[0].Y, cfg.BlockHeight/2) {
		t.Errorf("start = %+v, want source right edge middle", points[0])
	}
	wantEndX := cfg.BlockWidth + cfg.HorizontalGap
	if !almostEqual(points[1].X, wantEndX) {
		t.Errorf("end X = %v, want %v", points[1].X, wantEndX)
	}
}

func TestRouteLongEdgePolyline(t *testing.T) {
	cfg := DefaultConfig()
	g := buildGraph(t, [][2]string{{"a", "d"}})
	// a at layer 0, d three layers away; span 3 yields 2 intermediates.
	positions := PlaceAll(map[string]int{"a": 0, "d": 3}, cfg)

	paths, stats := RouteEdges(positions, g, cfg, DefaultRoutingOptions(), nil)

	if stats.Polylines != 1 {
		t.Fatalf("polylines = %d, want 1", stats.Polylines)
	}
	points := paths[0].Points
	if len(points) != 4 {
		t.Fatalf("path has %d points, want span+1 = 4", len(points))
	}

	start, end := points[0], points[len(points)-1]
	if !almostEqual(start.X, cfg.BlockWidth) {
		t.Errorf("start X = %v, want %v", start.X, cfg.BlockWidth)
	}
	if !almostEqual(end.X, 3*(cfg.BlockWidth+cfg.HorizontalGap)) {
		t.Errorf("end X = %v, want target left edge", end.X)
	}

	// Intermediates are evenly interpolated between start and end.
	xStep := (end.X - start.X) / 3
	for i := 1; i <= 2; i++ {
		if !almostEqual(points[i].X, start.X+xStep*float64(i)) {
			t.Errorf("waypoint %d X = %v, want %v", i, points[i].X, start.X+xStep*float64(i))
		}
	}
}

func TestRoutePolylinesDisabled(t *testing.T) {
	cfg := DefaultConfig()
	g := buildGraph(t, [][2]string{{"a", "d"}})
	positions := PlaceAll(map[string]int{"a": 0, "d": 3}, cfg)

	paths, stats := RouteEdges(positions, g, cfg, RoutingOptions{UsePolylines: false, PolylineThreshold: 2}, nil)

	if stats.Polylines != 0 || len(paths[0].Points) != 2 {
		t.Errorf("disabled polylines still produced %d-point path", len(paths[0].Points))
	}
}

func TestRouteSkipsUnplacedEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	g := buildGraph(t, [][2]string{{"a", "b"}, {"a", "c"}})
	// c is not placed.
	positions := PlaceAll(map[string]int{"a": 0, "b": 1}, cfg)

	paths, stats := RouteEdges(positions, g, cfg, DefaultRoutingOptions(), nil)

	if len(paths) != 1 || stats.Skipped != 1 {
		t.Errorf("paths=%d skipped=%d, want 1/1", len(paths), stats.Skipped)
	}
}

func TestPathLength(t *testing.T) {
	length := PathLength([]Point{{X: 0, Y: 0}, {X: 3, Y: 4}})
	if !almostEqual(length, 5) {
		t.Errorf("PathLength = %v, want 5", length)
	}
}
