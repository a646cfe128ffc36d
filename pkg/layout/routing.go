package layout

import (
	"math"

	"github.com/charmbracelet/log"

	"github.com/citegraph/layoutd/pkg/graph"
)

// RoutingOptions controls edge path computation.
type RoutingOptions struct {
	// UsePolylines enables waypoint interpolation for long edges. When
	// false every edge is a straight segment.
	UsePolylines bool `json:"use_polylines" toml:"use_polylines"`

	// PolylineThreshold is the minimum layer span before an edge gets
	// interpolated waypoints instead of a straight segment.
	PolylineThreshold int `json:"polyline_threshold" toml:"polyline_threshold"`
}

// DefaultRoutingOptions returns the standard routing behavior: polylines
// for edges spanning two or more layers.
func DefaultRoutingOptions() RoutingOptions {
	return RoutingOptions{UsePolylines: true, PolylineThreshold: 2}
}

// Point is a single waypoint on an edge path.
type Point struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// EdgePath is the routed path of one edge, from the right edge of the
// source block to the left edge of the target block.
type EdgePath struct {
	Source string  `json:"source_id" bson:"source_id"`
	Target string  `json:"target_id" bson:"target_id"`
	Points []Point `json:"points" bson:"points"`
}

// RoutingStats summarizes one routing pass.
type RoutingStats struct {
	TotalEdges    int     `json:"total_edges"`
	StraightLines int     `json:"straight_lines"`
	Polylines     int     `json:"polylines"`
	AvgWaypoints  float64 `json:"avg_waypoints"`
	Skipped       int     `json:"skipped"`
}

// RouteEdges computes a path for every graph edge whose endpoints are both
// placed. Edges with an unplaced endpoint are counted in Stats.Skipped and
// omitted; this happens when the layer map is partial after a convergence
// failure.
func RouteEdges(positions []Position, g *graph.Graph, cfg Config, opts RoutingOptions, logger *log.Logger) ([]EdgePath, RoutingStats) {
	cfg = cfg.normalize()

	posByID := make(map[string]*Position, len(positions))
	for i := range positions {
		posByID[positions[i].VertexID] = &positions[i]
	}

	var (
		paths     []EdgePath
		stats     RoutingStats
		waypoints int
	)

	for i := range positions {
		source := &positions[i]
		outs, _ := g.Outgoing(source.VertexID)
		for _, targetID := range outs {
			target, ok := posByID[targetID]
			if !ok {
				stats.Skipped++
				continue
			}

			points := routeSingleEdge(source, target, cfg, opts)
			paths = append(paths, EdgePath{
				Source: source.VertexID,
				Target: targetID,
				Points: points,
			})

			stats.TotalEdges++
			waypoints += len(points)
			if len(points) > 2 {
				stats.Polylines++
			} else {
				stats.StraightLines++
			}
		}
	}

	if stats.TotalEdges > 0 {
		stats.AvgWaypoints = float64(waypoints) / float64(stats.TotalEdges)
	}
	if logger != nil {
		logger.Debug("edge routing complete",
			"edges", stats.TotalEdges,
			"straight", stats.StraightLines,
			"polylines", stats.Polylines,
			"skipped", stats.Skipped)
	}
	return paths, stats
}

// routeSingleEdge produces the waypoints for one edge. Short edges are a
// straight segment; edges spanning at least the threshold get span-1
// evenly interpolated intermediate waypoints, one per crossed layer.
func routeSingleEdge(source, target *Position, cfg Config, opts RoutingOptions) []Point {
	start := Point{X: source.X + cfg.BlockWidth, Y: source.Y + cfg.BlockHeight/2}
	end := Point{X: target.X, Y: target.Y + cfg.BlockHeight/2}

	span := target.Layer - source.Layer
	if span < 0 {
		span = -span
	}
	if !opts.UsePolylines || span < opts.PolylineThreshold {
		return []Point{start, end}
	}

	intermediates := span - 1
	points := make([]Point, 0, intermediates+2)
	points = append(points, start)

	xStep := (end.X - start.X) / float64(intermediates+1)
	yStep := (end.Y - start.Y) / float64(intermediates+1)
	for i := 1; i <= intermediates; i++ {
		points = append(points, Point{
			X: start.X + xStep*float64(i),
			Y: start.Y + yStep*float64(i),
		})
	}

	return append(points, end)
}

// PathLength returns the euclidean length of an edge path.
func PathLength(points []Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		dx := points[i].X - points[i-1].X
		dy := points[i].Y - points[i-1].Y
		total += math.Sqrt(dx*dx + dy*dy)
	}
	return total
}
