package layout

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/citegraph/layoutd/pkg/buildinfo"
	"github.com/citegraph/layoutd/pkg/errors"
	"github.com/citegraph/layoutd/pkg/graph"
	"github.com/citegraph/layoutd/pkg/graph/toposort"
	"github.com/citegraph/layoutd/pkg/layer"
	"github.com/citegraph/layoutd/pkg/observability"
)

// Algorithm assigns a layer to every vertex of a graph.
type Algorithm interface {
	Name() string
	AssignLayers(ctx context.Context, g *graph.Graph) (map[string]int, error)
}

// GlobalAlgorithm is the primary layering strategy: the incremental
// propagation engine fed the whole graph as a single batch. Using the same
// engine for one-shot and batched inputs keeps the two paths convergent by
// construction.
type GlobalAlgorithm struct {
	Logger *log.Logger
}

// Name implements Algorithm.
func (GlobalAlgorithm) Name() string { return "global" }

// AssignLayers implements Algorithm. On a convergence failure the partial
// layer map is returned alongside the CONVERGENCE_NOT_REACHED error.
func (a GlobalAlgorithm) AssignLayers(ctx context.Context, g *graph.Graph) (map[string]int, error) {
	state := layer.NewState(a.Logger)

	var batch []graph.Edge
	for _, id := range g.Vertices() {
		outs, _ := g.Outgoing(id)
		for _, target := range outs {
			w, _ := g.Weight(id, target)
			batch = append(batch, graph.Edge{Source: id, Target: target, Weight: w})
		}
	}
	state.AddBatch(batch)

	_, err := state.PropagateUntilConvergence()
	layers := state.Layers()

	// Vertices without edges never enter the propagation state.
	for _, id := range g.IsolatedVertices() {
		layers[id] = 0
	}
	return layers, err
}

// LongestPathAlgorithm is the compatibility layering strategy: a vertex's
// layer is the length of the longest chain reaching it, computed by
// dynamic programming over a topological order. On a DAG it agrees with
// GlobalAlgorithm; it fails outright on cyclic input instead of degrading
// to a partial result.
type LongestPathAlgorithm struct {
	Workers   int
	ChunkSize int
}

// Name implements Algorithm.
func (LongestPathAlgorithm) Name() string { return "longest_path" }

// AssignLayers implements Algorithm.
func (a LongestPathAlgorithm) AssignLayers(ctx context.Context, g *graph.Graph) (map[string]int, error) {
	res, err := toposort.New(a.Workers, a.ChunkSize).Sort(ctx, g)
	if err != nil {
		return nil, err
	}

	layers := make(map[string]int, len(res.Order))
	for _, id := range res.Order {
		layers[id] = 0
	}
	for _, id := range res.Order {
		outs, _ := g.Outgoing(id)
		for _, target := range outs {
			if d := layers[id] + 1; d > layers[target] {
				layers[target] = d
			}
		}
	}
	return layers, nil
}

// Options bundles everything that shapes one layout computation.
type Options struct {
	// Algorithm selects the layering strategy: "global" (default) or
	// "longest_path".
	Algorithm string `json:"algorithm,omitempty" toml:"algorithm"`

	Placement Config          `json:"placement" toml:"placement"`
	Optimize  OptimizeOptions `json:"optimize" toml:"optimize"`
	Routing   RoutingOptions  `json:"routing" toml:"routing"`

	// Workers and ChunkSize bound parallelism in the layering stage.
	Workers   int `json:"workers,omitempty" toml:"workers"`
	ChunkSize int `json:"chunk_size,omitempty" toml:"chunk_size"`

	// EnableSIMD, EnableGPU, and MemoryStrategy are accepted for wire
	// compatibility with older clients. They do not change the result and
	// are echoed back in the metadata.
	EnableSIMD     bool   `json:"enable_simd,omitempty" toml:"enable_simd"`
	EnableGPU      bool   `json:"enable_gpu,omitempty" toml:"enable_gpu"`
	MemoryStrategy string `json:"memory_strategy,omitempty" toml:"memory_strategy"`
}

// DefaultOptions returns the standard layout options.
func DefaultOptions() Options {
	return Options{
		Algorithm: "global",
		Placement: DefaultConfig(),
		Optimize:  DefaultOptimizeOptions(),
		Routing:   DefaultRoutingOptions(),
		Workers:   4,
	}
}

// Diagnostics counts input edges dropped before layout.
type Diagnostics struct {
	EmptyEndpoints int `json:"empty_endpoints"`
	SelfLoops      int `json:"self_loops"`
	Duplicates     int `json:"duplicates"`
}

// Timings records the wall-clock duration of each stage.
type Timings struct {
	Layering     time.Duration `json:"layering"`
	Placement    time.Duration `json:"placement"`
	Optimization time.Duration `json:"optimization"`
	Routing      time.Duration `json:"routing"`
	Total        time.Duration `json:"total"`
}

// ComputeStats summarizes one layout computation.
type ComputeStats struct {
	VertexCount       int          `json:"vertex_count"`
	EdgeCount         int          `json:"edge_count"`
	MaxLayer          int          `json:"max_layer"`
	LayerCount        int          `json:"layer_count"`
	Crossings         int          `json:"crossings"`
	Width             float64      `json:"width"`
	Height            float64      `json:"height"`
	VerticesPerSecond float64      `json:"vertices_per_second"`
	SpaceEfficiency   float64      `json:"space_efficiency"`
	Converged         bool         `json:"converged"`
	Diagnostics       Diagnostics  `json:"diagnostics"`
	Routing           RoutingStats `json:"routing"`
	Timings           Timings      `json:"timings"`
}

// Metadata identifies one layout computation.
type Metadata struct {
	LayoutID       string    `json:"layout_id"`
	Algorithm      string    `json:"algorithm"`
	Version        string    `json:"version"`
	GeneratedAt    time.Time `json:"generated_at"`
	EnableSIMD     bool      `json:"enable_simd,omitempty"`
	EnableGPU      bool      `json:"enable_gpu,omitempty"`
	MemoryStrategy string    `json:"memory_strategy,omitempty"`
}

// Result is a complete computed layout.
type Result struct {
	Positions []Position     `json:"positions"`
	EdgePaths []EdgePath     `json:"edge_paths"`
	Layers    map[string]int `json:"layers"`
	Stats     ComputeStats   `json:"stats"`
	Metadata  Metadata       `json:"metadata"`
}

// Engine runs the full layout pipeline over an in-memory edge list:
// layering, placement, optimization, and routing.
type Engine struct {
	logger *log.Logger
}

// NewEngine creates an Engine. A nil logger disables logging.
func NewEngine(logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{logger: logger}
}

// Compute lays out the graph described by edges. Invalid edges (empty
// endpoints, self-loops, duplicates) are dropped and counted in the
// diagnostics rather than failing the whole computation; an input with no
// usable edge at all is an EMPTY_GRAPH error. A layering convergence
// failure degrades to a partial layout with Stats.Converged=false.
func (e *Engine) Compute(ctx context.Context, edges []graph.Edge, opts Options) (*Result, error) {
	if len(edges) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyGraph, "no edges to lay out")
	}

	g, diag, err := e.buildGraph(edges)
	if err != nil {
		return nil, err
	}

	algo := e.resolveAlgorithm(opts)
	cfg := opts.Placement.normalize()

	hooks := observability.Layout()
	hooks.OnLayoutStart(ctx, algo.Name(), g.VertexCount(), g.EdgeCount())

	start := time.Now()
	var timings Timings

	// Layering.
	stageStart := time.Now()
	hooks.OnStageStart(ctx, "layering", g.VertexCount())
	layers, layerErr := algo.AssignLayers(ctx, g)
	timings.Layering = time.Since(stageStart)
	hooks.OnStageComplete(ctx, "layering", timings.Layering, layerErr)

	converged := true
	if layerErr != nil {
		if !errors.Is(layerErr, errors.ErrCodeConvergence) {
			hooks.OnLayoutComplete(ctx, algo.Name(), time.Since(start), layerErr)
			return nil, layerErr
		}
		converged = false
		e.logger.Warn("layering did not converge, producing partial layout",
			"algorithm", algo.Name(), "error", layerErr)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTimeout, err, "layout cancelled after layering")
	}

	// Placement.
	stageStart = time.Now()
	hooks.OnStageStart(ctx, "placement", len(layers))
	positions := PlaceAll(layers, cfg)
	timings.Placement = time.Since(stageStart)
	hooks.OnStageComplete(ctx, "placement", timings.Placement, nil)

	// Optimization.
	stageStart = time.Now()
	hooks.OnStageStart(ctx, "optimization", len(positions))
	Optimize(positions, cfg, opts.Optimize, e.logger)
	timings.Optimization = time.Since(stageStart)
	hooks.OnStageComplete(ctx, "optimization", timings.Optimization, nil)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTimeout, err, "layout cancelled after placement")
	}

	// Routing.
	stageStart = time.Now()
	hooks.OnStageStart(ctx, "routing", g.EdgeCount())
	paths, routingStats := RouteEdges(positions, g, cfg, opts.Routing, e.logger)
	timings.Routing = time.Since(stageStart)
	hooks.OnStageComplete(ctx, "routing", timings.Routing, nil)

	timings.Total = time.Since(start)
	hooks.OnLayoutComplete(ctx, algo.Name(), timings.Total, nil)

	stats := e.buildStats(g, layers, positions, cfg, diag, routingStats, timings, converged)
	e.logger.Info("layout computed",
		"algorithm", algo.Name(),
		"vertices", stats.VertexCount,
		"edges", stats.EdgeCount,
		"layers", stats.LayerCount,
		"crossings", stats.Crossings,
		"converged", stats.Converged,
		"duration", timings.Total)

	return &Result{
		Positions: positions,
		EdgePaths: paths,
		Layers:    layers,
		Stats:     stats,
		Metadata: Metadata{
			LayoutID:       uuid.NewString(),
			Algorithm:      algo.Name(),
			Version:        buildinfo.Version,
			GeneratedAt:    time.Now().UTC(),
			EnableSIMD:     opts.EnableSIMD,
			EnableGPU:      opts.EnableGPU,
			MemoryStrategy: opts.MemoryStrategy,
		},
	}, nil
}

func (e *Engine) buildGraph(edges []graph.Edge) (*graph.Graph, Diagnostics, error) {
	var diag Diagnostics
	seen := make(map[[2]string]struct{}, len(edges))
	b := graph.NewBuilder()

	for _, edge := range edges {
		switch {
		case edge.Source == "" || edge.Target == "":
			diag.EmptyEndpoints++
			continue
		case edge.Source == edge.Target:
			diag.SelfLoops++
			continue
		}
		key := [2]string{edge.Source, edge.Target}
		if _, dup := seen[key]; dup {
			diag.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		if err := b.AddEdge(edge.Source, edge.Target, edge.Weight); err != nil {
			return nil, diag, err
		}
	}

	if b.EdgeCount() == 0 {
		return nil, diag, errors.New(errors.ErrCodeEmptyGraph,
			"no usable edges (%d empty, %d self-loops, %d duplicates dropped)",
			diag.EmptyEndpoints, diag.SelfLoops, diag.Duplicates)
	}
	if diag.EmptyEndpoints+diag.SelfLoops+diag.Duplicates > 0 {
		e.logger.Debug("dropped invalid edges",
			"empty_endpoints", diag.EmptyEndpoints,
			"self_loops", diag.SelfLoops,
			"duplicates", diag.Duplicates)
	}
	return b.Build(), diag, nil
}

func (e *Engine) resolveAlgorithm(opts Options) Algorithm {
	switch opts.Algorithm {
	case "longest_path":
		return LongestPathAlgorithm{Workers: opts.Workers, ChunkSize: opts.ChunkSize}
	case "", "global":
		return GlobalAlgorithm{Logger: e.logger}
	default:
		e.logger.Warn("unknown layering algorithm, using global", "algorithm", opts.Algorithm)
		return GlobalAlgorithm{Logger: e.logger}
	}
}

func (e *Engine) buildStats(g *graph.Graph, layers map[string]int, positions []Position, cfg Config, diag Diagnostics, routing RoutingStats, timings Timings, converged bool) ComputeStats {
	maxLayer := 0
	distinct := make(map[int]struct{})
	for _, l := range layers {
		distinct[l] = struct{}{}
		if l > maxLayer {
			maxLayer = l
		}
	}

	width, height := Dimensions(positions, cfg)

	stats := ComputeStats{
		VertexCount: g.VertexCount(),
		EdgeCount:   g.EdgeCount(),
		MaxLayer:    maxLayer,
		LayerCount:  len(distinct),
		Crossings:   CountCrossings(g, OrderLayers(layers)),
		Width:       width,
		Height:      height,
		Converged:   converged,
		Diagnostics: diag,
		Routing:     routing,
		Timings:     timings,
	}
	if secs := timings.Total.Seconds(); secs > 0 {
		stats.VerticesPerSecond = float64(len(positions)) / secs
	}
	if area := width * height; area > 0 {
		stats.SpaceEfficiency = float64(len(positions)) * cfg.BlockWidth * cfg.BlockHeight / area
	}
	return stats
}
