package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/citegraph/layoutd/pkg/errors"
	"github.com/citegraph/layoutd/pkg/graph"
	"github.com/citegraph/layoutd/pkg/layer"
	"github.com/citegraph/layoutd/pkg/layout"
	"github.com/citegraph/layoutd/pkg/store"
)

// Runner executes batch layout jobs against one edge source and one
// position sink. It is stateless between runs; each Run builds a fresh
// layering state, so the same Runner can serve sequential jobs.
type Runner struct {
	Source store.EdgeSource
	Sink   store.PositionSink
	Logger *log.Logger
}

// NewRunner creates a runner. A nil logger disables logging.
func NewRunner(source store.EdgeSource, sink store.PositionSink, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{Source: source, Sink: sink, Logger: logger}
}

// Run executes one batch layout job. Cancellation is honored between
// batches only; a batch in flight always completes so the layering state
// never holds a half-applied batch.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	opts.validateAndSetDefaults()

	result := &Result{
		JobID:     uuid.NewString(),
		Converged: true,
	}
	logger := r.Logger.With("job_id", result.JobID)
	start := time.Now()

	// Phase 1: count.
	countStart := time.Now()
	total, err := r.Source.CountEdges(ctx)
	if err != nil {
		return nil, err
	}
	result.TotalEdges = total
	result.Timings.Count = time.Since(countStart)

	if total == 0 {
		return nil, errors.New(errors.ErrCodeEmptyGraph, "edge source is empty")
	}
	logger.Info("starting batch layout job", "total_edges", total, "batch_size", opts.BatchSize)

	// Phase 2: layer batches. When routing is requested the edges are also
	// folded into a graph builder, deduplicated, for the routing pass.
	layerStart := time.Now()
	state := layer.NewState(logger)

	var (
		builder   *graph.Builder
		seenEdges map[[2]string]struct{}
	)
	if opts.RouteEdges {
		builder = graph.NewBuilder()
		seenEdges = make(map[[2]string]struct{})
	}

	for offset := int64(0); offset < total; offset += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeTimeout, err,
				"job cancelled at offset %d of %d", offset, total)
		}

		batch, err := r.Source.LoadEdgesBatch(ctx, opts.BatchSize, offset)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		result.Batches++
		state.AddBatch(batch)
		if builder != nil {
			for _, e := range batch {
				if e.Source == "" || e.Target == "" || e.Source == e.Target {
					continue
				}
				key := [2]string{e.Source, e.Target}
				if _, dup := seenEdges[key]; dup {
					continue
				}
				seenEdges[key] = struct{}{}
				if err := builder.AddEdge(e.Source, e.Target, e.Weight); err != nil {
					return nil, err
				}
			}
		}
		if _, err := state.PropagateUntilConvergence(); err != nil {
			if !errors.Is(err, errors.ErrCodeConvergence) {
				return nil, err
			}
			result.Converged = false
			logger.Warn("batch did not converge", "batch", result.Batches, "error", err)
		}

		logger.Info("batch processed",
			"batch", result.Batches,
			"edges", len(batch),
			"progress", float64(min(offset+opts.BatchSize, total))/float64(total),
			"max_layer", state.MaxLayer(),
			"elapsed", time.Since(layerStart))
	}
	result.Timings.Layering = time.Since(layerStart)

	// Phase 3: validate.
	validateStart := time.Now()
	result.InvalidEdges = state.Validate()
	result.Timings.Validate = time.Since(validateStart)
	result.LayerStats = state.Stats()
	state.LogStats()

	// Phase 4: place.
	placeStart := time.Now()
	positions := layout.PlaceAll(state.Layers(), opts.Placement)
	layout.Optimize(positions, opts.Placement, opts.Optimize, logger)
	result.VertexCount = len(positions)

	if builder != nil {
		result.EdgePaths, result.RoutingStats = layout.RouteEdges(
			positions, builder.Build(), opts.Placement, opts.Routing, logger)
	}
	result.Timings.Place = time.Since(placeStart)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTimeout, err, "job cancelled before save")
	}

	// Phase 5: save.
	saveStart := time.Now()
	if err := r.Sink.SavePositions(ctx, positions, opts.SaveBatchSize); err != nil {
		return nil, err
	}
	result.Timings.Save = time.Since(saveStart)
	result.Timings.Total = time.Since(start)

	logger.Info("batch layout job complete",
		"vertices", result.VertexCount,
		"batches", result.Batches,
		"invalid_edges", result.InvalidEdges,
		"converged", result.Converged,
		"duration", result.Timings.Total)
	return result, nil
}
