// Package pipeline runs the batch layout job: stream citation edges from a
// store in fixed-size batches, fold each batch into the global layering
// state, then place, optimize, and persist the final layout.
//
// # Architecture
//
// The job has five phases:
//
//  1. Count: size the input so batch progress can be reported
//  2. Layer: load edge batches and propagate layer updates to convergence
//     after each one
//  3. Validate: count edges whose endpoints ended up mis-ordered
//  4. Place: compute coordinates for every vertex, then optimize and
//     optionally route edges
//  5. Save: write positions back in bounded batches
//
// Because layering is batch-order-insensitive, the same edge set always
// produces the same layout no matter how the store paginates it.
//
// # Usage
//
//	runner := pipeline.NewRunner(source, sink, logger)
//	result, err := runner.Run(ctx, pipeline.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger.Info("done", "vertices", result.VertexCount)
package pipeline

import (
	"time"

	"github.com/citegraph/layoutd/pkg/layer"
	"github.com/citegraph/layoutd/pkg/layout"
)

const (
	// DefaultBatchSize is the number of edges loaded per store read.
	DefaultBatchSize = 10000

	// DefaultSaveBatchSize is the number of positions written per store
	// write.
	DefaultSaveBatchSize = 1000
)

// Options configures one batch layout job.
type Options struct {
	// BatchSize is the number of edges per read batch.
	BatchSize int64 `json:"batch_size" toml:"batch_size"`

	// SaveBatchSize is the number of positions per write batch.
	SaveBatchSize int `json:"save_batch_size" toml:"save_batch_size"`

	// Placement, Optimize, and Routing are passed through to the layout
	// stages.
	Placement layout.Config          `json:"placement" toml:"placement"`
	Optimize  layout.OptimizeOptions `json:"optimize" toml:"optimize"`
	Routing   layout.RoutingOptions  `json:"routing" toml:"routing"`

	// RouteEdges computes edge paths after placement. Batch jobs that only
	// need coordinates can turn it off.
	RouteEdges bool `json:"route_edges" toml:"route_edges"`
}

// DefaultOptions returns the standard batch job options.
func DefaultOptions() Options {
	return Options{
		BatchSize:     DefaultBatchSize,
		SaveBatchSize: DefaultSaveBatchSize,
		Placement:     layout.DefaultConfig(),
		Optimize:      layout.DefaultOptimizeOptions(),
		Routing:       layout.DefaultRoutingOptions(),
		RouteEdges:    true,
	}
}

// validateAndSetDefaults clamps nonsensical values to the defaults.
func (o *Options) validateAndSetDefaults() {
	if o.BatchSize < 1 {
		o.BatchSize = DefaultBatchSize
	}
	if o.SaveBatchSize < 1 {
		o.SaveBatchSize = DefaultSaveBatchSize
	}
}

// Timings records per-phase wall-clock durations.
type Timings struct {
	Count    time.Duration `json:"count"`
	Layering time.Duration `json:"layering"`
	Validate time.Duration `json:"validate"`
	Place    time.Duration `json:"place"`
	Save     time.Duration `json:"save"`
	Total    time.Duration `json:"total"`
}

// Result summarizes one finished batch job.
type Result struct {
	// JobID identifies the run in logs and saved metadata.
	JobID string `json:"job_id"`

	// TotalEdges is the store's edge count at job start.
	TotalEdges int64 `json:"total_edges"`

	// Batches is the number of read batches processed.
	Batches int `json:"batches"`

	// VertexCount is the number of vertices placed.
	VertexCount int `json:"vertex_count"`

	// InvalidEdges counts edges whose layers ended up mis-ordered.
	InvalidEdges int `json:"invalid_edges"`

	// Converged is false when any batch hit the propagation cap.
	Converged bool `json:"converged"`

	// LayerStats is the final layering state summary.
	LayerStats layer.Stats `json:"layer_stats"`

	// RoutingStats is zero when RouteEdges was off.
	RoutingStats layout.RoutingStats `json:"routing_stats"`

	// EdgePaths is populated only when RouteEdges is on.
	EdgePaths []layout.EdgePath `json:"edge_paths,omitempty"`

	Timings Timings `json:"timings"`
}
