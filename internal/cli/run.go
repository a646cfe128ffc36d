package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/citegraph/layoutd/internal/config"
	"github.com/citegraph/layoutd/pkg/errors"
	"github.com/citegraph/layoutd/pkg/graph"
	"github.com/citegraph/layoutd/pkg/layout"
	"github.com/citegraph/layoutd/pkg/pipeline"
	"github.com/citegraph/layoutd/pkg/store"
)

// newRunCmd creates the run command: one batch layout job from edges to
// saved positions.
func newRunCmd() *cobra.Command {
	var (
		configPath string
		edgesPath  string
		outputPath string
		batchSize  int64
		noRouting  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a batch layout job",
		Long: `Run streams citation edges in batches, assigns every vertex a layer,
places the vertices on a coordinate grid, and saves the positions.

By default edges come from the configured MongoDB collection and positions
are saved back to MongoDB. With --edges the job reads a JSON edge file
instead, and with --output positions are written to a JSON file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			opts := cfg.PipelineOptions()
			if batchSize > 0 {
				opts.BatchSize = batchSize
			}
			if noRouting {
				opts.RouteEdges = false
			}

			var (
				source store.EdgeSource
				sink   store.PositionSink
			)
			memSink := store.NewMemorySink()

			if edgesPath != "" {
				edges, err := loadEdgeFile(edgesPath)
				if err != nil {
					return err
				}
				logger.Info("loaded edge file", "path", edgesPath, "edges", len(edges))
				source = store.NewMemorySource(edges)
				sink = memSink
			} else {
				mongoStore, err := store.NewMongoStore(ctx, cfg.MongoConfig(), logger)
				if err != nil {
					return err
				}
				defer func() {
					if err := mongoStore.Close(context.Background()); err != nil {
						logger.Warn("closing store", "error", err)
					}
				}()
				source = mongoStore
				sink = mongoStore
			}

			p := newProgress(logger)
			result, err := pipeline.NewRunner(source, sink, logger).Run(ctx, opts)
			if err != nil {
				return err
			}
			p.done(fmt.Sprintf("Placed %d vertices in %d batches", result.VertexCount, result.Batches))

			if result.InvalidEdges > 0 {
				logger.Warn("layout contains mis-ordered edges", "count", result.InvalidEdges)
			}

			if outputPath != "" {
				if edgesPath == "" {
					return errors.New(errors.ErrCodeInvalidInput,
						"--output requires --edges (store jobs save to the store)")
				}
				if err := writePositionsFile(outputPath, memSink.Positions(), result); err != nil {
					return err
				}
				logger.Info("wrote layout", "path", outputPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")
	cmd.Flags().StringVar(&edgesPath, "edges", "", "read edges from a JSON file instead of the store")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write positions to a JSON file (requires --edges)")
	cmd.Flags().Int64Var(&batchSize, "batch-size", 0, "override the configured edge batch size")
	cmd.Flags().BoolVar(&noRouting, "no-routing", false, "skip edge path computation")
	return cmd
}

// loadEdgeFile reads a JSON array of edges.
func loadEdgeFile(path string) ([]graph.Edge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "reading edge file %s", path)
	}
	var edges []graph.Edge
	if err := json.Unmarshal(data, &edges); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parsing edge file %s", path)
	}
	return edges, nil
}

// writePositionsFile writes positions plus the job summary as JSON.
func writePositionsFile(path string, positions []layout.Position, result *pipeline.Result) error {
	out := struct {
		Positions []layout.Position `json:"positions"`
		Result    *pipeline.Result  `json:"result"`
	}{positions, result}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
