package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/citegraph/layoutd/internal/config"
	"github.com/citegraph/layoutd/pkg/errors"
	"github.com/citegraph/layoutd/pkg/graph"
	"github.com/citegraph/layoutd/pkg/graph/longestpath"
	"github.com/citegraph/layoutd/pkg/graph/toposort"
	"github.com/citegraph/layoutd/pkg/layer"
	"github.com/citegraph/layoutd/pkg/store"
)

// newCheckCmd creates the check command: graph diagnostics without writing
// anything.
func newCheckCmd() *cobra.Command {
	var (
		configPath string
		edgesPath  string
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a citation graph for layout problems",
		Long: `Check loads a graph, reports its structural statistics, and verifies it
can be layered cleanly: no cycles, no mis-ordered edges after propagation.
With --strict any finding makes the command fail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			edges, err := checkInputEdges(ctx, configPath, edgesPath, logger)
			if err != nil {
				return err
			}
			if len(edges) == 0 {
				return errors.New(errors.ErrCodeEmptyGraph, "no edges to check")
			}

			b := graph.NewBuilder()
			skipped := 0
			for _, e := range edges {
				if e.Source == "" || e.Target == "" || e.Source == e.Target {
					skipped++
					continue
				}
				if err := b.AddEdge(e.Source, e.Target, e.Weight); err != nil {
					return err
				}
			}
			if b.EdgeCount() == 0 {
				return errors.New(errors.ErrCodeEmptyGraph,
					"no usable edges (%d invalid skipped)", skipped)
			}
			g := b.Build()

			stats := g.Stats()
			logger.Info("graph loaded",
				"vertices", stats.VertexCount,
				"edges", stats.EdgeCount,
				"components", g.ComponentCount(),
				"isolated", stats.IsolatedVertices,
				"density", fmt.Sprintf("%.4f", stats.Density))
			if skipped > 0 {
				logger.Warn("skipped invalid edges", "count", skipped)
			}

			findings := 0
			if !stats.IsDAG {
				logger.Error("graph contains at least one cycle")
				findings++
			} else if order, err := toposort.New(4, 0).Sort(ctx, g); err == nil {
				chain := longestpath.Find(g, order.Order)
				logger.Info("longest citation chain",
					"length", chain.Length,
					"start", chain.Path[0],
					"end", chain.Path[len(chain.Path)-1])
			}

			state := layer.NewState(logger)
			state.AddBatch(edges)
			if _, err := state.PropagateUntilConvergence(); err != nil {
				if !errors.Is(err, errors.ErrCodeConvergence) {
					return err
				}
				logger.Error("layer propagation did not converge", "error", err)
				findings++
			}
			if invalid := state.Validate(); invalid > 0 {
				logger.Error("mis-ordered edges after layering", "count", invalid)
				findings++
			} else {
				logger.Info("layering is clean", "max_layer", state.MaxLayer())
			}

			if findings > 0 {
				if strict {
					return errors.New(errors.ErrCodeInvalidInput, "check found %d problem(s)", findings)
				}
				logger.Warn("check found problems", "count", findings)
				return nil
			}
			logger.Info("check passed")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")
	cmd.Flags().StringVar(&edgesPath, "edges", "", "read edges from a JSON file instead of the store")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero on any finding")
	return cmd
}

// checkInputEdges loads all edges from the file or the configured store.
func checkInputEdges(ctx context.Context, configPath, edgesPath string, logger *log.Logger) ([]graph.Edge, error) {
	if edgesPath != "" {
		return loadEdgeFile(edgesPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	mongoStore, err := store.NewMongoStore(ctx, cfg.MongoConfig(), nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := mongoStore.Close(context.Background()); err != nil {
			logger.Warn("closing store", "error", err)
		}
	}()

	total, err := mongoStore.CountEdges(ctx)
	if err != nil {
		return nil, err
	}
	edges := make([]graph.Edge, 0, total)
	for offset := int64(0); offset < total; offset += cfg.Pipeline.BatchSize {
		batch, err := mongoStore.LoadEdgesBatch(ctx, cfg.Pipeline.BatchSize, offset)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		edges = append(edges, batch...)
	}
	return edges, nil
}
