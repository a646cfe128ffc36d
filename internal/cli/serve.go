package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/citegraph/layoutd/internal/api"
	"github.com/citegraph/layoutd/internal/config"
	"github.com/citegraph/layoutd/pkg/cache"
	"github.com/citegraph/layoutd/pkg/store"
)

// newServeCmd creates the serve command: the HTTP layout service.
func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		noStore    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP layout API",
		Long: `Serve starts the layout service. Layout requests may carry their own
edges or fall back to the configured MongoDB edge collection; computed
layouts are cached in Redis when enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			var source store.EdgeSource
			if !noStore {
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
			}

			layoutCache := cache.NewNullCache()
			if cfg.Redis.Enabled {
				layoutCache, err = cache.NewRedisCache(ctx, cfg.Redis.URL)
				if err != nil {
					return err
				}
				logger.Info("layout cache enabled", "backend", "redis")
			}
			defer layoutCache.Close()

			server := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      api.New(cfg, source, layoutCache, logger).Routes(),
				ReadTimeout:  cfg.Server.ReadTimeout.Std(),
				WriteTimeout: cfg.Server.WriteTimeout.Std(),
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", cfg.Server.Addr)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(
					context.Background(), cfg.Server.ShutdownTimeout.Std())
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return err
				}
				return ctx.Err()
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "serve without a MongoDB edge source")
	return cmd
}
