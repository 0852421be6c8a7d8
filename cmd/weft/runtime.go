package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/weftlab/weft/cmd/weft/internal"
	"github.com/weftlab/weft/internal/config"
	"github.com/weftlab/weft/internal/embed"
	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/observability"
	"github.com/weftlab/weft/internal/query"
)

// runtime bundles everything a command needs: validated config, root
// logger, open store (traced when tracing is on), and the embedding
// provider. Close releases the store and flushes spans.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    graph.Store
	provider embed.Provider
	tracer   *sdktrace.TracerProvider
}

// loadRuntimeConfig resolves the effective config: the file named by
// --config when it exists, otherwise defaults rooted at the resolved
// home directory.
func loadRuntimeConfig() (*config.Config, error) {
	if _, err := os.Stat(globalFlags.ConfigFile); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		cfg.Core.HomeDir = globalFlags.HomeDir
		cfg.Store.Path = config.DefaultStorePath(globalFlags.HomeDir)
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(globalFlags.ConfigFile)
}

// newRuntime loads config and opens every shared dependency. Commands
// that only touch config (init, version) never call this.
func newRuntime(cmd *cobra.Command) (*runtime, error) {
	ctx := cmd.Context()

	cfg, err := loadRuntimeConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if globalFlags.Verbose || cfg.Core.Debug {
		level = "debug"
	}
	if globalFlags.Quiet {
		level = "error"
	}
	logger, err := observability.NewLogger(cmd.ErrOrStderr(), level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:  cfg.Tracing.Enabled,
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, internal.WrapError(internal.ExitStorageError, "creating store directory", err)
	}
	local, err := graph.OpenLocal(ctx, graph.LocalConfig{
		Path:        cfg.Store.Path,
		Dimensions:  cfg.Embedder.Dimensions,
		TraceBuffer: cfg.Store.TraceBuffer,
	})
	if err != nil {
		return nil, err
	}

	var store graph.Store = local
	if cfg.Tracing.Enabled {
		store = graph.NewTracedStore(local, tp.Tracer("weft/graph"))
	}

	provider, err := embed.New(cfg.Embedder)
	if err != nil {
		local.Close()
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		provider: provider,
		tracer:   tp,
	}, nil
}

// engine builds the query engine over the runtime's store and provider.
func (r *runtime) engine() (*query.Engine, error) {
	return query.NewEngine(r.store, r.provider, r.cfg.Query, r.logger)
}

// Close releases the store and flushes pending spans.
func (r *runtime) Close(ctx context.Context) error {
	err := r.store.Close()
	if shutdownErr := observability.ShutdownTracing(ctx, r.tracer); err == nil {
		err = shutdownErr
	}
	return err
}
