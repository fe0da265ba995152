// Package app provides the top-level application lifecycle management for
// the arbitrage engine. It wires together every dependency (venue adapters,
// the order book cache, the dependency graph, the execution engine, the
// cycle orchestrator, and the optional Postgres/S3/HTTP surfaces) and runs
// them until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/polyarb/arbengine/internal/config"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies and fans them out
// over an errgroup, blocking until the context is cancelled or a component
// fails. The cleanup function returned by Wire is registered on the App and
// runs when Close is called, not when Run returns.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.Bool("live_mode", a.cfg.Engine.LiveMode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	return a.run(ctx, deps)
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
