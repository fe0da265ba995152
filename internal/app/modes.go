package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long the HTTP server gets to drain in-flight
// requests once the run context is cancelled.
const shutdownTimeout = 10 * time.Second

// run fans out every long-running component over an errgroup: the cycle
// orchestrator, both venues' WS feeds, the optional HTTP server, and the
// optional cold-storage archiver cron. The first component to return a
// non-nil error cancels the shared context and every sibling shuts down,
// following the teacher's internal/pipeline/orchestrator.go errgroup shape.
func (a *App) run(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Orchestrator.Run(ctx)
	})

	g.Go(func() error {
		return deps.PolymarketFeed.Run(ctx)
	})

	g.Go(func() error {
		return deps.KalshiFeed.Run(ctx)
	})

	if deps.Server != nil {
		g.Go(func() error {
			return deps.Server.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return deps.Server.Shutdown(shutdownCtx)
		})
	}

	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.RunCron(ctx, deps.ArchiveCron)
		})
	}

	a.logger.Info("application running",
		slog.Bool("server_enabled", deps.Server != nil),
		slog.Bool("archiver_enabled", deps.Archiver != nil),
	)

	return g.Wait()
}
