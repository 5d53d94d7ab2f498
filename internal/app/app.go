// Package app provides the top-level application lifecycle for spreadbot. It
// wires together the stores, caches, feed, engine, archiver and HTTP API, and
// runs them until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/spreadbot/internal/config"
	"github.com/alanyoungcy/spreadbot/internal/server"
	"github.com/alanyoungcy/spreadbot/internal/server/handler"
)

// shutdownTimeout bounds the graceful HTTP shutdown on exit.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the engine
// goroutines, and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.String("feed_source", a.cfg.Feed.Source),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	// Scan loop. The scheduler owns its goroutine; hold until shutdown and
	// stop it so in-flight trades finish under their own timeout.
	deps.Scheduler.Start(ctx)
	g.Go(func() error {
		<-ctx.Done()
		deps.Scheduler.Stop()
		return ctx.Err()
	})

	// WebSocket feed consumer.
	if deps.WSFeed != nil {
		g.Go(func() error {
			defer deps.WSFeed.Close()
			return deps.WSFeed.Run(ctx)
		})
	}

	// Trade archiver.
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}

	// HTTP control API plus the WebSocket event hub.
	if a.cfg.Server.Enabled {
		if deps.WSHub != nil {
			g.Go(func() error {
				return deps.WSHub.Run(ctx)
			})
		}

		handlers := server.Handlers{
			Health:    handler.NewHealthHandler(a.logger),
			Autotrade: handler.NewAutotradeHandler(deps.Scheduler, deps.StrategyStore, deps.CredentialStore, a.logger),
			Trades:    handler.NewTradeHandler(deps.TradeStore, a.logger),
		}
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		}, handlers, deps.RateLimiter, deps.WSHub, a.logger)

		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
