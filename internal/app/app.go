// Package app wires the shadowmarket service together and runs it: the
// adapter bundle, the orchestrator with its activity sinks, the optional
// Redis, Postgres and S3 infrastructure, the HTTP/WebSocket server and the
// activity archiver.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/shadowmarket/internal/config"
	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/server"
	"github.com/alanyoungcy/shadowmarket/internal/server/handler"
	"github.com/alanyoungcy/shadowmarket/internal/server/middleware"
)

// shutdownTimeout bounds the HTTP server's graceful shutdown.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
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

// Run wires every dependency, loads the initial chain state and serves until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Integration.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// A failed boot refresh is visible in the orchestrator state and
	// retried by POST /api/refresh.
	if err := deps.Service.Refresh(ctx); err != nil {
		a.logger.WarnContext(ctx, "initial refresh failed", slog.String("error", err.Error()))
	} else {
		st := deps.Service.State()
		a.logger.InfoContext(ctx, "markets loaded", slog.Int("markets", len(st.Markets)))
	}

	g, ctx := errgroup.WithContext(ctx)

	if deps.Archiver != nil {
		interval := a.cfg.Activity.ArchiveInterval.Duration
		g.Go(func() error {
			return ignoreCanceled(deps.Archiver.Run(ctx, interval))
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	} else {
		g.Go(func() error {
			<-ctx.Done()
			return nil
		})
	}

	return g.Wait()
}

// startHTTPServer launches the WebSocket hub and the API server on g. The
// server shuts down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		return ignoreCanceled(deps.Hub.Run(ctx))
	})

	var tail handler.ActivityTail
	if deps.Publisher != nil {
		tail = deps.Publisher
	}
	var history domain.ActivityStore
	if deps.ActivityStore != nil {
		history = deps.ActivityStore
	}

	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewLocalLimiter()
	}
	limit, window := serverRateWindow(a.cfg.Server.RateLimitPerSec, a.cfg.Server.RateLimitBurst)

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		Limiter:     limiter,
		RateLimit:   limit,
		RateWindow:  window,
		Metrics:     deps.HTTPMetrics,
	}, server.Handlers{
		Health:        handler.NewHealthHandler(a.cfg.Integration.Mode, a.logger),
		Markets:       handler.NewMarketHandler(deps.Service, a.logger),
		Wallet:        handler.NewWalletHandler(deps.Service, a.logger),
		Vault:         handler.NewVaultHandler(deps.Service, a.logger),
		Activity:      handler.NewActivityHandler(deps.Service, history, tail, a.logger),
		Hub:           deps.Hub,
		MetricsExport: promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{Registry: deps.Registry}),
	}, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
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
