package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/server/handler"
	"github.com/alanyoungcy/shadowmarket/internal/server/middleware"
	"github.com/alanyoungcy/shadowmarket/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// Limiter, when set, caps each client at RateLimit requests per
	// RateWindow.
	Limiter    domain.RateLimiter
	RateLimit  int
	RateWindow time.Duration

	Metrics *middleware.HTTPMetrics
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Markets  *handler.MarketHandler
	Wallet   *handler.WalletHandler
	Vault    *handler.VaultHandler
	Activity *handler.ActivityHandler

	// Optional.
	Hub           *ws.Hub
	MetricsExport http.Handler
}

// Server is the HTTP and WebSocket API over the market service.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/state", handlers.Markets.State)
	mux.HandleFunc("POST /api/refresh", handlers.Markets.Refresh)

	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/select", handlers.Markets.SelectMarket)
	mux.HandleFunc("POST /api/commitments", handlers.Markets.AddCommitment)
	mux.HandleFunc("POST /api/positions", handlers.Markets.PlacePosition)
	mux.HandleFunc("POST /api/resolve", handlers.Markets.ResolveMarket)
	mux.HandleFunc("POST /api/claims", handlers.Markets.ClaimReward)

	mux.HandleFunc("GET /api/wallet", handlers.Wallet.Session)
	mux.HandleFunc("POST /api/wallet/connect", handlers.Wallet.Connect)
	mux.HandleFunc("POST /api/wallet/disconnect", handlers.Wallet.Disconnect)

	mux.HandleFunc("GET /api/vault", handlers.Vault.Vault)
	mux.HandleFunc("POST /api/vault/deposit", handlers.Vault.Deposit)
	mux.HandleFunc("POST /api/vault/withdraw", handlers.Vault.Withdraw)

	mux.HandleFunc("GET /api/activity", handlers.Activity.Recent)
	mux.HandleFunc("GET /api/activity/history", handlers.Activity.History)

	if handlers.Hub != nil {
		mux.HandleFunc("GET /ws", handlers.Hub.HandleWS)
	}
	if handlers.MetricsExport != nil {
		mux.Handle("GET /metrics", handlers.MetricsExport)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, window)(h)
	}
	h = middleware.Logging(logger, cfg.Metrics)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Proving can take minutes.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
