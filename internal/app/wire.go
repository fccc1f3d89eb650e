package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	s3blob "github.com/alanyoungcy/shadowmarket/internal/blob/s3"
	"github.com/alanyoungcy/shadowmarket/internal/cache/redis"
	"github.com/alanyoungcy/shadowmarket/internal/config"
	"github.com/alanyoungcy/shadowmarket/internal/contracts"
	"github.com/alanyoungcy/shadowmarket/internal/crypto"
	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/integrations"
	"github.com/alanyoungcy/shadowmarket/internal/notify"
	"github.com/alanyoungcy/shadowmarket/internal/orchestrator"
	"github.com/alanyoungcy/shadowmarket/internal/prover"
	"github.com/alanyoungcy/shadowmarket/internal/server/middleware"
	"github.com/alanyoungcy/shadowmarket/internal/server/ws"
	"github.com/alanyoungcy/shadowmarket/internal/service"
	"github.com/alanyoungcy/shadowmarket/internal/starknet"
	"github.com/alanyoungcy/shadowmarket/internal/store/postgres"
)

// Dependencies is everything Run needs, built by Wire and torn down by the
// returned cleanup function. Optional infrastructure is nil when disabled.
type Dependencies struct {
	Bundle   *integrations.Bundle
	Orch     *orchestrator.Orchestrator
	Service  *service.ShadowMarket
	Registry *prometheus.Registry

	// Redis
	SignalBus   *redis.SignalBus
	Publisher   *redis.ActivityPublisher
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter

	// Postgres
	ActivityStore *postgres.ActivityStore

	// S3
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   *s3blob.ActivityArchiver

	Notifier    *notify.Notifier
	Hub         *ws.Hub
	HTTPMetrics *middleware.HTTPMetrics
}

// Wire constructs every dependency from cfg and returns them together with
// a cleanup function that releases resources in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps := &Dependencies{
		Registry:    reg,
		HTTPMetrics: middleware.NewHTTPMetrics(reg),
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.ActivityStore = postgres.NewActivityStore(pgClient.Pool())
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Publisher = redis.NewActivityPublisher(deps.SignalBus)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- S3 ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		if deps.ActivityStore != nil && cfg.Activity.ArchiveInterval.Duration > 0 {
			deps.Archiver = s3blob.NewActivityArchiver(deps.BlobWriter, deps.ActivityStore, cfg.Activity.RetentionDays, logger)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Severities, logger)

	// --- Prover ---
	p, err := buildProver(cfg, deps, logger)
	if err != nil {
		return fail(err)
	}

	// --- Adapters ---
	opts := []contracts.Option{contracts.WithMetrics(contracts.NewMetrics(reg))}
	if cfg.Chain.RateLimitRPS > 0 {
		opts = append(opts, contracts.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Chain.RateLimitRPS), max(cfg.Chain.RateLimitBurst, 1))))
	}
	if cfg.Contracts.CreateLock && deps.LockManager != nil {
		opts = append(opts, contracts.WithLockManager(deps.LockManager))
	}
	if cfg.Chain.NodeURL != "" {
		node, err := starknet.DialNode(ctx, cfg.Chain.NodeURL)
		if err != nil {
			return fail(fmt.Errorf("wire: node: %w", err))
		}
		closers = append(closers, node.Close)
		opts = append(opts, contracts.WithFallbackProvider(node))
	}

	switch integrations.Mode(cfg.Integration.Mode) {
	case integrations.ModeSim:
		deps.Bundle = integrations.NewSimulated(integrations.SimConfig{
			FactoryAddress:  cfg.Contracts.FactoryAddress,
			VaultAddress:    cfg.Contracts.VaultAddress,
			WalletAddress:   cfg.Integration.Sim.WalletAddress,
			WalletName:      cfg.Integration.Sim.WalletName,
			StartingBalance: cfg.Integration.Sim.StartingBalance,
			Seed:            cfg.Integration.Sim.Seed,
		}, p, logger, opts...)
	case integrations.ModeLive:
		registry := starknet.NewRegistry()
		if cfg.Wallet.BridgeURL != "" {
			bridge, err := starknet.DialBridge(ctx, cfg.Wallet.BridgeURL)
			if err != nil {
				return fail(fmt.Errorf("wire: wallet bridge: %w", err))
			}
			closers = append(closers, bridge.Close)
			if err := registry.Inject(cfg.Wallet.InjectionPoint, bridge); err != nil {
				return fail(fmt.Errorf("wire: wallet bridge: %w", err))
			}
		}
		deps.Bundle = integrations.NewLive(registry, contracts.Config{
			FactoryAddress: cfg.Contracts.FactoryAddress,
			VaultAddress:   cfg.Contracts.VaultAddress,
			CallTimeout:    cfg.Chain.CallTimeout.Duration,
			LockTTL:        cfg.Contracts.LockTTL.Duration,
		}, p, logger, opts...)
	default:
		return fail(fmt.Errorf("wire: unknown integration mode %q", cfg.Integration.Mode))
	}

	// --- Orchestrator and service ---
	if cfg.Server.Enabled {
		hubCfg := ws.Config{Status: func() any { return deps.Service.State() }}
		if deps.SignalBus != nil {
			hubCfg.Bus = deps.SignalBus
			hubCfg.BusChannel = redis.ActivityChannel
		}
		deps.Hub = ws.NewHub(hubCfg, logger)
	}

	deps.Orch = orchestrator.New(logger,
		orchestrator.WithCapacity(cfg.Activity.Capacity),
		orchestrator.WithSinks(activitySinks(deps)...),
		orchestrator.WithMetrics(orchestrator.NewMetrics(reg)),
	)
	deps.Service = service.NewShadowMarket(deps.Bundle, deps.Orch, logger)

	return deps, cleanup, nil
}

// buildProver returns the remote prover when configured, wrapped in the S3
// archive when enabled. A nil result selects the bundle default.
func buildProver(cfg *config.Config, deps *Dependencies, logger *slog.Logger) (domain.ProverAdapter, error) {
	if cfg.Prover.URL == "" {
		return nil, nil
	}

	secret, err := crypto.LoadSecret(crypto.SecretConfig{
		Raw:           cfg.Prover.APISecret,
		EncryptedPath: cfg.Prover.EncryptedSecretPath,
		Password:      cfg.Prover.SecretPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("wire: prover secret: %w", err)
	}
	var auth *crypto.HMACAuth
	if cfg.Prover.APIKey != "" {
		auth = &crypto.HMACAuth{Key: cfg.Prover.APIKey, Secret: secret}
	}

	var p domain.ProverAdapter = prover.NewRemote(cfg.Prover.URL, cfg.Prover.Timeout.Duration, auth, prover.ProgramHashes{
		Position: cfg.Prover.PositionProgramHash,
		Claim:    cfg.Prover.ClaimProgramHash,
		Withdraw: cfg.Prover.WithdrawProgramHash,
	}, logger)
	if cfg.Prover.Archive && deps.BlobWriter != nil {
		p = prover.NewArchive(p, deps.BlobReader, deps.BlobWriter, cfg.Prover.ArchivePrefix, logger)
	}
	return p, nil
}

// activitySinks lists the mirrors every activity item is recorded to. The
// hub receives items directly only when no Redis bus relays them.
func activitySinks(deps *Dependencies) []domain.ActivitySink {
	var sinks []domain.ActivitySink
	if deps.Notifier.Enabled() {
		sinks = append(sinks, deps.Notifier)
	}
	if deps.ActivityStore != nil {
		sinks = append(sinks, deps.ActivityStore)
	}
	switch {
	case deps.Publisher != nil:
		sinks = append(sinks, deps.Publisher)
	case deps.Hub != nil:
		sinks = append(sinks, deps.Hub)
	}
	return sinks
}

// serverRateWindow converts a token rate into the limit/window pair the
// rate-limit middleware expects.
func serverRateWindow(perSec float64, burst int) (int, time.Duration) {
	if perSec <= 0 {
		return 0, 0
	}
	if burst <= 0 {
		burst = max(int(perSec), 1)
	}
	return burst, time.Duration(float64(burst) / perSec * float64(time.Second))
}
