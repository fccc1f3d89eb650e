// Package contracts reads and mutates the prediction market's factory,
// market and vault contracts through whatever provider and account the
// current wallet session exposes.
package contracts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/felt"
	"github.com/alanyoungcy/shadowmarket/internal/session"
	"github.com/alanyoungcy/shadowmarket/internal/starknet"
)

const (
	defaultCallTimeout = 30 * time.Second
	defaultLockTTL     = 2 * time.Minute
)

// Config holds the contract addresses and per-call limits.
type Config struct {
	FactoryAddress string
	VaultAddress   string
	// CallTimeout bounds every individual read or write. Zero means 30s.
	CallTimeout time.Duration
	// LockTTL bounds how long CreateMarket holds the creation lock.
	LockTTL time.Duration
}

// Option configures optional collaborators of an Adapter.
type Option func(*Adapter)

// WithPassiveProvider sets the lookup used for reads when no session is
// stored, typically starknet.Registry.PassiveProvider.
func WithPassiveProvider(fn func(ctx context.Context) starknet.Provider) Option {
	return func(a *Adapter) { a.passive = fn }
}

// WithFallbackProvider sets a provider of last resort for reads, such as a
// node endpoint.
func WithFallbackProvider(p starknet.Provider) Option {
	return func(a *Adapter) { a.fallback = p }
}

// WithLimiter throttles read calls.
func WithLimiter(l *rate.Limiter) Option {
	return func(a *Adapter) { a.limiter = l }
}

// WithLockManager serializes CreateMarket across cooperating processes.
func WithLockManager(lm domain.LockManager) Option {
	return func(a *Adapter) { a.locks = lm }
}

// WithDecoder overrides the lenient decoder used for display fields.
func WithDecoder(d felt.Decoder) Option {
	return func(a *Adapter) { a.decoder = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// Adapter implements domain.ContractsAdapter.
type Adapter struct {
	cfg      Config
	store    *session.Store
	passive  func(ctx context.Context) starknet.Provider
	fallback starknet.Provider
	limiter  *rate.Limiter
	locks    domain.LockManager
	decoder  felt.Decoder
	now      func() time.Time
	metrics  *Metrics
	logger   *slog.Logger
}

// NewAdapter creates an Adapter bound to the session in store.
func NewAdapter(cfg Config, store *session.Store, logger *slog.Logger, opts ...Option) *Adapter {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	a := &Adapter{
		cfg:     cfg,
		store:   store,
		decoder: felt.LenientDecoder,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "contracts")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) factory() (string, error) {
	if a.cfg.FactoryAddress == "" {
		return "", fmt.Errorf("contracts: %w: factory address", domain.ErrConfigMissing)
	}
	return a.cfg.FactoryAddress, nil
}

func (a *Adapter) vault() (string, error) {
	if a.cfg.VaultAddress == "" {
		return "", fmt.Errorf("contracts: %w: vault address", domain.ErrConfigMissing)
	}
	return a.cfg.VaultAddress, nil
}

// provider resolves the read provider: the session's first, then a passively
// detected wallet's, then the fallback.
func (a *Adapter) provider(ctx context.Context) (starknet.Provider, error) {
	if live := a.store.Get(); live != nil && live.Provider != nil {
		return live.Provider, nil
	}
	if a.passive != nil {
		if p := a.passive(ctx); p != nil {
			return p, nil
		}
	}
	if a.fallback != nil {
		return a.fallback, nil
	}
	return nil, domain.ErrProviderUnavailable
}

// call issues one read and returns its result list.
func (a *Adapter) call(ctx context.Context, contract, entrypoint string, calldata ...string) ([]string, error) {
	p, err := a.provider(ctx)
	if err != nil {
		return nil, err
	}
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("contracts: %s: %w", entrypoint, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	if calldata == nil {
		calldata = []string{}
	}
	out, err := p.CallContract(ctx, starknet.Call{
		ContractAddress: contract,
		Entrypoint:      entrypoint,
		Calldata:        calldata,
	})
	a.metrics.observeCall(entrypoint, "read", err)
	if err != nil {
		return nil, fmt.Errorf("contracts: %s: %w: %w", entrypoint, domain.ErrChainRejected, err)
	}
	return out, nil
}

// invoke submits one mutating call through the session account.
func (a *Adapter) invoke(ctx context.Context, contract, entrypoint string, calldata []string) (string, error) {
	live := a.store.Get()
	if live == nil || live.Account == nil {
		return "", domain.ErrSessionRequired
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	res, err := live.Account.Execute(ctx, starknet.Call{
		ContractAddress: contract,
		Entrypoint:      entrypoint,
		Calldata:        calldata,
	})
	a.metrics.observeCall(entrypoint, "write", err)
	if err != nil {
		return "", fmt.Errorf("contracts: %s: %w: %w", entrypoint, domain.ErrChainRejected, err)
	}

	txHash := res.TxHash()
	a.logger.InfoContext(ctx, "contracts: submitted",
		slog.String("entrypoint", entrypoint),
		slog.String("contract", contract),
		slog.String("tx_hash", txHash),
	)
	return txHash, nil
}

// at returns out[i], or def when the result is too short.
func at(out []string, i int, def string) string {
	if i >= len(out) {
		return def
	}
	return out[i]
}

var _ domain.ContractsAdapter = (*Adapter)(nil)
