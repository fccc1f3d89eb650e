// Package integrations assembles the wallet, contracts and prover adapters
// into a Bundle, either against live injected wallets or against an
// in-memory simulated chain.
package integrations

import (
	"log/slog"
	"math/big"

	"github.com/alanyoungcy/shadowmarket/internal/contracts"
	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/prover"
	"github.com/alanyoungcy/shadowmarket/internal/session"
	"github.com/alanyoungcy/shadowmarket/internal/sim"
	"github.com/alanyoungcy/shadowmarket/internal/starknet"
	"github.com/alanyoungcy/shadowmarket/internal/wallet"
)

// Mode selects the bundle variant.
type Mode string

const (
	ModeLive Mode = "live"
	ModeSim  Mode = "sim"
)

// Bundle is one consistent set of adapters sharing a session store.
type Bundle struct {
	Mode      Mode
	Wallet    domain.WalletAdapter
	Contracts domain.ContractsAdapter
	Prover    domain.ProverAdapter

	Session  *session.Store
	Registry *starknet.Registry
	// Chain is set only for ModeSim.
	Chain *sim.Chain
}

// NewLive wires the adapters against wallets injected into reg. A nil
// prover fails every proof request with domain.ErrProverUnavailable.
func NewLive(reg *starknet.Registry, cfg contracts.Config, p domain.ProverAdapter, logger *slog.Logger, opts ...contracts.Option) *Bundle {
	if p == nil {
		p = prover.Unavailable{}
	}
	store := session.New()
	opts = append([]contracts.Option{contracts.WithPassiveProvider(reg.PassiveProvider)}, opts...)
	return &Bundle{
		Mode:      ModeLive,
		Wallet:    wallet.NewAdapter(reg, store, logger),
		Contracts: contracts.NewAdapter(cfg, store, logger, opts...),
		Prover:    p,
		Session:   store,
		Registry:  reg,
	}
}

// SimConfig describes the simulated chain.
type SimConfig struct {
	FactoryAddress  string
	VaultAddress    string
	WalletAddress   string
	WalletName      string
	StartingBalance string
	// Seed deploys a few demonstration markets.
	Seed bool
}

func (c SimConfig) withDefaults() SimConfig {
	if c.FactoryAddress == "" {
		c.FactoryAddress = "0x0511fac70e7"
	}
	if c.VaultAddress == "" {
		c.VaultAddress = "0x05a1ba5e7a017"
	}
	if c.WalletAddress == "" {
		c.WalletAddress = "0x07f4c0de2ab1"
	}
	if c.WalletName == "" {
		c.WalletName = "Simulated ArgentX"
	}
	if c.StartingBalance == "" {
		c.StartingBalance = "25000"
	}
	return c
}

// NewSimulated builds a simulated chain, injects an unauthorized simulated
// wallet at the first injection point, and wires the live adapters to it.
// The contracts options apply as in NewLive.
func NewSimulated(cfg SimConfig, p domain.ProverAdapter, logger *slog.Logger, opts ...contracts.Option) *Bundle {
	cfg = cfg.withDefaults()

	chain := sim.NewChain(cfg.FactoryAddress, cfg.VaultAddress)
	if bal, ok := new(big.Int).SetString(cfg.StartingBalance, 0); ok {
		chain.Fund(cfg.WalletAddress, bal)
	}
	if cfg.Seed {
		seed(chain)
	}

	reg := starknet.NewRegistry()
	// The first injection point is always known.
	_ = reg.Inject(starknet.InjectionPoints[0], sim.NewWallet(chain, cfg.WalletAddress, cfg.WalletName, false))

	if p == nil {
		p = sim.Prover{}
	}
	b := NewLive(reg, contracts.Config{
		FactoryAddress: cfg.FactoryAddress,
		VaultAddress:   cfg.VaultAddress,
	}, p, logger, opts...)
	b.Mode = ModeSim
	b.Chain = chain
	return b
}

// seed deploys the demonstration markets: three live, one resolved to no,
// and one identifier still mid-deployment.
func seed(chain *sim.Chain) {
	chain.SeedMarket("0x0999c134001", "0x051b0ac1e", "1774998000")
	chain.SeedMarket("0x0442daaa9f1", "0x0479ac1e", "1780167600")
	chain.ReserveMarketID()
	chain.SeedMarket("0x0118ecf7c30", "0x04ac0ac1e", "1782676800")

	resolved := chain.SeedMarket("0x0777a0b1c2d", "0x051b0ac1e", "1772319600")
	_ = chain.SeedResolution(resolved, "0")
}
