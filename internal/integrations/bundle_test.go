package integrations

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/shadowmarket/internal/contracts"
	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/sim"
	"github.com/alanyoungcy/shadowmarket/internal/starknet"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSimulatedBundle(t *testing.T) {
	ctx := context.Background()
	b := NewSimulated(SimConfig{Seed: true}, nil, discard)
	assert.Equal(t, ModeSim, b.Mode)
	require.NotNil(t, b.Chain)
	assert.IsType(t, sim.Prover{}, b.Prover)

	markets, err := b.Contracts.ListMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, markets, 4)
	assert.Equal(t, "4", markets[0].ID)
	assert.Equal(t, domain.MarketStatusResolved, markets[0].Status)

	sess, err := b.Wallet.ActiveSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess, "sim wallet starts unauthorized")

	got, err := b.Wallet.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x07f4c0de2ab1", got.Address)
	assert.Equal(t, "SN_SIM", got.ChainID)
	assert.Equal(t, "Simulated ArgentX", got.Connector)

	vault, err := b.Contracts.VaultSnapshot(ctx, got.Address)
	require.NoError(t, err)
	assert.Equal(t, "25000", vault.UserAvailable)
}

func TestLiveBundleWithoutWallet(t *testing.T) {
	ctx := context.Background()
	b := NewLive(starknet.NewRegistry(), contracts.Config{FactoryAddress: "0xfac"}, nil, discard)
	assert.Equal(t, ModeLive, b.Mode)
	assert.Nil(t, b.Chain)

	_, err := b.Wallet.Connect(ctx)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
	assert.Nil(t, b.Session.Get())

	_, err = b.Contracts.FactorySnapshot(ctx)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)

	_, err = b.Prover.GenerateClaimProof(ctx, domain.ClaimProofInput{})
	assert.ErrorIs(t, err, domain.ErrProverUnavailable)
}

func TestLiveBundlePassiveDiscovery(t *testing.T) {
	ctx := context.Background()
	chain := sim.NewChain("0xfac", "0xva")
	chain.SeedMarket("0x1", "0x2", "1780167600")

	reg := starknet.NewRegistry()
	require.NoError(t, reg.Inject("starknet_braavos", sim.NewWallet(chain, "0xabc", "Braavos", false)))
	b := NewLive(reg, contracts.Config{FactoryAddress: "0xfac"}, nil, discard)

	markets, err := b.Contracts.ListMarkets(ctx)
	require.NoError(t, err, "reads use the passively detected provider before connect")
	assert.Len(t, markets, 1)
}
