package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/shadowmarket/internal/contracts"
	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/session"
	"github.com/alanyoungcy/shadowmarket/internal/starknet"
)

const (
	factory = "0xfac"
	vault   = "0xba5e"
	user    = "0x07f4"
)

func newHarness(t *testing.T) (*Chain, *contracts.Adapter) {
	t.Helper()
	chain := NewChain(factory, vault)
	w := NewWallet(chain, user, "Sim", true)
	acct, err := w.Account(context.Background())
	require.NoError(t, err)

	store := session.New()
	store.Set(session.Live{Wallet: w, Account: acct, Provider: chain})
	a := contracts.NewAdapter(contracts.Config{FactoryAddress: factory, VaultAddress: vault}, store,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return chain, a
}

func TestMarketLifecycle(t *testing.T) {
	ctx := context.Background()
	chain, a := newHarness(t)
	chain.SeedMarket("0x0442", "0x0479", "1780167600")

	res, err := a.CreateMarket(ctx, domain.CreateMarketRequest{
		QuestionHash: "0xab",
		Oracle:       user,
		EndTime:      time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "1", res.MarketID)
	assert.NotEqual(t, "0x", res.TxHash)

	markets, err := a.ListMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, "1", markets[0].ID)
	assert.Equal(t, "0xab", markets[0].QuestionHash)
	created := markets[0]

	var prover Prover
	proof, err := prover.GeneratePositionProof(ctx, domain.PositionProofInput{MarketID: "1", Side: domain.SideYes, Amount: "100", Commitment: "0xc1"})
	require.NoError(t, err)
	_, err = a.AddCommitment(ctx, domain.AddCommitmentRequest{MarketAddress: created.Address, Commitment: "0xc1", Proof: proof})
	require.NoError(t, err)

	_, err = a.ResolveMarket(ctx, domain.ResolveMarketRequest{MarketAddress: created.Address, Outcome: domain.SideYes})
	require.NoError(t, err)
	_, err = a.ResolveMarket(ctx, domain.ResolveMarketRequest{MarketAddress: created.Address, Outcome: domain.SideNo})
	assert.ErrorIs(t, err, domain.ErrChainRejected)
	assert.ErrorIs(t, err, ErrMarketResolved)

	markets, err = a.ListMarkets(ctx)
	require.NoError(t, err)
	got := markets[0]
	assert.Equal(t, domain.MarketStatusResolved, got.Status)
	require.NotNil(t, got.ResolvedOutcome)
	assert.Equal(t, domain.SideYes, *got.ResolvedOutcome)
	assert.Equal(t, uint64(1), got.NextIndex)
	assert.NotEqual(t, "0x0", got.MerkleRoot)

	claimProof, err := prover.GenerateClaimProof(ctx, domain.ClaimProofInput{MarketID: "1", ExpectedOutcome: domain.SideYes, PayoutRecipient: user})
	require.NoError(t, err)
	claim := domain.ClaimRewardRequest{
		MarketAddress:   created.Address,
		Nullifier:       "0xnull1",
		PayoutRecipient: user,
		PayoutAmount:    "3400",
		Proof:           claimProof,
	}
	_, err = a.ClaimReward(ctx, claim)
	require.NoError(t, err)
	_, err = a.ClaimReward(ctx, claim)
	assert.ErrorIs(t, err, ErrNullifierUsed)
	assert.Contains(t, err.Error(), "nullifier already used")
}

func TestCommitmentAfterResolutionRejected(t *testing.T) {
	ctx := context.Background()
	chain, a := newHarness(t)
	addr := chain.SeedMarket("0x1", "0x2", "1780167600")
	require.NoError(t, chain.SeedResolution(addr, "0"))

	_, err := a.AddCommitment(ctx, domain.AddCommitmentRequest{
		MarketAddress: addr,
		Commitment:    "0xc",
		Proof:         domain.ProofArtifact{ProgramHash: "0xph"},
	})
	assert.ErrorIs(t, err, ErrMarketResolved)
}

func TestDiscoveryOverSimChain(t *testing.T) {
	ctx := context.Background()
	chain, a := newHarness(t)
	chain.SeedMarket("0x1", "0x2", "1780167600")
	chain.ReserveMarketID()
	bad := chain.SeedMarket("0x3", "0x4", "1780167600")
	chain.SeedMarket("0x5", "0x6", "1780167600")
	chain.FailCall(bad, "is_resolved", errors.New("mid-deployment"))

	markets, err := a.ListMarkets(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(markets))
	for _, m := range markets {
		ids = append(ids, m.ID)
		assert.Equal(t, m.ResolvedOutcome == nil, m.Status == domain.MarketStatusLive)
	}
	assert.Equal(t, []string{"3", "0"}, ids)

	chain.FailCall(bad, "is_resolved", nil)
	markets, err = a.ListMarkets(ctx)
	require.NoError(t, err)
	assert.Len(t, markets, 3)
}

func TestVaultFlow(t *testing.T) {
	ctx := context.Background()
	chain, a := newHarness(t)
	chain.Fund(user, big.NewInt(5000))

	_, err := a.Deposit(ctx, domain.DepositRequest{Amount: "1200", NoteCommitment: "0xnote1"})
	require.NoError(t, err)
	_, err = a.Deposit(ctx, domain.DepositRequest{Amount: "999999", NoteCommitment: "0xnote2"})
	assert.ErrorIs(t, err, ErrInsufficientFund)

	snap, err := a.VaultSnapshot(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "1200", snap.TotalPool)
	assert.Equal(t, "3800", snap.UserAvailable)
	assert.Equal(t, uint64(1), snap.UserShieldedNotes)
	assert.Equal(t, uint64(1), snap.NextNoteIndex)
	assert.NotEqual(t, "0x0", snap.NoteRoot)

	var prover Prover
	proof, err := prover.GenerateWithdrawProof(ctx, domain.WithdrawProofInput{Amount: "200", Recipient: user, OldRoot: snap.NoteRoot})
	require.NoError(t, err)
	req := domain.WithdrawRequest{Nullifier: "0xw1", Recipient: user, Amount: "200", Proof: proof}
	_, err = a.Withdraw(ctx, req)
	require.NoError(t, err)
	_, err = a.Withdraw(ctx, req)
	assert.ErrorIs(t, err, ErrNullifierUsed)

	snap, err = a.VaultSnapshot(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "1000", snap.TotalPool)
	assert.Equal(t, "4000", snap.UserAvailable)
}

func TestCheckProofFraming(t *testing.T) {
	assert.NoError(t, checkProof([]string{"0xph", "0", "0"}))
	assert.NoError(t, checkProof([]string{"0xph", "2", "0xa", "0xb", "1", "0x1"}))
	assert.ErrorIs(t, checkProof([]string{"0xph", "2", "0xa"}), ErrBadCalldata)
	assert.ErrorIs(t, checkProof([]string{"0xph", "0", "0", "0xextra"}), ErrBadCalldata)
	assert.ErrorIs(t, checkProof(nil), ErrBadCalldata)
}

func TestWalletAuthorization(t *testing.T) {
	ctx := context.Background()
	chain := NewChain(factory, vault)
	w := NewWallet(chain, user, "Sim", false)

	acct, err := w.Account(ctx)
	require.NoError(t, err)
	assert.Nil(t, acct)
	info, err := w.Info(ctx)
	require.NoError(t, err)
	assert.Empty(t, info.SelectedAddress)

	_, err = w.Enable(ctx, &starknet.EnableOptions{ShowModal: true})
	require.NoError(t, err)
	acct, err = w.Account(ctx)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, user, acct.Address())
}

func TestProverDeterministic(t *testing.T) {
	var p Prover
	in := domain.ClaimProofInput{MarketID: "3", ExpectedOutcome: domain.SideNo, PayoutRecipient: user}
	a1, err := p.GenerateClaimProof(context.Background(), in)
	require.NoError(t, err)
	a2, err := p.GenerateClaimProof(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Len(t, a1.PublicInputs, 2)
	assert.Len(t, a1.Proof, 2)

	in.MarketID = "4"
	a3, err := p.GenerateClaimProof(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, a1.ProgramHash, a3.ProgramHash)
	assert.NotEqual(t, a1.Proof, a3.Proof)
}
