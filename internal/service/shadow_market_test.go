package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/integrations"
	"github.com/alanyoungcy/shadowmarket/internal/orchestrator"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newSim(t *testing.T) (*ShadowMarket, *integrations.Bundle) {
	t.Helper()
	b := integrations.NewSimulated(integrations.SimConfig{Seed: true}, nil, discard)
	svc := NewShadowMarket(b, orchestrator.New(discard), discard)
	require.NoError(t, svc.Refresh(context.Background()))
	return svc, b
}

func TestRefreshLoadsMarkets(t *testing.T) {
	svc, _ := newSim(t)
	st := svc.State()

	assert.Equal(t, integrations.ModeSim, st.Mode)
	assert.Nil(t, st.Wallet)
	assert.Nil(t, st.Vault)
	require.Len(t, st.Markets, 4)
	require.NotNil(t, st.Factory)
	assert.Equal(t, uint64(5), st.Factory.NextMarketID)
	require.NotNil(t, st.SelectedMarket)
	assert.Equal(t, "4", st.SelectedMarket.ID)
	assert.Equal(t, orchestrator.StatusSuccess, st.Operations.Statuses[orchestrator.KeyBoot])
}

func TestConnectAndDisconnect(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSim(t)

	sess, err := svc.ConnectWallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x07f4c0de2ab1", sess.Address)

	st := svc.State()
	require.NotNil(t, st.Wallet)
	require.NotNil(t, st.Vault)
	assert.Equal(t, "25000", st.Vault.UserAvailable)
	require.NotEmpty(t, st.Operations.Activity)
	assert.Equal(t, "Wallet connected", st.Operations.Activity[0].Title)
	assert.Equal(t, "Simulated ArgentX on SN_SIM", st.Operations.Activity[0].Detail)

	require.NoError(t, svc.DisconnectWallet(ctx))
	st = svc.State()
	assert.Nil(t, st.Wallet)
	assert.Nil(t, st.Vault)
	assert.Equal(t, "Wallet disconnected", st.Operations.Activity[0].Title)
	assert.Equal(t, domain.SeverityInfo, st.Operations.Activity[0].Severity)
}

func TestPlacePositionAdvancesMarket(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSim(t)
	_, err := svc.ConnectWallet(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.SelectMarket("3"))

	before := svc.State().SelectedMarket
	receipt, err := svc.PlacePosition(ctx, domain.SideYes, "120")
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.TxHash)

	after := svc.State().SelectedMarket
	require.NotNil(t, after)
	assert.Equal(t, "3", after.ID)
	assert.Equal(t, before.NextIndex+1, after.NextIndex)
	assert.NotEqual(t, before.MerkleRoot, after.MerkleRoot)

	item := svc.State().Operations.Activity[0]
	assert.Equal(t, "Private position submitted", item.Title)
	assert.Contains(t, item.Detail, "Market #3 YES 120")
	assert.Equal(t, orchestrator.StatusSuccess, svc.Orchestrator().Status(orchestrator.KeyPosition))
}

func TestPlacePositionOnResolvedMarketFails(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSim(t)
	_, err := svc.ConnectWallet(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.SelectMarket("4"))

	_, err = svc.PlacePosition(ctx, domain.SideNo, "10")
	require.ErrorIs(t, err, domain.ErrChainRejected)
	assert.Equal(t, orchestrator.StatusError, svc.Orchestrator().Status(orchestrator.KeyPosition))
	assert.Equal(t, err.Error(), svc.Orchestrator().Err())
	assert.Equal(t, "Position rejected", svc.State().Operations.Activity[0].Title)
}

func TestPlacePositionValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSim(t)

	_, err := svc.PlacePosition(ctx, domain.PositionSide("maybe"), "1")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = svc.PlacePosition(ctx, domain.SideYes, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.PlacePosition(ctx, domain.SideYes, "1")
	assert.ErrorIs(t, err, domain.ErrSessionRequired)
}

func TestNoMarketSelected(t *testing.T) {
	ctx := context.Background()
	b := integrations.NewSimulated(integrations.SimConfig{}, nil, discard)
	svc := NewShadowMarket(b, orchestrator.New(discard), discard)
	require.NoError(t, svc.Refresh(ctx))

	assert.Nil(t, svc.State().SelectedMarket)
	_, err := svc.PlacePosition(ctx, domain.SideYes, "1")
	assert.ErrorIs(t, err, domain.ErrNoMarketSelected)
	_, err = svc.ResolveMarket(ctx, domain.SideYes)
	assert.ErrorIs(t, err, domain.ErrNoMarketSelected)
	_, err = svc.ClaimReward(ctx, ClaimParams{Amount: "1"})
	assert.ErrorIs(t, err, domain.ErrNoMarketSelected)
	assert.ErrorIs(t, svc.SelectMarket("0"), domain.ErrNotFound)
}

func TestCreateMarketAppearsAfterRefresh(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSim(t)
	_, err := svc.ConnectWallet(ctx)
	require.NoError(t, err)

	res, err := svc.CreateMarket(ctx, domain.CreateMarketRequest{
		QuestionHash: "0x0abc",
		Oracle:       "0x0def",
		EndTime:      time.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "5", res.MarketID)
	assert.Equal(t, domain.PendingMarketAddress, res.MarketAddress)

	st := svc.State()
	require.Len(t, st.Markets, 5)
	assert.Equal(t, "5", st.Markets[0].ID)
	assert.Equal(t, "0x0abc", st.Markets[0].QuestionHash)
	assert.Equal(t, uint64(6), st.Factory.NextMarketID)
}

func TestResolveThenClaim(t *testing.T) {
	ctx := context.Background()
	svc, b := newSim(t)
	sess, err := svc.ConnectWallet(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.SelectMarket("1"))

	_, err = svc.ResolveMarket(ctx, domain.SideYes)
	require.NoError(t, err)
	m := svc.State().SelectedMarket
	require.NotNil(t, m)
	assert.Equal(t, domain.MarketStatusResolved, m.Status)
	require.NotNil(t, m.ResolvedOutcome)
	assert.Equal(t, domain.SideYes, *m.ResolvedOutcome)
	assert.Equal(t, domain.SeverityWarning, svc.State().Operations.Activity[0].Severity)

	_, err = svc.ClaimReward(ctx, ClaimParams{Nullifier: "0x77", Amount: "500"})
	require.NoError(t, err)
	vault, err := b.Contracts.VaultSnapshot(ctx, sess.Address)
	require.NoError(t, err)
	assert.Equal(t, "25500", vault.UserAvailable)
	assert.Equal(t, "Reward claimed", svc.State().Operations.Activity[0].Title)

	_, err = svc.ClaimReward(ctx, ClaimParams{Nullifier: "0x77", Amount: "500"})
	require.ErrorIs(t, err, domain.ErrChainRejected)
	assert.Equal(t, "Claim prevented", svc.State().Operations.Activity[0].Title)
	assert.NotEmpty(t, svc.Orchestrator().KeyError(orchestrator.KeyClaim))
}

func TestDepositAndWithdraw(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSim(t)

	_, err := svc.Withdraw(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrSessionRequired)

	_, err = svc.ConnectWallet(ctx)
	require.NoError(t, err)

	_, err = svc.Deposit(ctx, "1000")
	require.NoError(t, err)
	v := svc.State().Vault
	require.NotNil(t, v)
	assert.Equal(t, "1000", v.TotalPool)
	assert.Equal(t, "24000", v.UserAvailable)
	assert.Equal(t, uint64(1), v.UserShieldedNotes)
	root := v.NoteRoot

	_, err = svc.Withdraw(ctx, "400")
	require.NoError(t, err)
	v = svc.State().Vault
	assert.Equal(t, "600", v.TotalPool)
	assert.Equal(t, "24400", v.UserAvailable)
	assert.Equal(t, root, v.NoteRoot)
	assert.Equal(t, "Collateral withdrawn", svc.State().Operations.Activity[0].Title)
}

type failingProver struct{ domain.ProverAdapter }

func (failingProver) GeneratePositionProof(context.Context, domain.PositionProofInput) (domain.ProofArtifact, error) {
	return domain.ProofArtifact{}, errors.Join(domain.ErrProverUnavailable, errors.New("queue full"))
}

func TestProverFailureLeavesMarketUntouched(t *testing.T) {
	ctx := context.Background()
	b := integrations.NewSimulated(integrations.SimConfig{Seed: true}, failingProver{}, discard)
	svc := NewShadowMarket(b, orchestrator.New(discard), discard)
	require.NoError(t, svc.Refresh(ctx))
	_, err := svc.ConnectWallet(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.SelectMarket("0"))
	calls := b.Chain.Calls()

	_, err = svc.PlacePosition(ctx, domain.SideYes, "5")
	require.ErrorIs(t, err, domain.ErrProverUnavailable)
	assert.Equal(t, calls, b.Chain.Calls())
	assert.Equal(t, uint64(0), svc.State().SelectedMarket.NextIndex)
}

func TestStateIsACopy(t *testing.T) {
	svc, _ := newSim(t)
	st := svc.State()
	st.Markets[0].ID = "mutated"
	st.SelectedMarket.ID = "mutated"
	assert.Equal(t, "4", svc.State().Markets[0].ID)
	assert.Equal(t, "4", svc.State().SelectedMarket.ID)
}
