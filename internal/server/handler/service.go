package handler

import (
	"context"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/service"
)

// ShadowMarket is the service surface the handlers drive. It is declared
// locally so handlers can be tested against a fake.
type ShadowMarket interface {
	State() service.State
	Refresh(ctx context.Context) error
	SelectMarket(id string) error

	ConnectWallet(ctx context.Context) (domain.WalletSession, error)
	DisconnectWallet(ctx context.Context) error

	CreateMarket(ctx context.Context, req domain.CreateMarketRequest) (domain.CreateMarketResult, error)
	AddCommitment(ctx context.Context, req domain.AddCommitmentRequest) (domain.TxReceipt, error)
	PlacePosition(ctx context.Context, side domain.PositionSide, amount string) (domain.TxReceipt, error)
	ResolveMarket(ctx context.Context, outcome domain.PositionSide) (domain.TxReceipt, error)
	ClaimReward(ctx context.Context, p service.ClaimParams) (domain.TxReceipt, error)

	Deposit(ctx context.Context, amount string) (domain.TxReceipt, error)
	Withdraw(ctx context.Context, amount string) (domain.TxReceipt, error)
}

var _ ShadowMarket = (*service.ShadowMarket)(nil)
