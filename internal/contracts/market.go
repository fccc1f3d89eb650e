package contracts

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/felt"
)

// AddCommitment inserts a commitment into the market's tree:
// add_commitment(commitment, programHash, publicInputs..., proof...).
func (a *Adapter) AddCommitment(ctx context.Context, req domain.AddCommitmentRequest) (domain.TxReceipt, error) {
	market, err := felt.FromText(req.MarketAddress)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: market address: %w", err)
	}
	commitment, err := felt.FromText(req.Commitment)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: commitment: %w", err)
	}
	proof, err := felt.EncodeProof(req.Proof)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: add_commitment: %w", err)
	}

	calldata := append([]string{commitment}, proof...)
	txHash, err := a.invoke(ctx, market, "add_commitment", calldata)
	if err != nil {
		return domain.TxReceipt{}, err
	}
	return domain.TxReceipt{TxHash: txHash}, nil
}

// ResolveMarket settles the market: resolve_market(outcomeBit).
func (a *Adapter) ResolveMarket(ctx context.Context, req domain.ResolveMarketRequest) (domain.TxReceipt, error) {
	market, err := felt.FromText(req.MarketAddress)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: market address: %w", err)
	}
	outcome, err := felt.FromSide(req.Outcome)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: resolve_market: %w", err)
	}

	txHash, err := a.invoke(ctx, market, "resolve_market", []string{outcome})
	if err != nil {
		return domain.TxReceipt{}, err
	}
	return domain.TxReceipt{TxHash: txHash}, nil
}

// ClaimReward redeems a winning position:
// claim_reward(nullifier, recipient, amountLow, amountHigh, programHash,
// publicInputs..., proof...).
func (a *Adapter) ClaimReward(ctx context.Context, req domain.ClaimRewardRequest) (domain.TxReceipt, error) {
	market, err := felt.FromText(req.MarketAddress)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: market address: %w", err)
	}
	nullifier, err := felt.FromText(req.Nullifier)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: nullifier: %w", err)
	}
	recipient, err := felt.FromText(req.PayoutRecipient)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: payout recipient: %w", err)
	}
	low, high, err := felt.SplitU256(req.PayoutAmount)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: payout amount: %w", err)
	}
	proof, err := felt.EncodeProof(req.Proof)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: claim_reward: %w", err)
	}

	calldata := append([]string{nullifier, recipient, low, high}, proof...)
	txHash, err := a.invoke(ctx, market, "claim_reward", calldata)
	if err != nil {
		return domain.TxReceipt{}, err
	}
	return domain.TxReceipt{TxHash: txHash}, nil
}
