package contracts

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/felt"
)

// VaultSnapshot reads the pool state and, when user is set, that user's
// balance and note count.
func (a *Adapter) VaultSnapshot(ctx context.Context, user string) (domain.VaultSnapshot, error) {
	vault, err := a.vault()
	if err != nil {
		return domain.VaultSnapshot{}, err
	}

	var root, nextIndex, pool, balance, notes []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		root, err = a.call(gctx, vault, "note_root")
		return err
	})
	g.Go(func() error {
		var err error
		nextIndex, err = a.call(gctx, vault, "next_note_index")
		return err
	})
	g.Go(func() error {
		var err error
		pool, err = a.call(gctx, vault, "total_pool")
		return err
	})
	if user != "" {
		g.Go(func() error {
			var err error
			balance, err = a.call(gctx, vault, "balance_of", user)
			return err
		})
		g.Go(func() error {
			var err error
			notes, err = a.call(gctx, vault, "notes_of", user)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return domain.VaultSnapshot{}, err
	}

	snap := domain.VaultSnapshot{NoteRoot: at(root, 0, "0x0"), UserAvailable: "0"}
	if snap.NextNoteIndex, err = a.decoder.Uint(at(nextIndex, 0, "0")); err != nil {
		return domain.VaultSnapshot{}, fmt.Errorf("contracts: next_note_index: %w", err)
	}
	if snap.TotalPool, err = felt.JoinU256(at(pool, 0, "0"), at(pool, 1, "0")); err != nil {
		return domain.VaultSnapshot{}, fmt.Errorf("contracts: total_pool: %w", err)
	}
	if user != "" {
		if snap.UserAvailable, err = felt.JoinU256(at(balance, 0, "0"), at(balance, 1, "0")); err != nil {
			return domain.VaultSnapshot{}, fmt.Errorf("contracts: balance_of: %w", err)
		}
		if snap.UserShieldedNotes, err = a.decoder.Uint(at(notes, 0, "0")); err != nil {
			return domain.VaultSnapshot{}, fmt.Errorf("contracts: notes_of: %w", err)
		}
	}
	return snap, nil
}

// Deposit shields collateral: deposit(noteCommitment, amountLow, amountHigh).
func (a *Adapter) Deposit(ctx context.Context, req domain.DepositRequest) (domain.TxReceipt, error) {
	vault, err := a.vault()
	if err != nil {
		return domain.TxReceipt{}, err
	}
	commitment, err := felt.FromText(req.NoteCommitment)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: note commitment: %w", err)
	}
	low, high, err := felt.SplitU256(req.Amount)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: deposit amount: %w", err)
	}
	if low == "0" && high == "0" {
		return domain.TxReceipt{}, fmt.Errorf("contracts: deposit amount: %w: must be positive", domain.ErrInvalidArgument)
	}

	txHash, err := a.invoke(ctx, vault, "deposit", []string{commitment, low, high})
	if err != nil {
		return domain.TxReceipt{}, err
	}
	return domain.TxReceipt{TxHash: txHash}, nil
}

// Withdraw unshields collateral: withdraw(nullifier, recipient, amountLow,
// amountHigh, programHash, publicInputs..., proof...).
func (a *Adapter) Withdraw(ctx context.Context, req domain.WithdrawRequest) (domain.TxReceipt, error) {
	vault, err := a.vault()
	if err != nil {
		return domain.TxReceipt{}, err
	}
	nullifier, err := felt.FromText(req.Nullifier)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: nullifier: %w", err)
	}
	recipient, err := felt.FromText(req.Recipient)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: recipient: %w", err)
	}
	low, high, err := felt.SplitU256(req.Amount)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: withdraw amount: %w", err)
	}
	if low == "0" && high == "0" {
		return domain.TxReceipt{}, fmt.Errorf("contracts: withdraw amount: %w: must be positive", domain.ErrInvalidArgument)
	}
	proof, err := felt.EncodeProof(req.Proof)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("contracts: withdraw: %w", err)
	}

	calldata := append([]string{nullifier, recipient, low, high}, proof...)
	txHash, err := a.invoke(ctx, vault, "withdraw", calldata)
	if err != nil {
		return domain.TxReceipt{}, err
	}
	return domain.TxReceipt{TxHash: txHash}, nil
}
