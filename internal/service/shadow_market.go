package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/integrations"
	"github.com/alanyoungcy/shadowmarket/internal/orchestrator"
)

// State is the caller-visible view of the market service.
type State struct {
	Mode           integrations.Mode       `json:"mode"`
	Wallet         *domain.WalletSession   `json:"wallet"`
	Markets        []domain.MarketSummary  `json:"markets"`
	SelectedMarket *domain.MarketSummary   `json:"selectedMarket"`
	Factory        *domain.FactorySnapshot `json:"factory"`
	Vault          *domain.VaultSnapshot   `json:"vault"`
	Operations     orchestrator.Snapshot   `json:"operations"`
}

// ClaimParams are the caller-supplied parts of a reward claim. A missing
// nullifier is generated; a missing proof is requested from the prover.
type ClaimParams struct {
	Nullifier string                `json:"nullifier"`
	Amount    string                `json:"amount"`
	Proof     *domain.ProofArtifact `json:"proof,omitempty"`
}

// ShadowMarket runs every user action through the orchestrator and keeps
// the resulting wallet, market and vault state.
type ShadowMarket struct {
	bundle *integrations.Bundle
	orch   *orchestrator.Orchestrator
	nonce  func() string
	logger *slog.Logger

	mu         sync.RWMutex
	wallet     *domain.WalletSession
	markets    []domain.MarketSummary
	selectedID string
	factory    *domain.FactorySnapshot
	vault      *domain.VaultSnapshot
}

// NewShadowMarket creates a ShadowMarket over bundle.
func NewShadowMarket(bundle *integrations.Bundle, orch *orchestrator.Orchestrator, logger *slog.Logger) *ShadowMarket {
	return &ShadowMarket{
		bundle: bundle,
		orch:   orch,
		nonce:  randomFelt,
		logger: logger.With(slog.String("component", "shadow_market")),
	}
}

// Orchestrator exposes the underlying orchestrator.
func (s *ShadowMarket) Orchestrator() *orchestrator.Orchestrator { return s.orch }

// Refresh re-reads markets, the factory counter, the active session and,
// when connected, the vault.
func (s *ShadowMarket) Refresh(ctx context.Context) error {
	return s.orch.Do(ctx, orchestrator.KeyBoot, func(ctx context.Context) error {
		markets, err := s.bundle.Contracts.ListMarkets(ctx)
		if err != nil {
			return err
		}
		snap, err := s.bundle.Contracts.FactorySnapshot(ctx)
		if err != nil {
			return err
		}
		sess, err := s.bundle.Wallet.ActiveSession(ctx)
		if err != nil {
			return err
		}
		vault, err := s.loadVault(ctx, sess)
		if err != nil {
			return err
		}

		s.mu.Lock()
		s.markets = markets
		s.factory = &snap
		if s.selectedID == "" && len(markets) > 0 {
			s.selectedID = markets[0].ID
		}
		s.wallet = sess
		s.vault = vault
		s.mu.Unlock()
		return nil
	})
}

// loadVault reads the vault for sess. No session or no configured vault
// yields nil.
func (s *ShadowMarket) loadVault(ctx context.Context, sess *domain.WalletSession) (*domain.VaultSnapshot, error) {
	if sess == nil {
		return nil, nil
	}
	v, err := s.bundle.Contracts.VaultSnapshot(ctx, sess.Address)
	if errors.Is(err, domain.ErrConfigMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ConnectWallet authorizes the injected wallet and loads its vault.
func (s *ShadowMarket) ConnectWallet(ctx context.Context) (domain.WalletSession, error) {
	return orchestrator.Run(ctx, s.orch, orchestrator.KeyConnect, func(ctx context.Context) (domain.WalletSession, error) {
		sess, err := s.bundle.Wallet.Connect(ctx)
		if err != nil {
			s.orch.LogActivity(ctx, "Wallet connection failed", err.Error(), domain.SeverityWarning)
			return domain.WalletSession{}, err
		}
		vault, err := s.loadVault(ctx, &sess)
		if err != nil {
			return domain.WalletSession{}, err
		}

		s.mu.Lock()
		s.wallet = &sess
		s.vault = vault
		s.mu.Unlock()

		s.orch.LogActivity(ctx, "Wallet connected", fmt.Sprintf("%s on %s", sess.Connector, sess.ChainID), domain.SeveritySuccess)
		return sess, nil
	})
}

// DisconnectWallet clears the session. It is not tracked by a key.
func (s *ShadowMarket) DisconnectWallet(ctx context.Context) error {
	if err := s.bundle.Wallet.Disconnect(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.wallet = nil
	s.vault = nil
	s.mu.Unlock()

	s.orch.LogActivity(ctx, "Wallet disconnected", "Session cleared", domain.SeverityInfo)
	return nil
}

// CreateMarket submits a market creation. The returned identifier is a
// prediction; the market appears with its real address after a refresh.
func (s *ShadowMarket) CreateMarket(ctx context.Context, req domain.CreateMarketRequest) (domain.CreateMarketResult, error) {
	res, err := orchestrator.Run(ctx, s.orch, orchestrator.KeyCreate, func(ctx context.Context) (domain.CreateMarketResult, error) {
		res, err := s.bundle.Contracts.CreateMarket(ctx, req)
		if err != nil {
			s.orch.LogActivity(ctx, "Market creation failed", err.Error(), domain.SeverityWarning)
			return domain.CreateMarketResult{}, err
		}
		s.orch.LogActivity(ctx, "Market creation submitted",
			fmt.Sprintf("Market #%s (predicted) | %s", res.MarketID, res.TxHash), domain.SeverityInfo)
		return res, nil
	})
	if err != nil {
		return res, err
	}
	s.refreshAfter(ctx)
	return res, nil
}

// AddCommitment inserts a caller-built commitment into a market.
func (s *ShadowMarket) AddCommitment(ctx context.Context, req domain.AddCommitmentRequest) (domain.TxReceipt, error) {
	receipt, err := orchestrator.Run(ctx, s.orch, orchestrator.KeyCommitment, func(ctx context.Context) (domain.TxReceipt, error) {
		receipt, err := s.bundle.Contracts.AddCommitment(ctx, req)
		if err != nil {
			s.orch.LogActivity(ctx, "Commitment rejected", err.Error(), domain.SeverityWarning)
			return domain.TxReceipt{}, err
		}
		s.orch.LogActivity(ctx, "Position commitment accepted",
			fmt.Sprintf("Commitment %s inserted into %s | %s", req.Commitment, req.MarketAddress, receipt.TxHash), domain.SeveritySuccess)
		return receipt, nil
	})
	if err != nil {
		return receipt, err
	}
	s.refreshAfter(ctx)
	return receipt, nil
}

// PlacePosition proves and commits a private position on the selected
// market.
func (s *ShadowMarket) PlacePosition(ctx context.Context, side domain.PositionSide, amount string) (domain.TxReceipt, error) {
	if !side.Valid() {
		return domain.TxReceipt{}, fmt.Errorf("service: position side %q: %w", side, domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(amount) == "" {
		return domain.TxReceipt{}, fmt.Errorf("service: position amount: %w", domain.ErrInvalidArgument)
	}
	market, err := s.selected()
	if err != nil {
		return domain.TxReceipt{}, err
	}

	receipt, err := orchestrator.Run(ctx, s.orch, orchestrator.KeyPosition, func(ctx context.Context) (domain.TxReceipt, error) {
		commitment := s.nonce()
		proof, err := s.bundle.Prover.GeneratePositionProof(ctx, domain.PositionProofInput{
			MarketID:     market.ID,
			Side:         side,
			Amount:       amount,
			Commitment:   commitment,
			PreviousRoot: market.MerkleRoot,
		})
		if err != nil {
			return domain.TxReceipt{}, err
		}
		receipt, err := s.bundle.Contracts.AddCommitment(ctx, domain.AddCommitmentRequest{
			MarketAddress: market.Address,
			Commitment:    commitment,
			Proof:         proof,
		})
		if err != nil {
			s.orch.LogActivity(ctx, "Position rejected", err.Error(), domain.SeverityWarning)
			return domain.TxReceipt{}, err
		}
		s.orch.LogActivity(ctx, "Private position submitted",
			fmt.Sprintf("Market #%s %s %s | %s", market.ID, strings.ToUpper(string(side)), amount, receipt.TxHash), domain.SeveritySuccess)
		return receipt, nil
	})
	if err != nil {
		return receipt, err
	}
	s.refreshAfter(ctx)
	return receipt, nil
}

// ResolveMarket settles the selected market.
func (s *ShadowMarket) ResolveMarket(ctx context.Context, outcome domain.PositionSide) (domain.TxReceipt, error) {
	market, err := s.selected()
	if err != nil {
		return domain.TxReceipt{}, err
	}

	receipt, err := orchestrator.Run(ctx, s.orch, orchestrator.KeyResolve, func(ctx context.Context) (domain.TxReceipt, error) {
		receipt, err := s.bundle.Contracts.ResolveMarket(ctx, domain.ResolveMarketRequest{
			MarketAddress: market.Address,
			Outcome:       outcome,
		})
		if err != nil {
			return domain.TxReceipt{}, err
		}
		s.orch.LogActivity(ctx, "Market resolved",
			fmt.Sprintf("Market #%s resolved to %s | %s", market.ID, strings.ToUpper(string(outcome)), receipt.TxHash), domain.SeverityWarning)
		return receipt, nil
	})
	if err != nil {
		return receipt, err
	}
	s.refreshAfter(ctx)
	return receipt, nil
}

// ClaimReward redeems the connected wallet's reward on the selected market.
func (s *ShadowMarket) ClaimReward(ctx context.Context, p ClaimParams) (domain.TxReceipt, error) {
	market, err := s.selected()
	if err != nil {
		return domain.TxReceipt{}, err
	}
	sess := s.currentWallet()
	if sess == nil {
		return domain.TxReceipt{}, domain.ErrSessionRequired
	}

	receipt, err := orchestrator.Run(ctx, s.orch, orchestrator.KeyClaim, func(ctx context.Context) (domain.TxReceipt, error) {
		proof := p.Proof
		if proof == nil {
			expected := domain.SideYes
			if market.ResolvedOutcome != nil {
				expected = *market.ResolvedOutcome
			}
			generated, err := s.bundle.Prover.GenerateClaimProof(ctx, domain.ClaimProofInput{
				MarketID:        market.ID,
				ExpectedOutcome: expected,
				PayoutRecipient: sess.Address,
			})
			if err != nil {
				return domain.TxReceipt{}, err
			}
			proof = &generated
		}
		nullifier := p.Nullifier
		if nullifier == "" {
			nullifier = s.nonce()
		}

		receipt, err := s.bundle.Contracts.ClaimReward(ctx, domain.ClaimRewardRequest{
			MarketAddress:   market.Address,
			Nullifier:       nullifier,
			PayoutRecipient: sess.Address,
			PayoutAmount:    p.Amount,
			Proof:           *proof,
		})
		if err != nil {
			s.orch.LogActivity(ctx, "Claim prevented", err.Error(), domain.SeverityWarning)
			return domain.TxReceipt{}, err
		}
		s.orch.LogActivity(ctx, "Reward claimed",
			fmt.Sprintf("Payout %s sent to %s | %s", p.Amount, sess.Address, receipt.TxHash), domain.SeveritySuccess)
		return receipt, nil
	})
	if err != nil {
		return receipt, err
	}
	s.refreshAfter(ctx)
	return receipt, nil
}

// Deposit shields amount into the vault behind a fresh note commitment.
func (s *ShadowMarket) Deposit(ctx context.Context, amount string) (domain.TxReceipt, error) {
	receipt, err := orchestrator.Run(ctx, s.orch, orchestrator.KeyDeposit, func(ctx context.Context) (domain.TxReceipt, error) {
		receipt, err := s.bundle.Contracts.Deposit(ctx, domain.DepositRequest{
			Amount:         amount,
			NoteCommitment: s.nonce(),
		})
		if err != nil {
			return domain.TxReceipt{}, err
		}
		s.orch.LogActivity(ctx, "Collateral shielded",
			fmt.Sprintf("%s deposited into ShieldVault | %s", amount, receipt.TxHash), domain.SeverityInfo)
		return receipt, nil
	})
	if err != nil {
		return receipt, err
	}
	s.reloadVault(ctx)
	return receipt, nil
}

// Withdraw unshields amount to the connected wallet.
func (s *ShadowMarket) Withdraw(ctx context.Context, amount string) (domain.TxReceipt, error) {
	sess := s.currentWallet()
	if sess == nil {
		return domain.TxReceipt{}, domain.ErrSessionRequired
	}

	receipt, err := orchestrator.Run(ctx, s.orch, orchestrator.KeyWithdraw, func(ctx context.Context) (domain.TxReceipt, error) {
		vault := s.currentVault()
		if vault == nil {
			loaded, err := s.loadVault(ctx, sess)
			if err != nil {
				return domain.TxReceipt{}, err
			}
			if loaded == nil {
				return domain.TxReceipt{}, fmt.Errorf("service: withdraw: %w: vault address", domain.ErrConfigMissing)
			}
			vault = loaded
		}

		proof, err := s.bundle.Prover.GenerateWithdrawProof(ctx, domain.WithdrawProofInput{
			Amount:    amount,
			Recipient: sess.Address,
			OldRoot:   vault.NoteRoot,
		})
		if err != nil {
			return domain.TxReceipt{}, err
		}
		receipt, err := s.bundle.Contracts.Withdraw(ctx, domain.WithdrawRequest{
			Nullifier: s.nonce(),
			Recipient: sess.Address,
			Amount:    amount,
			Proof:     proof,
		})
		if err != nil {
			return domain.TxReceipt{}, err
		}
		s.orch.LogActivity(ctx, "Collateral withdrawn",
			fmt.Sprintf("%s unlocked to %s | %s", amount, sess.Address, receipt.TxHash), domain.SeverityInfo)
		return receipt, nil
	})
	if err != nil {
		return receipt, err
	}
	s.reloadVault(ctx)
	return receipt, nil
}

// SelectMarket makes id the target of position, resolve and claim.
func (s *ShadowMarket) SelectMarket(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.markets {
		if m.ID == id {
			s.selectedID = id
			return nil
		}
	}
	return fmt.Errorf("service: market %q: %w", id, domain.ErrNotFound)
}

// State returns a copy of the current state.
func (s *ShadowMarket) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Mode:       s.bundle.Mode,
		Markets:    append([]domain.MarketSummary(nil), s.markets...),
		Operations: s.orch.Snapshot(),
	}
	if s.wallet != nil {
		w := *s.wallet
		st.Wallet = &w
	}
	if s.factory != nil {
		f := *s.factory
		st.Factory = &f
	}
	if s.vault != nil {
		v := *s.vault
		st.Vault = &v
	}
	if m, ok := s.selectedLocked(); ok {
		st.SelectedMarket = &m
	}
	return st
}

// selected returns the selected market, falling back to the newest one.
func (s *ShadowMarket) selected() (domain.MarketSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.selectedLocked()
	if !ok {
		return domain.MarketSummary{}, domain.ErrNoMarketSelected
	}
	return m, nil
}

func (s *ShadowMarket) selectedLocked() (domain.MarketSummary, bool) {
	for _, m := range s.markets {
		if m.ID == s.selectedID {
			return m, true
		}
	}
	if len(s.markets) > 0 {
		return s.markets[0], true
	}
	return domain.MarketSummary{}, false
}

func (s *ShadowMarket) currentWallet() *domain.WalletSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.wallet == nil {
		return nil
	}
	w := *s.wallet
	return &w
}

func (s *ShadowMarket) currentVault() *domain.VaultSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.vault == nil {
		return nil
	}
	v := *s.vault
	return &v
}

// refreshAfter refreshes state after a successful mutation. A failed
// refresh is visible through the boot key and does not fail the mutation.
func (s *ShadowMarket) refreshAfter(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "shadow_market: refresh after mutation failed",
			slog.String("error", err.Error()),
		)
	}
}

func (s *ShadowMarket) reloadVault(ctx context.Context) {
	sess := s.currentWallet()
	vault, err := s.loadVault(ctx, sess)
	if err != nil {
		s.logger.WarnContext(ctx, "shadow_market: vault reload failed",
			slog.String("error", err.Error()),
		)
		return
	}
	s.mu.Lock()
	s.vault = vault
	s.mu.Unlock()
}

// randomFelt returns a fresh 128-bit value as a 0x-prefixed felt.
func randomFelt() string {
	id := uuid.New()
	return "0x" + hex.EncodeToString(id[:])
}
