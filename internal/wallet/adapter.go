// Package wallet locates an injected Starknet wallet, authorizes it and keeps
// the resulting handles in a session.Store.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/session"
	"github.com/alanyoungcy/shadowmarket/internal/starknet"
)

const (
	unknownChainID   = "SN_UNKNOWN"
	defaultConnector = "Injected Wallet"
)

// Adapter implements domain.WalletAdapter over a starknet.Registry.
type Adapter struct {
	registry *starknet.Registry
	store    *session.Store
	logger   *slog.Logger
}

// NewAdapter creates an Adapter that probes registry and writes to store.
func NewAdapter(registry *starknet.Registry, store *session.Store, logger *slog.Logger) *Adapter {
	return &Adapter{
		registry: registry,
		store:    store,
		logger:   logger.With(slog.String("component", "wallet")),
	}
}

// Connect authorizes the first injected wallet and stores its handles.
func (a *Adapter) Connect(ctx context.Context) (domain.WalletSession, error) {
	point, w := a.registry.Detect()
	if w == nil {
		return domain.WalletSession{}, domain.ErrWalletNotFound
	}

	if en, ok := w.(starknet.Enabler); ok {
		if err := enable(ctx, en); err != nil {
			return domain.WalletSession{}, fmt.Errorf("wallet: enable %s: %w", point, err)
		}
	}

	live, err := resolve(ctx, w)
	if err != nil {
		return domain.WalletSession{}, err
	}
	a.store.Set(live)

	sess := a.normalize(ctx, live)
	a.logger.InfoContext(ctx, "wallet: connected",
		slog.String("injection_point", point),
		slog.String("address", sess.Address),
		slog.String("chain_id", sess.ChainID),
	)
	return sess, nil
}

// Disconnect clears the session store. It never fails.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.store.Clear()
	a.logger.DebugContext(ctx, "wallet: disconnected")
	return nil
}

// ActiveSession returns the stored session, or silently re-discovers a wallet
// that already has an authorized account. It returns nil when nothing is
// connected.
func (a *Adapter) ActiveSession(ctx context.Context) (*domain.WalletSession, error) {
	if live := a.store.Get(); live != nil {
		sess := a.normalize(ctx, *live)
		return &sess, nil
	}

	_, w := a.registry.Detect()
	if w == nil {
		return nil, nil
	}
	acct, err := w.Account(ctx)
	if err != nil || acct == nil {
		return nil, nil
	}

	live, err := resolve(ctx, w)
	if err != nil {
		return nil, err
	}
	a.store.Set(live)

	sess := a.normalize(ctx, live)
	return &sess, nil
}

// enable asks for the enhanced prompt first and retries bare only when the
// wallet rejects the options argument itself.
func enable(ctx context.Context, en starknet.Enabler) error {
	_, err := en.Enable(ctx, &starknet.EnableOptions{ShowModal: true})
	if errors.Is(err, starknet.ErrUnsupportedOptions) {
		_, err = en.Enable(ctx, nil)
	}
	return err
}

func resolve(ctx context.Context, w starknet.Wallet) (session.Live, error) {
	acct, err := w.Account(ctx)
	if err != nil {
		return session.Live{}, fmt.Errorf("wallet: account: %w", err)
	}
	if acct == nil {
		return session.Live{}, domain.ErrAccountUnavailable
	}

	provider := acct.Provider()
	if provider == nil {
		provider = w.Provider()
	}
	if provider == nil {
		return session.Live{}, domain.ErrProviderUnavailable
	}
	return session.Live{Wallet: w, Account: acct, Provider: provider}, nil
}

func (a *Adapter) normalize(ctx context.Context, live session.Live) domain.WalletSession {
	info, err := live.Wallet.Info(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "wallet: info unavailable",
			slog.String("error", err.Error()),
		)
	}

	sess := domain.WalletSession{
		Address:   info.SelectedAddress,
		ChainID:   info.ChainID,
		Connector: info.Name,
	}
	if live.Account != nil && live.Account.Address() != "" {
		sess.Address = live.Account.Address()
	}
	if sess.ChainID == "" {
		sess.ChainID = unknownChainID
	}
	if sess.Connector == "" {
		sess.Connector = info.ID
	}
	if sess.Connector == "" {
		sess.Connector = defaultConnector
	}
	return sess
}

var _ domain.WalletAdapter = (*Adapter)(nil)
