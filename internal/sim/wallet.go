package sim

import (
	"context"
	"sync"

	"github.com/alanyoungcy/shadowmarket/internal/starknet"
)

// Wallet is an injectable wallet whose account executes against a Chain.
// Its account is hidden until Enable is called, unless it was created
// already authorized.
type Wallet struct {
	chain   *Chain
	address string
	name    string
	chainID string

	mu      sync.Mutex
	enabled bool
}

// NewWallet creates a Wallet for address.
func NewWallet(chain *Chain, address, name string, authorized bool) *Wallet {
	return &Wallet{
		chain:   chain,
		address: address,
		name:    name,
		chainID: "SN_SIM",
		enabled: authorized,
	}
}

// Info implements starknet.Wallet.
func (w *Wallet) Info(context.Context) (starknet.WalletInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	info := starknet.WalletInfo{ID: "sim", Name: w.name, ChainID: w.chainID, IsConnected: w.enabled}
	if w.enabled {
		info.SelectedAddress = w.address
	}
	return info, nil
}

// Account implements starknet.Wallet.
func (w *Wallet) Account(context.Context) (starknet.Account, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.enabled {
		return nil, nil
	}
	return &account{chain: w.chain, address: w.address}, nil
}

// Provider implements starknet.Wallet.
func (w *Wallet) Provider() starknet.Provider { return w.chain }

// Enable implements starknet.Enabler. Options are accepted and ignored.
func (w *Wallet) Enable(context.Context, *starknet.EnableOptions) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enabled = true
	return []string{w.address}, nil
}

type account struct {
	chain   *Chain
	address string
}

func (a *account) Address() string             { return a.address }
func (a *account) Provider() starknet.Provider { return a.chain }

// Execute applies calls in order and stops at the first failure. Calls
// already applied stay applied.
func (a *account) Execute(ctx context.Context, calls ...starknet.Call) (starknet.ExecuteResult, error) {
	if err := ctx.Err(); err != nil {
		return starknet.ExecuteResult{}, err
	}
	var res starknet.ExecuteResult
	for _, call := range calls {
		hash, err := a.chain.execute(a.address, call)
		if err != nil {
			return starknet.ExecuteResult{}, err
		}
		res.TransactionHash = hash
	}
	return res, nil
}

var (
	_ starknet.Wallet  = (*Wallet)(nil)
	_ starknet.Enabler = (*Wallet)(nil)
	_ starknet.Account = (*account)(nil)
)
