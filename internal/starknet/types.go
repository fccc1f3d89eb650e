// Package starknet defines the boundary between this layer and a Starknet
// wallet or node: the call shape, the injected-wallet capability set, the
// ordered injection points, and JSON-RPC implementations of each.
package starknet

import (
	"context"
	"errors"
)

// ErrUnsupportedOptions is returned by Enabler.Enable when the wallet rejects
// the shape of the options argument. It is distinct from an authorization
// refusal.
var ErrUnsupportedOptions = errors.New("starknet: enable options not supported")

// Call is one contract invocation: target, entry point name and calldata felts.
type Call struct {
	ContractAddress string   `json:"contractAddress"`
	Entrypoint      string   `json:"entrypoint"`
	Calldata        []string `json:"calldata"`
}

// Provider executes read-only calls.
type Provider interface {
	CallContract(ctx context.Context, call Call) ([]string, error)
}

// ExecuteResult is the transaction record returned by Account.Execute. Wallets
// disagree on the field name, so both are accepted.
type ExecuteResult struct {
	TransactionHash    string `json:"transaction_hash,omitempty"`
	TransactionHashAlt string `json:"transactionHash,omitempty"`
}

// TxHash returns whichever hash field is set, or "0x".
func (r ExecuteResult) TxHash() string {
	if r.TransactionHash != "" {
		return r.TransactionHash
	}
	if r.TransactionHashAlt != "" {
		return r.TransactionHashAlt
	}
	return "0x"
}

// Account signs and submits state-mutating calls.
type Account interface {
	Address() string
	// Provider may be nil; callers then fall back to the wallet's provider.
	Provider() Provider
	Execute(ctx context.Context, calls ...Call) (ExecuteResult, error)
}

// WalletInfo is the descriptive part of an injected wallet. Any field may be
// empty.
type WalletInfo struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name,omitempty"`
	ChainID         string `json:"chainId,omitempty"`
	SelectedAddress string `json:"selectedAddress,omitempty"`
	IsConnected     bool   `json:"isConnected,omitempty"`
}

// Wallet is the capability set an injected wallet exposes.
type Wallet interface {
	Info(ctx context.Context) (WalletInfo, error)
	// Account returns nil, nil when the wallet has no authorized account.
	Account(ctx context.Context) (Account, error)
	// Provider may be nil.
	Provider() Provider
}

// EnableOptions is the enhanced-UI argument to Enabler.Enable.
type EnableOptions struct {
	ShowModal bool `json:"showModal"`
}

// Enabler is implemented by wallets that expose an explicit authorization
// step. A nil opts requests the bare variant.
type Enabler interface {
	Enable(ctx context.Context, opts *EnableOptions) ([]string, error)
}
