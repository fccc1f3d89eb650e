package starknet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// codeInvalidParams is the JSON-RPC error code for a rejected argument shape.
const codeInvalidParams = -32602

// BridgeWallet is an injected wallet reached through a JSON-RPC wallet
// bridge. The bridge owns the keys; this side only asks it to authorize,
// describe itself, call and execute.
//
// Bridge methods:
//
//	wallet_info    -> WalletInfo
//	wallet_account -> {"address": "0x..."} | null
//	wallet_enable  [EnableOptions?] -> [address...]
//	wallet_call    [Call] -> result list (any accepted shape)
//	wallet_execute [[Call...]] -> ExecuteResult
type BridgeWallet struct {
	client *rpc.Client
}

// DialBridge connects to a wallet bridge endpoint.
func DialBridge(ctx context.Context, url string) (*BridgeWallet, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("starknet/bridge: dial %s: %w", url, err)
	}
	return NewBridgeWallet(client), nil
}

// NewBridgeWallet wraps an existing RPC client.
func NewBridgeWallet(client *rpc.Client) *BridgeWallet {
	return &BridgeWallet{client: client}
}

// Info implements Wallet.
func (w *BridgeWallet) Info(ctx context.Context) (WalletInfo, error) {
	var info WalletInfo
	if err := w.client.CallContext(ctx, &info, "wallet_info"); err != nil {
		return WalletInfo{}, fmt.Errorf("starknet/bridge: info: %w", err)
	}
	return info, nil
}

// Account implements Wallet.
func (w *BridgeWallet) Account(ctx context.Context) (Account, error) {
	var acct *struct {
		Address string `json:"address"`
	}
	if err := w.client.CallContext(ctx, &acct, "wallet_account"); err != nil {
		return nil, fmt.Errorf("starknet/bridge: account: %w", err)
	}
	if acct == nil || acct.Address == "" {
		return nil, nil
	}
	return &bridgeAccount{client: w.client, address: acct.Address}, nil
}

// Provider implements Wallet.
func (w *BridgeWallet) Provider() Provider {
	return &bridgeProvider{client: w.client}
}

// Enable implements Enabler. A bridge that rejects the options argument with
// invalid-params yields ErrUnsupportedOptions; every other failure is an
// authorization error and passes through.
func (w *BridgeWallet) Enable(ctx context.Context, opts *EnableOptions) ([]string, error) {
	var (
		addresses []string
		err       error
	)
	if opts != nil {
		err = w.client.CallContext(ctx, &addresses, "wallet_enable", opts)
	} else {
		err = w.client.CallContext(ctx, &addresses, "wallet_enable")
	}
	if err != nil {
		var rpcErr rpc.Error
		if opts != nil && errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeInvalidParams {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedOptions, err)
		}
		return nil, fmt.Errorf("starknet/bridge: enable: %w", err)
	}
	return addresses, nil
}

// Close releases the underlying connection.
func (w *BridgeWallet) Close() {
	w.client.Close()
}

type bridgeProvider struct {
	client *rpc.Client
}

func (p *bridgeProvider) CallContract(ctx context.Context, call Call) ([]string, error) {
	var raw json.RawMessage
	if err := p.client.CallContext(ctx, &raw, "wallet_call", call); err != nil {
		return nil, fmt.Errorf("starknet/bridge: call %s: %w", call.Entrypoint, err)
	}
	return NormalizeResult(raw), nil
}

type bridgeAccount struct {
	client  *rpc.Client
	address string
}

func (a *bridgeAccount) Address() string { return a.address }

func (a *bridgeAccount) Provider() Provider {
	return &bridgeProvider{client: a.client}
}

func (a *bridgeAccount) Execute(ctx context.Context, calls ...Call) (ExecuteResult, error) {
	var res ExecuteResult
	if err := a.client.CallContext(ctx, &res, "wallet_execute", calls); err != nil {
		return ExecuteResult{}, fmt.Errorf("starknet/bridge: execute: %w", err)
	}
	return res, nil
}

var (
	_ Wallet  = (*BridgeWallet)(nil)
	_ Enabler = (*BridgeWallet)(nil)
	_ Account = (*bridgeAccount)(nil)
)
