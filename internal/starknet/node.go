package starknet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/alanyoungcy/shadowmarket/internal/felt"
)

// NodeProvider answers read calls through a Starknet node's JSON-RPC API
// (starknet_call against the latest block).
type NodeProvider struct {
	client  *rpc.Client
	blockID string
}

// DialNode connects to a node endpoint (http, https, ws or wss).
func DialNode(ctx context.Context, url string) (*NodeProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("starknet/node: dial %s: %w", url, err)
	}
	return NewNodeProvider(client), nil
}

// NewNodeProvider wraps an existing RPC client.
func NewNodeProvider(client *rpc.Client) *NodeProvider {
	return &NodeProvider{client: client, blockID: "latest"}
}

type nodeCallRequest struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Calldata           []string `json:"calldata"`
}

// CallContract implements Provider. Calldata is re-encoded as hex because
// node endpoints reject decimal felts.
func (p *NodeProvider) CallContract(ctx context.Context, call Call) ([]string, error) {
	calldata := make([]string, 0, len(call.Calldata))
	for _, f := range call.Calldata {
		h, err := felt.Hex(f)
		if err != nil {
			return nil, fmt.Errorf("starknet/node: %s calldata: %w", call.Entrypoint, err)
		}
		calldata = append(calldata, h)
	}

	req := nodeCallRequest{
		ContractAddress:    call.ContractAddress,
		EntryPointSelector: Selector(call.Entrypoint),
		Calldata:           calldata,
	}

	var raw json.RawMessage
	if err := p.client.CallContext(ctx, &raw, "starknet_call", req, p.blockID); err != nil {
		return nil, fmt.Errorf("starknet/node: call %s: %w", call.Entrypoint, err)
	}
	return NormalizeResult(raw), nil
}

// Close releases the underlying connection.
func (p *NodeProvider) Close() {
	p.client.Close()
}

var _ Provider = (*NodeProvider)(nil)
