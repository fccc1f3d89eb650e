// Package sim is an in-memory stand-in for the factory, market and vault
// contracts plus an injectable wallet. The live adapters run against it
// unchanged, so offline mode and tests exercise the real encoding paths.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/shadowmarket/internal/felt"
	"github.com/alanyoungcy/shadowmarket/internal/starknet"
)

// Errors returned by simulated contracts. They reach callers wrapped in
// domain.ErrChainRejected like any other chain failure.
var (
	ErrNotDeployed      = errors.New("contract not deployed")
	ErrUnknownEntry     = errors.New("entrypoint not found")
	ErrBadCalldata      = errors.New("malformed calldata")
	ErrMarketResolved   = errors.New("market already resolved")
	ErrMarketLive       = errors.New("market not resolved")
	ErrNullifierUsed    = errors.New("nullifier already used")
	ErrInsufficientFund = errors.New("insufficient funds")
)

var mask250 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

type market struct {
	id           uint64
	address      string
	questionHash string
	oracle       string
	endTime      string
	root         string
	nextIndex    uint64
	resolved     bool
	outcome      string
	nullifiers   map[string]bool
}

// Chain holds the simulated contract state. All methods are safe for
// concurrent use.
type Chain struct {
	mu      sync.Mutex
	factory string
	vault   string

	markets  []*market
	byAddr   map[string]*market
	txSeq    uint64
	calls    uint64
	failures map[string]error

	noteRoot      string
	nextNoteIndex uint64
	pool          *big.Int
	balances      map[string]*big.Int
	notes         map[string]uint64
	vaultSpent    map[string]bool
}

// NewChain creates empty factory and vault contracts at the given addresses.
func NewChain(factory, vault string) *Chain {
	return &Chain{
		factory:    factory,
		vault:      vault,
		byAddr:     make(map[string]*market),
		failures:   make(map[string]error),
		noteRoot:   "0x0",
		pool:       new(big.Int),
		balances:   make(map[string]*big.Int),
		notes:      make(map[string]uint64),
		vaultSpent: make(map[string]bool),
	}
}

// FactoryAddress returns the factory contract address.
func (c *Chain) FactoryAddress() string { return c.factory }

// VaultAddress returns the vault contract address.
func (c *Chain) VaultAddress() string { return c.vault }

// SeedMarket deploys a market directly, bypassing any account. It returns
// the new market's address.
func (c *Chain) SeedMarket(questionHash, oracle, endTimeSeconds string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deploy(questionHash, oracle, endTimeSeconds).address
}

// ReserveMarketID allocates an identifier whose address is still zero, as
// seen while a deployment is in flight.
func (c *Chain) ReserveMarketID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := &market{id: uint64(len(c.markets))}
	c.markets = append(c.markets, m)
	return m.id
}

// SeedResolution resolves a seeded market to outcome ("1" yes, "0" no).
func (c *Chain) SeedResolution(address, outcome string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byAddr[address]
	if !ok {
		return fmt.Errorf("sim: %w: %s", ErrNotDeployed, address)
	}
	m.resolved = true
	m.outcome = outcome
	return nil
}

// Fund credits user's unshielded balance.
func (c *Chain) Fund(user string, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balance(user).Add(c.balance(user), amount)
}

// FailCall makes every read of entrypoint on contract fail with err until
// cleared with a nil err.
func (c *Chain) FailCall(contract, entrypoint string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := contract + "|" + entrypoint
	if err == nil {
		delete(c.failures, k)
		return
	}
	c.failures[k] = err
}

// Calls returns the number of reads served.
func (c *Chain) Calls() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *Chain) deploy(questionHash, oracle, endTime string) *market {
	id := uint64(len(c.markets))
	m := &market{
		id:           id,
		address:      digest("market", c.factory, felt.FromUint(id)),
		questionHash: questionHash,
		oracle:       oracle,
		endTime:      endTime,
		root:         "0x0",
		nullifiers:   make(map[string]bool),
	}
	c.markets = append(c.markets, m)
	c.byAddr[m.address] = m
	return m
}

func (c *Chain) balance(user string) *big.Int {
	b, ok := c.balances[user]
	if !ok {
		b = new(big.Int)
		c.balances[user] = b
	}
	return b
}

// CallContract implements starknet.Provider.
func (c *Chain) CallContract(ctx context.Context, call starknet.Call) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++

	if err, ok := c.failures[call.ContractAddress+"|"+call.Entrypoint]; ok {
		return nil, err
	}

	switch {
	case call.ContractAddress == c.factory:
		return c.readFactory(call)
	case call.ContractAddress == c.vault:
		return c.readVault(call)
	}
	if m, ok := c.byAddr[call.ContractAddress]; ok {
		return readMarket(m, call)
	}
	return nil, fmt.Errorf("sim: %w: %s", ErrNotDeployed, call.ContractAddress)
}

func (c *Chain) readFactory(call starknet.Call) ([]string, error) {
	switch call.Entrypoint {
	case "next_market_id":
		return []string{felt.FromUint(uint64(len(c.markets)))}, nil
	case "get_market", "get_market_metadata":
		if len(call.Calldata) != 1 {
			return nil, fmt.Errorf("sim: %s: %w", call.Entrypoint, ErrBadCalldata)
		}
		id, err := felt.StrictDecoder.Uint(call.Calldata[0])
		if err != nil || id >= uint64(len(c.markets)) {
			return nil, fmt.Errorf("sim: %s: unknown market id %s", call.Entrypoint, call.Calldata[0])
		}
		m := c.markets[id]
		if call.Entrypoint == "get_market" {
			if m.address == "" {
				return []string{"0x0"}, nil
			}
			return []string{m.address}, nil
		}
		return []string{orZero(m.questionHash), orZero(m.oracle), orZero(m.endTime)}, nil
	}
	return nil, fmt.Errorf("sim: factory %w: %s", ErrUnknownEntry, call.Entrypoint)
}

func readMarket(m *market, call starknet.Call) ([]string, error) {
	switch call.Entrypoint {
	case "merkle_root":
		return []string{m.root}, nil
	case "next_index":
		return []string{felt.FromUint(m.nextIndex)}, nil
	case "is_resolved":
		if m.resolved {
			return []string{"1"}, nil
		}
		return []string{"0"}, nil
	case "resolution_outcome":
		return []string{orZero(m.outcome)}, nil
	}
	return nil, fmt.Errorf("sim: market %w: %s", ErrUnknownEntry, call.Entrypoint)
}

func (c *Chain) readVault(call starknet.Call) ([]string, error) {
	switch call.Entrypoint {
	case "note_root":
		return []string{c.noteRoot}, nil
	case "next_note_index":
		return []string{felt.FromUint(c.nextNoteIndex)}, nil
	case "total_pool":
		return u256(c.pool), nil
	case "balance_of", "notes_of":
		if len(call.Calldata) != 1 {
			return nil, fmt.Errorf("sim: %s: %w", call.Entrypoint, ErrBadCalldata)
		}
		user := call.Calldata[0]
		if call.Entrypoint == "notes_of" {
			return []string{felt.FromUint(c.notes[user])}, nil
		}
		return u256(c.balance(user)), nil
	}
	return nil, fmt.Errorf("sim: vault %w: %s", ErrUnknownEntry, call.Entrypoint)
}

// execute applies one mutating call on behalf of caller and returns the
// transaction hash.
func (c *Chain) execute(caller string, call starknet.Call) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch {
	case call.ContractAddress == c.factory:
		err = c.writeFactory(call)
	case call.ContractAddress == c.vault:
		err = c.writeVault(caller, call)
	default:
		m, ok := c.byAddr[call.ContractAddress]
		if !ok {
			return "", fmt.Errorf("sim: %w: %s", ErrNotDeployed, call.ContractAddress)
		}
		err = c.writeMarket(m, call)
	}
	if err != nil {
		return "", err
	}

	c.txSeq++
	return digest("tx", caller, felt.FromUint(c.txSeq)), nil
}

func (c *Chain) writeFactory(call starknet.Call) error {
	if call.Entrypoint != "create_market" {
		return fmt.Errorf("sim: factory %w: %s", ErrUnknownEntry, call.Entrypoint)
	}
	if len(call.Calldata) != 3 {
		return fmt.Errorf("sim: create_market: %w", ErrBadCalldata)
	}
	if _, err := felt.StrictDecoder.Time(call.Calldata[2]); err != nil {
		return fmt.Errorf("sim: create_market: %w", err)
	}
	c.deploy(call.Calldata[0], call.Calldata[1], call.Calldata[2])
	return nil
}

func (c *Chain) writeMarket(m *market, call starknet.Call) error {
	switch call.Entrypoint {
	case "add_commitment":
		if len(call.Calldata) < 1 {
			return fmt.Errorf("sim: add_commitment: %w", ErrBadCalldata)
		}
		if err := checkProof(call.Calldata[1:]); err != nil {
			return fmt.Errorf("sim: add_commitment: %w", err)
		}
		if m.resolved {
			return fmt.Errorf("sim: add_commitment: %w", ErrMarketResolved)
		}
		m.root = digest("root", m.root, call.Calldata[0])
		m.nextIndex++
		return nil

	case "resolve_market":
		if len(call.Calldata) != 1 || (call.Calldata[0] != "0" && call.Calldata[0] != "1") {
			return fmt.Errorf("sim: resolve_market: %w", ErrBadCalldata)
		}
		if m.resolved {
			return fmt.Errorf("sim: resolve_market: %w", ErrMarketResolved)
		}
		m.resolved = true
		m.outcome = call.Calldata[0]
		return nil

	case "claim_reward":
		if len(call.Calldata) < 4 {
			return fmt.Errorf("sim: claim_reward: %w", ErrBadCalldata)
		}
		if err := checkProof(call.Calldata[4:]); err != nil {
			return fmt.Errorf("sim: claim_reward: %w", err)
		}
		if !m.resolved {
			return fmt.Errorf("sim: claim_reward: %w", ErrMarketLive)
		}
		nullifier := call.Calldata[0]
		if m.nullifiers[nullifier] {
			return fmt.Errorf("sim: claim_reward: %w", ErrNullifierUsed)
		}
		amount, err := joinAmount(call.Calldata[2], call.Calldata[3])
		if err != nil {
			return fmt.Errorf("sim: claim_reward: %w", err)
		}
		m.nullifiers[nullifier] = true
		recipient := call.Calldata[1]
		c.balance(recipient).Add(c.balance(recipient), amount)
		return nil
	}
	return fmt.Errorf("sim: market %w: %s", ErrUnknownEntry, call.Entrypoint)
}

func (c *Chain) writeVault(caller string, call starknet.Call) error {
	switch call.Entrypoint {
	case "deposit":
		if len(call.Calldata) != 3 {
			return fmt.Errorf("sim: deposit: %w", ErrBadCalldata)
		}
		amount, err := joinAmount(call.Calldata[1], call.Calldata[2])
		if err != nil {
			return fmt.Errorf("sim: deposit: %w", err)
		}
		bal := c.balance(caller)
		if bal.Cmp(amount) < 0 {
			return fmt.Errorf("sim: deposit: %w", ErrInsufficientFund)
		}
		bal.Sub(bal, amount)
		c.pool.Add(c.pool, amount)
		c.notes[caller]++
		c.nextNoteIndex++
		c.noteRoot = digest("note", c.noteRoot, call.Calldata[0])
		return nil

	case "withdraw":
		if len(call.Calldata) < 4 {
			return fmt.Errorf("sim: withdraw: %w", ErrBadCalldata)
		}
		if err := checkProof(call.Calldata[4:]); err != nil {
			return fmt.Errorf("sim: withdraw: %w", err)
		}
		nullifier := call.Calldata[0]
		if c.vaultSpent[nullifier] {
			return fmt.Errorf("sim: withdraw: %w", ErrNullifierUsed)
		}
		amount, err := joinAmount(call.Calldata[2], call.Calldata[3])
		if err != nil {
			return fmt.Errorf("sim: withdraw: %w", err)
		}
		if c.pool.Cmp(amount) < 0 {
			return fmt.Errorf("sim: withdraw: %w", ErrInsufficientFund)
		}
		c.vaultSpent[nullifier] = true
		c.pool.Sub(c.pool, amount)
		recipient := call.Calldata[1]
		c.balance(recipient).Add(c.balance(recipient), amount)
		if c.notes[caller] > 0 {
			c.notes[caller]--
		}
		return nil
	}
	return fmt.Errorf("sim: vault %w: %s", ErrUnknownEntry, call.Entrypoint)
}

// checkProof verifies the framing programHash, span(inputs), span(proof)
// and nothing else.
func checkProof(data []string) error {
	if len(data) < 1 || strings.TrimSpace(data[0]) == "" {
		return fmt.Errorf("%w: missing program hash", ErrBadCalldata)
	}
	rest := data[1:]
	for range 2 {
		if len(rest) == 0 {
			return fmt.Errorf("%w: missing span length", ErrBadCalldata)
		}
		n, err := felt.StrictDecoder.Uint(rest[0])
		if err != nil || n > uint64(len(rest)-1) {
			return fmt.Errorf("%w: bad span length %q", ErrBadCalldata, rest[0])
		}
		rest = rest[1+n:]
	}
	if len(rest) != 0 {
		return fmt.Errorf("%w: %d trailing elements", ErrBadCalldata, len(rest))
	}
	return nil
}

func joinAmount(low, high string) (*big.Int, error) {
	s, err := felt.JoinU256(low, high)
	if err != nil {
		return nil, err
	}
	n, _ := new(big.Int).SetString(s, 10)
	return n, nil
}

func u256(n *big.Int) []string {
	low, high, _ := felt.SplitU256(n.String())
	return []string{low, high}
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// digest hashes parts into a 250-bit felt, rendered as hex.
func digest(parts ...string) string {
	h := ethcrypto.Keccak256([]byte(strings.Join(parts, "|")))
	return hexutil.EncodeBig(new(big.Int).And(new(big.Int).SetBytes(h), mask250))
}

var _ starknet.Provider = (*Chain)(nil)
