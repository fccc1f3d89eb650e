package domain

import "time"

// PositionSide is one of the two outcomes of a binary market.
type PositionSide string

const (
	SideYes PositionSide = "yes"
	SideNo  PositionSide = "no"
)

// Valid reports whether s is a known side.
func (s PositionSide) Valid() bool {
	return s == SideYes || s == SideNo
}

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusLive     MarketStatus = "live"
	MarketStatusResolved MarketStatus = "resolved"
)

// FactorySnapshot is a read-only view of the factory counter. It is
// re-fetched on demand and never cached beyond a single call.
type FactorySnapshot struct {
	NextMarketID uint64 `json:"nextMarketId"`
}

// MarketSummary is a market as discovered from chain state.
// ResolvedOutcome is non-nil iff Status is MarketStatusResolved.
type MarketSummary struct {
	ID              string        `json:"id"`
	Address         string        `json:"address"`
	QuestionHash    string        `json:"questionHash"`
	Oracle          string        `json:"oracle"`
	EndTime         time.Time     `json:"endTime"`
	Status          MarketStatus  `json:"status"`
	ResolvedOutcome *PositionSide `json:"resolvedOutcome"`
	MerkleRoot      string        `json:"merkleRoot"`
	NextIndex       uint64        `json:"nextIndex"`
}

// PendingMarketAddress is reported by CreateMarket until a follow-up read
// resolves the deployed address.
const PendingMarketAddress = "pending"

// CreateMarketRequest asks the factory to deploy a new market.
type CreateMarketRequest struct {
	QuestionHash string    `json:"questionHash"`
	Oracle       string    `json:"oracle"`
	EndTime      time.Time `json:"endTime"`
}

// CreateMarketResult carries the transaction hash and the predicted market
// identifier. MarketID is best-effort: a concurrent creator can take it.
type CreateMarketResult struct {
	TxHash        string `json:"txHash"`
	MarketID      string `json:"marketId"`
	MarketAddress string `json:"marketAddress"`
}

// AddCommitmentRequest inserts a position commitment into a market tree.
type AddCommitmentRequest struct {
	MarketAddress string        `json:"marketAddress"`
	Commitment    string        `json:"commitment"`
	Proof         ProofArtifact `json:"proof"`
}

// ResolveMarketRequest settles a market to an outcome.
type ResolveMarketRequest struct {
	MarketAddress string       `json:"marketAddress"`
	Outcome       PositionSide `json:"outcome"`
}

// ClaimRewardRequest redeems a winning position. PayoutAmount is a full
// precision integer literal (decimal or 0x hex) split into u256 halves.
type ClaimRewardRequest struct {
	MarketAddress   string        `json:"marketAddress"`
	Nullifier       string        `json:"nullifier"`
	PayoutRecipient string        `json:"payoutRecipient"`
	PayoutAmount    string        `json:"payoutAmount"`
	Proof           ProofArtifact `json:"proof"`
}

// TxReceipt is returned by every state-mutating call.
type TxReceipt struct {
	TxHash string `json:"txHash"`
}
