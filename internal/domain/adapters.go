package domain

import "context"

// WalletAdapter locates a wallet, establishes a session and normalizes it.
type WalletAdapter interface {
	Connect(ctx context.Context) (WalletSession, error)
	Disconnect(ctx context.Context) error
	// ActiveSession returns nil when nothing is connected.
	ActiveSession(ctx context.Context) (*WalletSession, error)
}

// ContractsAdapter reads and mutates factory, market and vault state.
type ContractsAdapter interface {
	FactorySnapshot(ctx context.Context) (FactorySnapshot, error)
	ListMarkets(ctx context.Context) ([]MarketSummary, error)
	CreateMarket(ctx context.Context, req CreateMarketRequest) (CreateMarketResult, error)
	AddCommitment(ctx context.Context, req AddCommitmentRequest) (TxReceipt, error)
	ResolveMarket(ctx context.Context, req ResolveMarketRequest) (TxReceipt, error)
	ClaimReward(ctx context.Context, req ClaimRewardRequest) (TxReceipt, error)

	VaultSnapshot(ctx context.Context, user string) (VaultSnapshot, error)
	Deposit(ctx context.Context, req DepositRequest) (TxReceipt, error)
	Withdraw(ctx context.Context, req WithdrawRequest) (TxReceipt, error)
}

// ProverAdapter turns structured proof input into an opaque artifact.
type ProverAdapter interface {
	GeneratePositionProof(ctx context.Context, in PositionProofInput) (ProofArtifact, error)
	GenerateClaimProof(ctx context.Context, in ClaimProofInput) (ProofArtifact, error)
	GenerateWithdrawProof(ctx context.Context, in WithdrawProofInput) (ProofArtifact, error)
}

// ActivitySink receives every activity item the orchestrator logs.
type ActivitySink interface {
	Record(ctx context.Context, item ActivityItem) error
	Name() string
}
