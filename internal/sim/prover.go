package sim

import (
	"context"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

// Prover returns deterministic artifacts derived from the proof input. Every
// element is a valid felt.
type Prover struct{}

func (Prover) GeneratePositionProof(ctx context.Context, in domain.PositionProofInput) (domain.ProofArtifact, error) {
	return artifact(ctx, "position", in.MarketID, string(in.Side), in.Amount, in.Commitment, in.PreviousRoot)
}

func (Prover) GenerateClaimProof(ctx context.Context, in domain.ClaimProofInput) (domain.ProofArtifact, error) {
	return artifact(ctx, "claim", in.MarketID, string(in.ExpectedOutcome), in.PayoutRecipient)
}

func (Prover) GenerateWithdrawProof(ctx context.Context, in domain.WithdrawProofInput) (domain.ProofArtifact, error) {
	return artifact(ctx, "withdraw", in.OldRoot, in.Amount, in.Recipient)
}

func artifact(ctx context.Context, kind string, seed ...string) (domain.ProofArtifact, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProofArtifact{}, err
	}
	s := append([]string{kind}, seed...)
	return domain.ProofArtifact{
		ProgramHash:  digest("program", kind),
		PublicInputs: []string{digest(append([]string{"pi"}, s...)...), digest(append([]string{"root"}, s...)...)},
		Proof:        []string{digest(append([]string{"proof"}, s...)...), digest(append([]string{"proof-end"}, s...)...)},
	}, nil
}

var _ domain.ProverAdapter = Prover{}
