package domain

// ProofArtifact is an opaque proof produced by an external prover. Only the
// element order and count matter to this layer.
type ProofArtifact struct {
	ProgramHash  string   `json:"programHash"`
	PublicInputs []string `json:"publicInputs"`
	Proof        []string `json:"proof"`
}

// PositionProofInput is the witness summary for a position commitment.
type PositionProofInput struct {
	MarketID     string       `json:"marketId"`
	Side         PositionSide `json:"side"`
	Amount       string       `json:"amount"`
	Commitment   string       `json:"commitment"`
	PreviousRoot string       `json:"previousRoot"`
}

// ClaimProofInput is the witness summary for a reward claim.
type ClaimProofInput struct {
	MarketID        string       `json:"marketId"`
	ExpectedOutcome PositionSide `json:"expectedOutcome"`
	PayoutRecipient string       `json:"payoutRecipient"`
}

// WithdrawProofInput is the witness summary for a vault withdrawal.
type WithdrawProofInput struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
	OldRoot   string `json:"oldRoot"`
}
