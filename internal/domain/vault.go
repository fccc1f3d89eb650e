package domain

// VaultSnapshot is the shielded collateral pool as seen by one user.
type VaultSnapshot struct {
	NoteRoot          string `json:"noteRoot"`
	NextNoteIndex     uint64 `json:"nextNoteIndex"`
	TotalPool         string `json:"totalPool"`
	UserAvailable     string `json:"userAvailable"`
	UserShieldedNotes uint64 `json:"userShieldedNotes"`
}

// DepositRequest shields collateral behind a note commitment.
type DepositRequest struct {
	Amount         string `json:"amount"`
	NoteCommitment string `json:"noteCommitment"`
}

// WithdrawRequest unshields collateral to a recipient.
type WithdrawRequest struct {
	Nullifier string        `json:"nullifier"`
	Recipient string        `json:"recipient"`
	Amount    string        `json:"amount"`
	Proof     ProofArtifact `json:"proof"`
}
