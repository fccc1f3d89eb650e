package prover

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

// Archive wraps a prover with an object-store cache keyed by the digest of
// the proof input. A hit skips the inner prover; a miss stores the fresh
// artifact. Store failures are logged and never fail the proof.
type Archive struct {
	inner  domain.ProverAdapter
	reader domain.BlobReader
	writer domain.BlobWriter
	prefix string
	logger *slog.Logger
}

// NewArchive wraps inner. Objects are written under prefix.
func NewArchive(inner domain.ProverAdapter, reader domain.BlobReader, writer domain.BlobWriter, prefix string, logger *slog.Logger) *Archive {
	if prefix == "" {
		prefix = "proofs"
	}
	return &Archive{
		inner:  inner,
		reader: reader,
		writer: writer,
		prefix: prefix,
		logger: logger.With(slog.String("component", "prover_archive")),
	}
}

// GeneratePositionProof implements domain.ProverAdapter.
func (a *Archive) GeneratePositionProof(ctx context.Context, in domain.PositionProofInput) (domain.ProofArtifact, error) {
	return cached(ctx, a, KindPosition, in, a.inner.GeneratePositionProof)
}

// GenerateClaimProof implements domain.ProverAdapter.
func (a *Archive) GenerateClaimProof(ctx context.Context, in domain.ClaimProofInput) (domain.ProofArtifact, error) {
	return cached(ctx, a, KindClaim, in, a.inner.GenerateClaimProof)
}

// GenerateWithdrawProof implements domain.ProverAdapter.
func (a *Archive) GenerateWithdrawProof(ctx context.Context, in domain.WithdrawProofInput) (domain.ProofArtifact, error) {
	return cached(ctx, a, KindWithdraw, in, a.inner.GenerateWithdrawProof)
}

func cached[I any](ctx context.Context, a *Archive, kind Kind, in I, gen func(context.Context, I) (domain.ProofArtifact, error)) (domain.ProofArtifact, error) {
	path, err := a.path(kind, in)
	if err != nil {
		return gen(ctx, in)
	}

	if artifact, ok := a.load(ctx, path); ok {
		a.logger.DebugContext(ctx, "prover_archive: hit", slog.String("path", path))
		return artifact, nil
	}

	artifact, err := gen(ctx, in)
	if err != nil {
		return domain.ProofArtifact{}, err
	}
	a.store(ctx, path, artifact)
	return artifact, nil
}

// path is {prefix}/{kind}/{sha256(input json)}.json.
func (a *Archive) path(kind Kind, in any) (string, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("prover_archive: marshal input: %w", err)
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s/%s/%s.json", a.prefix, kind, hex.EncodeToString(sum[:])), nil
}

func (a *Archive) load(ctx context.Context, path string) (domain.ProofArtifact, bool) {
	ok, err := a.reader.Exists(ctx, path)
	if err != nil {
		a.logger.WarnContext(ctx, "prover_archive: exists failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return domain.ProofArtifact{}, false
	}
	if !ok {
		return domain.ProofArtifact{}, false
	}

	rc, err := a.reader.Get(ctx, path)
	if err != nil {
		a.logger.WarnContext(ctx, "prover_archive: get failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return domain.ProofArtifact{}, false
	}
	defer rc.Close()

	var artifact domain.ProofArtifact
	if err := json.NewDecoder(rc).Decode(&artifact); err != nil || artifact.ProgramHash == "" {
		a.logger.WarnContext(ctx, "prover_archive: unreadable object", slog.String("path", path))
		return domain.ProofArtifact{}, false
	}
	return artifact, true
}

func (a *Archive) store(ctx context.Context, path string, artifact domain.ProofArtifact) {
	raw, err := json.Marshal(artifact)
	if err != nil {
		return
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(raw), "application/json"); err != nil {
		a.logger.WarnContext(ctx, "prover_archive: put failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

var _ domain.ProverAdapter = (*Archive)(nil)
