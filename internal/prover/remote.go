// Package prover turns structured proof inputs into opaque proof artifacts.
// Nothing here computes or checks a proof; the adapters only carry
// artifacts between a prover service and the contracts adapter.
package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/shadowmarket/internal/crypto"
	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

// Kind names one proof circuit.
type Kind string

const (
	KindPosition Kind = "position"
	KindClaim    Kind = "claim"
	KindWithdraw Kind = "withdraw"
)

// ProgramHashes are the default program hashes per circuit, used when the
// prover service omits one.
type ProgramHashes struct {
	Position string
	Claim    string
	Withdraw string
}

func (h ProgramHashes) forKind(k Kind) string {
	switch k {
	case KindPosition:
		return h.Position
	case KindClaim:
		return h.Claim
	case KindWithdraw:
		return h.Withdraw
	}
	return ""
}

// Remote is the REST client for a prover service:
//
//	POST {base}/v1/proofs/{kind}  body: proof input JSON  ->  ProofArtifact JSON
type Remote struct {
	baseURL    string
	httpClient *http.Client
	auth       *crypto.HMACAuth
	defaults   ProgramHashes
	logger     *slog.Logger
}

// NewRemote creates a Remote client. auth may be nil for unauthenticated
// services.
func NewRemote(baseURL string, timeout time.Duration, auth *crypto.HMACAuth, defaults ProgramHashes, logger *slog.Logger) *Remote {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		auth:     auth,
		defaults: defaults,
		logger:   logger.With(slog.String("component", "prover")),
	}
}

// GeneratePositionProof implements domain.ProverAdapter.
func (r *Remote) GeneratePositionProof(ctx context.Context, in domain.PositionProofInput) (domain.ProofArtifact, error) {
	return r.generate(ctx, KindPosition, in)
}

// GenerateClaimProof implements domain.ProverAdapter.
func (r *Remote) GenerateClaimProof(ctx context.Context, in domain.ClaimProofInput) (domain.ProofArtifact, error) {
	return r.generate(ctx, KindClaim, in)
}

// GenerateWithdrawProof implements domain.ProverAdapter.
func (r *Remote) GenerateWithdrawProof(ctx context.Context, in domain.WithdrawProofInput) (domain.ProofArtifact, error) {
	return r.generate(ctx, KindWithdraw, in)
}

func (r *Remote) generate(ctx context.Context, kind Kind, in any) (domain.ProofArtifact, error) {
	start := time.Now()
	body, err := r.doRequest(ctx, http.MethodPost, "/v1/proofs/"+string(kind), in)
	if err != nil {
		return domain.ProofArtifact{}, fmt.Errorf("prover: %s: %w", kind, err)
	}

	var artifact domain.ProofArtifact
	if err := json.Unmarshal(body, &artifact); err != nil {
		return domain.ProofArtifact{}, fmt.Errorf("prover: %s: decode artifact: %w", kind, err)
	}
	if artifact.ProgramHash == "" {
		artifact.ProgramHash = r.defaults.forKind(kind)
	}
	if artifact.ProgramHash == "" {
		return domain.ProofArtifact{}, fmt.Errorf("prover: %s: %w: program hash", kind, domain.ErrConfigMissing)
	}
	if artifact.PublicInputs == nil {
		artifact.PublicInputs = []string{}
	}
	if artifact.Proof == nil {
		artifact.Proof = []string{}
	}

	r.logger.InfoContext(ctx, "prover: artifact generated",
		slog.String("kind", string(kind)),
		slog.Int("public_inputs", len(artifact.PublicInputs)),
		slog.Int("proof_len", len(artifact.Proof)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return artifact, nil
}

// doRequest builds, signs, sends and reads one request, returning the raw
// response body.
func (r *Remote) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.auth != nil {
		for k, v := range r.auth.Headers(method, path, string(jsonBody)) {
			req.Header.Set(k, v)
		}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrProverUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := strings.TrimSpace(string(body))
	switch {
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, bodyStr)
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrProverUnavailable, statusCode, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// Unavailable is the prover used when none is configured.
type Unavailable struct{}

func (Unavailable) GeneratePositionProof(context.Context, domain.PositionProofInput) (domain.ProofArtifact, error) {
	return domain.ProofArtifact{}, domain.ErrProverUnavailable
}

func (Unavailable) GenerateClaimProof(context.Context, domain.ClaimProofInput) (domain.ProofArtifact, error) {
	return domain.ProofArtifact{}, domain.ErrProverUnavailable
}

func (Unavailable) GenerateWithdrawProof(context.Context, domain.WithdrawProofInput) (domain.ProofArtifact, error) {
	return domain.ProofArtifact{}, domain.ErrProverUnavailable
}

var (
	_ domain.ProverAdapter = (*Remote)(nil)
	_ domain.ProverAdapter = Unavailable{}
)
