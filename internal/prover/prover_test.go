package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/shadowmarket/internal/crypto"
	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRemoteSignsAndDecodes(t *testing.T) {
	auth := &crypto.HMACAuth{Key: "k", Secret: "s"}
	var gotPath string
	var gotInput domain.ClaimProofInput

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &gotInput))
		ok := auth.Verify(r.Method, r.URL.Path, string(body),
			r.Header.Get(crypto.HeaderTimestamp), r.Header.Get(crypto.HeaderSignature), time.Now(), time.Minute)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"publicInputs": []string{"0xa"},
			"proof":        []string{"0x1", "0x2"},
		})
	}))
	defer srv.Close()

	r := NewRemote(srv.URL+"/", time.Second, auth, ProgramHashes{Claim: "0xclaim"}, discard)
	artifact, err := r.GenerateClaimProof(context.Background(), domain.ClaimProofInput{
		MarketID:        "3",
		ExpectedOutcome: domain.SideYes,
		PayoutRecipient: "0xr",
	})
	require.NoError(t, err)
	assert.Equal(t, "/v1/proofs/claim", gotPath)
	assert.Equal(t, "3", gotInput.MarketID)
	assert.Equal(t, domain.ProofArtifact{
		ProgramHash:  "0xclaim",
		PublicInputs: []string{"0xa"},
		Proof:        []string{"0x1", "0x2"},
	}, artifact)
}

func TestRemoteServiceHashWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"programHash":"0xsvc"}`))
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, time.Second, nil, ProgramHashes{Withdraw: "0xdefault"}, discard)
	artifact, err := r.GenerateWithdrawProof(context.Background(), domain.WithdrawProofInput{Amount: "1"})
	require.NoError(t, err)
	assert.Equal(t, "0xsvc", artifact.ProgramHash)
	assert.Equal(t, []string{}, artifact.PublicInputs)
	assert.Equal(t, []string{}, artifact.Proof)
}

func TestRemoteMissingProgramHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"proof":["0x1"]}`))
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, time.Second, nil, ProgramHashes{}, discard)
	_, err := r.GeneratePositionProof(context.Background(), domain.PositionProofInput{})
	assert.ErrorIs(t, err, domain.ErrConfigMissing)
}

func TestRemoteStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusBadRequest, want: domain.ErrInvalidArgument},
		{status: http.StatusNotFound, want: domain.ErrNotFound},
		{status: http.StatusServiceUnavailable, want: domain.ErrProverUnavailable},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))
		r := NewRemote(srv.URL, time.Second, nil, ProgramHashes{Position: "0xp"}, discard)
		_, err := r.GeneratePositionProof(context.Background(), domain.PositionProofInput{})
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		assert.Contains(t, err.Error(), "nope")
		srv.Close()
	}
}

func TestRemoteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := NewRemote(url, time.Second, nil, ProgramHashes{Position: "0xp"}, discard)
	_, err := r.GeneratePositionProof(context.Background(), domain.PositionProofInput{})
	assert.ErrorIs(t, err, domain.ErrProverUnavailable)
}

func TestUnavailable(t *testing.T) {
	var p Unavailable
	_, err := p.GeneratePositionProof(context.Background(), domain.PositionProofInput{})
	assert.ErrorIs(t, err, domain.ErrProverUnavailable)
	_, err = p.GenerateClaimProof(context.Background(), domain.ClaimProofInput{})
	assert.ErrorIs(t, err, domain.ErrProverUnavailable)
	_, err = p.GenerateWithdrawProof(context.Background(), domain.WithdrawProofInput{})
	assert.ErrorIs(t, err, domain.ErrProverUnavailable)
}

// memBlob is an in-memory object store.
type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemBlob() *memBlob { return &memBlob{objects: map[string][]byte{}} }

func (m *memBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = raw
	return nil
}

func (m *memBlob) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (m *memBlob) Exists(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok, nil
}

type countingProver struct {
	Unavailable
	calls int
	err   error
}

func (c *countingProver) GeneratePositionProof(_ context.Context, in domain.PositionProofInput) (domain.ProofArtifact, error) {
	c.calls++
	if c.err != nil {
		return domain.ProofArtifact{}, c.err
	}
	return domain.ProofArtifact{ProgramHash: "0xpos", PublicInputs: []string{in.Commitment}, Proof: []string{"0x1"}}, nil
}

func TestArchiveCachesByInput(t *testing.T) {
	inner := &countingProver{}
	blob := newMemBlob()
	a := NewArchive(inner, blob, blob, "", discard)

	in := domain.PositionProofInput{MarketID: "1", Side: domain.SideYes, Amount: "10", Commitment: "0xc"}
	first, err := a.GeneratePositionProof(context.Background(), in)
	require.NoError(t, err)
	second, err := a.GeneratePositionProof(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	require.Len(t, blob.objects, 1)
	for path := range blob.objects {
		assert.True(t, strings.HasPrefix(path, "proofs/position/"), path)
		assert.True(t, strings.HasSuffix(path, ".json"), path)
	}

	_, err = a.GeneratePositionProof(context.Background(), domain.PositionProofInput{MarketID: "2", Commitment: "0xd"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestArchiveStoreFailureIsNotFatal(t *testing.T) {
	inner := &countingProver{}
	blob := newMemBlob()
	blob.putErr = errors.New("bucket gone")
	a := NewArchive(inner, blob, blob, "p", discard)

	artifact, err := a.GeneratePositionProof(context.Background(), domain.PositionProofInput{Commitment: "0xc"})
	require.NoError(t, err)
	assert.Equal(t, "0xpos", artifact.ProgramHash)
}

func TestArchivePassesInnerErrors(t *testing.T) {
	inner := &countingProver{err: domain.ErrProverUnavailable}
	blob := newMemBlob()
	a := NewArchive(inner, blob, blob, "p", discard)

	_, err := a.GeneratePositionProof(context.Background(), domain.PositionProofInput{})
	assert.ErrorIs(t, err, domain.ErrProverUnavailable)
	assert.Empty(t, blob.objects)

	_, err = a.GenerateClaimProof(context.Background(), domain.ClaimProofInput{})
	assert.ErrorIs(t, err, domain.ErrProverUnavailable)
}
