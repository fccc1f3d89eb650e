package wallet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
	"github.com/alanyoungcy/shadowmarket/internal/session"
	"github.com/alanyoungcy/shadowmarket/internal/starknet"
)

type fakeProvider struct{}

func (fakeProvider) CallContract(context.Context, starknet.Call) ([]string, error) {
	return []string{"0x0"}, nil
}

type fakeAccount struct {
	addr     string
	provider starknet.Provider
}

func (a *fakeAccount) Address() string             { return a.addr }
func (a *fakeAccount) Provider() starknet.Provider { return a.provider }
func (a *fakeAccount) Execute(context.Context, ...starknet.Call) (starknet.ExecuteResult, error) {
	return starknet.ExecuteResult{TransactionHash: "0x1"}, nil
}

// fakeWallet is an injected wallet whose account appears only after enable.
type fakeWallet struct {
	info          starknet.WalletInfo
	account       *fakeAccount
	provider      starknet.Provider
	authorized    bool
	rejectOptions bool
	refuse        error
	enableCalls   []*starknet.EnableOptions
}

func (w *fakeWallet) Info(context.Context) (starknet.WalletInfo, error) { return w.info, nil }

func (w *fakeWallet) Account(context.Context) (starknet.Account, error) {
	if !w.authorized || w.account == nil {
		return nil, nil
	}
	return w.account, nil
}

func (w *fakeWallet) Provider() starknet.Provider {
	if w.provider == nil {
		return nil
	}
	return w.provider
}

func (w *fakeWallet) Enable(_ context.Context, opts *starknet.EnableOptions) ([]string, error) {
	w.enableCalls = append(w.enableCalls, opts)
	if w.refuse != nil {
		return nil, w.refuse
	}
	if opts != nil && w.rejectOptions {
		return nil, starknet.ErrUnsupportedOptions
	}
	w.authorized = true
	return []string{w.account.addr}, nil
}

func newAdapter(t *testing.T, point string, w starknet.Wallet) (*Adapter, *session.Store) {
	t.Helper()
	reg := starknet.NewRegistry()
	if w != nil {
		require.NoError(t, reg.Inject(point, w))
	}
	store := session.New()
	return NewAdapter(reg, store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestConnectNoWallet(t *testing.T) {
	a, store := newAdapter(t, "", nil)
	_, err := a.Connect(context.Background())
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
	assert.Nil(t, store.Get())
}

func TestConnectEnhancedEnable(t *testing.T) {
	w := &fakeWallet{
		info:    starknet.WalletInfo{Name: "Argent X", ChainID: "SN_SEPOLIA"},
		account: &fakeAccount{addr: "0xabc", provider: fakeProvider{}},
	}
	a, store := newAdapter(t, "starknet_argentX", w)

	sess, err := a.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.WalletSession{Address: "0xabc", ChainID: "SN_SEPOLIA", Connector: "Argent X"}, sess)
	require.Len(t, w.enableCalls, 1)
	require.NotNil(t, w.enableCalls[0])
	assert.True(t, w.enableCalls[0].ShowModal)

	live := store.Get()
	require.NotNil(t, live)
	assert.Equal(t, "0xabc", live.Account.Address())
}

func TestConnectFallsBackToBareEnable(t *testing.T) {
	w := &fakeWallet{
		rejectOptions: true,
		account:       &fakeAccount{addr: "0xabc"},
		provider:      fakeProvider{},
	}
	a, _ := newAdapter(t, "starknet", w)

	sess, err := a.Connect(context.Background())
	require.NoError(t, err)
	require.Len(t, w.enableCalls, 2)
	assert.Nil(t, w.enableCalls[1])
	assert.Equal(t, "SN_UNKNOWN", sess.ChainID)
	assert.Equal(t, "Injected Wallet", sess.Connector)
}

func TestConnectRefusalIsNotRetried(t *testing.T) {
	refusal := errors.New("user rejected request")
	w := &fakeWallet{refuse: refusal, account: &fakeAccount{addr: "0xabc"}}
	a, store := newAdapter(t, "starknet", w)

	_, err := a.Connect(context.Background())
	assert.ErrorIs(t, err, refusal)
	assert.Len(t, w.enableCalls, 1)
	assert.Nil(t, store.Get())
}

func TestConnectAccountUnavailable(t *testing.T) {
	w := &fakeWallet{}
	a, store := newAdapter(t, "starknet", &noEnableWallet{fakeWallet: w})

	_, err := a.Connect(context.Background())
	assert.ErrorIs(t, err, domain.ErrAccountUnavailable)
	assert.Nil(t, store.Get())
}

func TestConnectProviderUnavailable(t *testing.T) {
	w := &fakeWallet{account: &fakeAccount{addr: "0xabc"}}
	a, store := newAdapter(t, "starknet", w)

	_, err := a.Connect(context.Background())
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Nil(t, store.Get())
}

func TestConnectorFallsBackToID(t *testing.T) {
	w := &fakeWallet{
		info:    starknet.WalletInfo{ID: "braavos", SelectedAddress: "0xsel"},
		account: &fakeAccount{provider: fakeProvider{}},
	}
	a, _ := newAdapter(t, "starknet_braavos", w)

	sess, err := a.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "braavos", sess.Connector)
	assert.Equal(t, "0xsel", sess.Address)
}

func TestDisconnectIdempotent(t *testing.T) {
	w := &fakeWallet{account: &fakeAccount{addr: "0xabc", provider: fakeProvider{}}}
	a, store := newAdapter(t, "starknet", w)
	_, err := a.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, a.Disconnect(context.Background()))
	require.NoError(t, a.Disconnect(context.Background()))
	assert.Nil(t, store.Get())
}

func TestActiveSessionSilentRediscovery(t *testing.T) {
	ctx := context.Background()

	w := &fakeWallet{account: &fakeAccount{addr: "0xabc", provider: fakeProvider{}}}
	a, store := newAdapter(t, "starknet", w)

	sess, err := a.ActiveSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess, "unauthorized wallet yields no session")
	assert.Nil(t, store.Get())

	w.authorized = true
	sess, err = a.ActiveSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "0xabc", sess.Address)
	assert.NotNil(t, store.Get())
	assert.Empty(t, w.enableCalls, "rediscovery never prompts")
}

func TestActiveSessionNoWallet(t *testing.T) {
	a, _ := newAdapter(t, "", nil)
	sess, err := a.ActiveSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

// noEnableWallet hides the Enable method and reports itself authorized.
type noEnableWallet struct {
	*fakeWallet
}

func (w *noEnableWallet) Enable() {}

func (w *noEnableWallet) Account(ctx context.Context) (starknet.Account, error) {
	w.fakeWallet.authorized = true
	return w.fakeWallet.Account(ctx)
}
