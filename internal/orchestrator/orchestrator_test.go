package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

func newTestOrchestrator(opts ...Option) *Orchestrator {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func TestRunSuccess(t *testing.T) {
	o := newTestOrchestrator()
	assert.Equal(t, StatusIdle, o.Status(KeyClaim))

	got, err := Run(context.Background(), o, KeyClaim, func(context.Context) (string, error) {
		assert.Equal(t, StatusRunning, o.Status(KeyClaim))
		return "0xtx", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "0xtx", got)
	assert.Equal(t, StatusSuccess, o.Status(KeyClaim))
	assert.Empty(t, o.Err())
}

func TestRunError(t *testing.T) {
	o := newTestOrchestrator()
	rejection := errors.New("Nullifier already used")

	_, err := Run(context.Background(), o, KeyClaim, func(context.Context) (int, error) {
		return 0, rejection
	})
	assert.Same(t, rejection, err)
	assert.Equal(t, StatusError, o.Status(KeyClaim))
	assert.Equal(t, "Nullifier already used", o.Err())
	assert.Equal(t, "Nullifier already used", o.KeyError(KeyClaim))
}

func TestRunFromTerminalState(t *testing.T) {
	o := newTestOrchestrator()
	require.Error(t, o.Do(context.Background(), KeyResolve, func(context.Context) error { return errors.New("boom") }))
	assert.Equal(t, StatusError, o.Status(KeyResolve))

	require.NoError(t, o.Do(context.Background(), KeyResolve, func(context.Context) error {
		assert.Equal(t, StatusRunning, o.Status(KeyResolve))
		assert.Empty(t, o.KeyError(KeyResolve))
		return nil
	}))
	assert.Equal(t, StatusSuccess, o.Status(KeyResolve))
}

func TestSharedErrorClearedByOtherKey(t *testing.T) {
	o := newTestOrchestrator()
	require.Error(t, o.Do(context.Background(), KeyClaim, func(context.Context) error { return errors.New("claim failed") }))
	assert.Equal(t, "claim failed", o.Err())

	require.NoError(t, o.Do(context.Background(), KeyDeposit, func(context.Context) error { return nil }))
	assert.Empty(t, o.Err(), "any run clears the shared slot")
	assert.Equal(t, "claim failed", o.KeyError(KeyClaim), "per-key error survives")
	assert.Equal(t, StatusError, o.Status(KeyClaim))
}

func TestSameKeyLastTerminalStatusWins(t *testing.T) {
	o := newTestOrchestrator()
	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = o.Do(context.Background(), KeyCreate, func(context.Context) error {
			close(started)
			<-release
			return errors.New("first failed")
		})
	}()
	<-started

	require.NoError(t, o.Do(context.Background(), KeyCreate, func(context.Context) error { return nil }))
	assert.Equal(t, StatusSuccess, o.Status(KeyCreate))

	close(release)
	wg.Wait()
	assert.Equal(t, StatusError, o.Status(KeyCreate))
}

func TestLogActivityRing(t *testing.T) {
	o := newTestOrchestrator()
	for i := 0; i < 20; i++ {
		o.LogActivity(context.Background(), fmt.Sprintf("item %d", i), "", domain.SeverityInfo)
	}
	items := o.Activity()
	require.Len(t, items, DefaultActivityCapacity)
	assert.Equal(t, "item 19", items[0].Title)
	assert.Equal(t, "item 8", items[len(items)-1].Title)

	ids := map[string]bool{}
	for _, it := range items {
		assert.False(t, ids[it.ID], "duplicate id %s", it.ID)
		ids[it.ID] = true
		assert.False(t, it.Timestamp.IsZero())
	}
}

func TestLogActivityCapacity(t *testing.T) {
	o := newTestOrchestrator(WithCapacity(3))
	for i := 0; i < 5; i++ {
		o.LogActivity(context.Background(), fmt.Sprintf("item %d", i), "detail", domain.SeveritySuccess)
	}
	items := o.Activity()
	require.Len(t, items, 3)
	assert.Equal(t, []string{"item 4", "item 3", "item 2"}, []string{items[0].Title, items[1].Title, items[2].Title})
}

type recordingSink struct {
	mu    sync.Mutex
	items []domain.ActivityItem
	err   error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Record(_ context.Context, item domain.ActivityItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return s.err
}

func TestSinksReceiveEveryItem(t *testing.T) {
	good := &recordingSink{}
	bad := &recordingSink{err: errors.New("sink down")}
	o := newTestOrchestrator(WithSinks(bad, good))

	item := o.LogActivity(context.Background(), "Wallet connected", "0xabc", domain.SeveritySuccess)
	require.Len(t, good.items, 1)
	assert.Equal(t, item, good.items[0])
	assert.Len(t, bad.items, 1)
	assert.Len(t, o.Activity(), 1)
}

func TestSnapshot(t *testing.T) {
	o := newTestOrchestrator()
	require.Error(t, o.Do(context.Background(), KeyWithdraw, func(context.Context) error { return errors.New("no notes") }))
	o.LogActivity(context.Background(), "Withdraw failed", "no notes", domain.SeverityWarning)

	snap := o.Snapshot()
	assert.Len(t, snap.Statuses, len(Keys))
	assert.Equal(t, StatusError, snap.Statuses[KeyWithdraw])
	assert.Equal(t, StatusIdle, snap.Statuses[KeyBoot])
	assert.Equal(t, "no notes", snap.Error)
	assert.Equal(t, "no notes", snap.KeyErrors[KeyWithdraw])
	require.Len(t, snap.Activity, 1)

	snap.Activity[0].Title = "mutated"
	assert.Equal(t, "Withdraw failed", o.Activity()[0].Title)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	o := newTestOrchestrator(WithMetrics(m))

	require.NoError(t, o.Do(context.Background(), KeyBoot, func(context.Context) error { return nil }))
	require.Error(t, o.Do(context.Background(), KeyBoot, func(context.Context) error { return errors.New("x") }))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("boot", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("boot", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight.WithLabelValues("boot")))
}
