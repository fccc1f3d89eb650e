package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := Wrap(context.Background(), goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestLockManager(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)
	lm := NewLockManager(c)

	unlock, err := lm.Acquire(ctx, "create_market:0xfac", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("shadowmarket:lock:create_market:0xfac"))

	_, err = lm.Acquire(ctx, "create_market:0xfac", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()
	assert.False(t, mr.Exists("shadowmarket:lock:create_market:0xfac"))

	again, err := lm.Acquire(ctx, "create_market:0xfac", time.Minute)
	require.NoError(t, err)
	again()
}

func TestLockExpiredHolderCannotReleaseSuccessor(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)
	lm := NewLockManager(c)

	stale, err := lm.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	_, err = lm.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	stale()
	assert.True(t, mr.Exists("shadowmarket:lock:k"))
}

func TestActivityPublisher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, _ := newTestClient(t)
	bus := NewSignalBusWithMaxLen(c, 100)
	pub := NewActivityPublisher(bus)
	assert.Equal(t, "redis", pub.Name())

	sub, err := bus.Subscribe(ctx, ActivityChannel)
	require.NoError(t, err)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, title := range []string{"Wallet connected", "Collateral shielded"} {
		require.NoError(t, pub.Record(ctx, domain.ActivityItem{
			ID:        "id-" + title,
			Title:     title,
			Timestamp: ts.Add(time.Duration(i) * time.Second),
			Severity:  domain.SeverityInfo,
		}))
	}

	select {
	case payload := <-sub:
		assert.Contains(t, string(payload), "Wallet connected")
	case <-time.After(2 * time.Second):
		t.Fatal("no activity published")
	}

	recent, err := pub.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "Collateral shielded", recent[0].Title)
	assert.True(t, recent[1].Timestamp.Equal(ts))

	msgs, err := bus.StreamRead(ctx, ActivityStream, "0", 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestStreamReadEmpty(t *testing.T) {
	c, _ := newTestClient(t)
	msgs, err := NewSignalBus(c).StreamRead(context.Background(), "missing", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	rl := NewRateLimiter(c)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		now = now.Add(time.Millisecond)
		ok, err := rl.Allow(ctx, "api:10.0.0.1", 3, time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := rl.Allow(ctx, "api:10.0.0.1", 3, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rl.Allow(ctx, "api:10.0.0.2", 3, time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "budgets are per key")

	now = now.Add(2 * time.Second)
	ok, err = rl.Allow(ctx, "api:10.0.0.1", 3, time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "window slides")
}
