package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiterRefills(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLocalLimiter()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for range 3 {
		ok, err := l.Allow(ctx, "k", 3, 3*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "k", 3, 3*time.Second)
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "other", 3, 3*time.Second)
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Second)
	ok, _ = l.Allow(ctx, "k", 3, 3*time.Second)
	assert.True(t, ok, "one token back after a third of the window")
}

func TestLocalLimiterDisabled(t *testing.T) {
	ok, err := NewLocalLimiter().Allow(context.Background(), "k", 0, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLimiterSweepsIdleKeys(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLocalLimiter()
	l.now = func() time.Time { return now }
	for i := range maxLocalKeys {
		_, _ = l.Allow(context.Background(), "k"+strconv.Itoa(i), 1, time.Second)
	}
	require.Len(t, l.buckets, maxLocalKeys)

	now = now.Add(time.Minute)
	_, _ = l.Allow(context.Background(), "fresh", 1, time.Second)
	assert.Len(t, l.buckets, 1)
}

func TestExtractClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", extractClientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", extractClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.1, 10.0.0.1")
	assert.Equal(t, "203.0.113.1", extractClientIP(r))
}

func TestAuthWebSocketToken(t *testing.T) {
	h := Auth("k")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token=k", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state?token=k", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
