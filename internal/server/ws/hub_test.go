package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/shadowmarket/internal/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type chanBus struct {
	domain.SignalBus
	ch chan []byte
}

func (b *chanBus) Subscribe(context.Context, string) (<-chan []byte, error) { return b.ch, nil }

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func startHub(t *testing.T, cfg Config) *Hub {
	t.Helper()
	hub := NewHub(cfg, discard)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()
	return hub
}

func TestHubSendsStatusThenActivity(t *testing.T) {
	hub := startHub(t, Config{Status: func() any { return map[string]string{"mode": "sim"} }})
	conn := dial(t, hub)

	env := readFrame(t, conn)
	assert.Equal(t, ChannelStatus, env.Type)
	assert.JSONEq(t, `{"mode":"sim"}`, string(env.Payload))

	item := domain.ActivityItem{ID: "a1", Title: "Wallet connected", Severity: domain.SeveritySuccess}
	require.NoError(t, hub.Record(context.Background(), item))

	env = readFrame(t, conn)
	assert.Equal(t, ChannelActivity, env.Type)
	var got domain.ActivityItem
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, "Wallet connected", got.Title)
}

func TestHubForwardsBus(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 1)}
	hub := startHub(t, Config{Bus: bus, BusChannel: "shadowmarket:activity"})
	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.clientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	bus.ch <- []byte(`{"id":"b7","title":"Reward claimed"}`)

	env := readFrame(t, conn)
	assert.Equal(t, ChannelActivity, env.Type)
	assert.JSONEq(t, `{"id":"b7","title":"Reward claimed"}`, string(env.Payload))
}

func TestHubUnsubscribe(t *testing.T) {
	hub := startHub(t, Config{})
	conn := dial(t, hub)

	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "unsubscribe", Channels: []string{ChannelActivity}}))
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for c := range hub.clients {
			if c.isSubscribed(ChannelActivity) {
				return false
			}
		}
		return len(hub.clients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Record(context.Background(), domain.ActivityItem{ID: "x"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "no frame expected after unsubscribe")
}

func TestHubRefusesClientsAfterShutdown(t *testing.T) {
	hub := NewHub(Config{}, discard)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(stopped)
	}()

	early := dial(t, hub)
	require.Eventually(t, func() bool { return hub.clientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	require.NoError(t, early.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := early.ReadMessage()
	require.Error(t, err)
	require.NoError(t, early.Close())

	late := dial(t, hub)
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
