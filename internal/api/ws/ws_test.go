package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lanwatch/lanwatch/internal/core/broadcast"
)

func dialTestHub(t *testing.T) (*broadcast.Broadcaster, *websocket.Conn) {
	t.Helper()
	bus := broadcast.New(zap.NewNop().Sugar())
	hub := NewHub(zap.NewNop().Sugar(), bus)
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// the server registers the subscriber just after the upgrade returns
	deadline := time.Now().Add(2 * time.Second)
	for bus.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, bus.Count(), "client never registered with the broadcaster")
	return bus, conn
}

func TestPublishedEventsReachTheClient(t *testing.T) {
	bus, conn := dialTestHub(t)

	bus.Publish("monitoring_update", map[string]int{"devices": 2})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var env broadcast.Envelope
	require.NoError(t, json.Unmarshal(payload, &env))
	assert.Equal(t, "monitoring_update", env.Type)
	assert.NotEmpty(t, env.Timestamp)
}

func TestClientDisconnectUnsubscribes(t *testing.T) {
	bus, conn := dialTestHub(t)

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for bus.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, bus.Count())
}

func TestSendDropsWhenQueueFull(t *testing.T) {
	c := &client{
		id:     "test",
		send:   make(chan broadcast.Envelope, 1),
		logger: zap.NewNop().Sugar(),
	}
	c.Send(broadcast.Envelope{Type: "a"})
	c.Send(broadcast.Envelope{Type: "b"}) // queue full, dropped

	assert.Len(t, c.send, 1)
	got := <-c.send
	assert.Equal(t, "a", got.Type)
}
