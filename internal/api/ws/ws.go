// Package ws serves dashboard subscribers over websocket connections.
// Each accepted connection implements broadcast.Subscriber, so the
// Broadcaster fans monitoring events straight out to it; a slow client
// has events dropped rather than stalling the publisher.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lanwatch/lanwatch/internal/core/broadcast"
)

const (
	writeTimeout  = 10 * time.Second
	pongTimeout   = 60 * time.Second
	pingInterval  = (pongTimeout * 9) / 10
	sendQueueSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one accepted dashboard connection. It satisfies
// broadcast.Subscriber.
type client struct {
	id     string
	conn   *websocket.Conn
	send   chan broadcast.Envelope
	logger *zap.SugaredLogger

	closed    atomic.Bool
	closeOnce sync.Once
}

func (c *client) ID() string { return c.id }

// Ready reports whether the connection is still open.
func (c *client) Ready() bool { return !c.closed.Load() }

// Send queues env for delivery; a full queue means the client is slow
// or dead, so the event is dropped rather than blocking the publisher.
func (c *client) Send(env broadcast.Envelope) {
	if c.closed.Load() {
		return
	}
	select {
	case c.send <- env:
	default:
		c.logger.Warnw("dashboard client send queue full, dropping event", "client", c.id, "type", env.Type)
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.send)
		c.conn.Close()
	})
}

// Hub upgrades inbound HTTP connections to websockets and registers
// each as a Broadcaster subscriber.
type Hub struct {
	logger *zap.SugaredLogger
	bus    *broadcast.Broadcaster
}

// NewHub builds a Hub that registers accepted connections with bus.
func NewHub(logger *zap.SugaredLogger, bus *broadcast.Broadcaster) *Hub {
	return &Hub{logger: logger, bus: bus}
}

// ServeHTTP upgrades the request and runs the connection's read/write
// pumps until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan broadcast.Envelope, sendQueueSize),
		logger: h.logger,
	}
	h.bus.Subscribe(c)
	h.logger.Infow("dashboard client connected", "client", c.id, "subscribers", h.bus.Count())

	go h.writePump(c)
	h.readPump(c)
}

// readPump only drains control frames (pings, close); dashboard
// clients do not send application messages upstream.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.bus.Unsubscribe(c.id)
		c.close()
		h.logger.Infow("dashboard client disconnected", "client", c.id)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(env)
			if err != nil {
				h.logger.Warnw("envelope marshal failed", "client", c.id, "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
