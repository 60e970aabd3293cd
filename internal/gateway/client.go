// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/mfeltz/relaygate/internal/auth"
	"github.com/mfeltz/relaygate/internal/logging"
	"github.com/mfeltz/relaygate/internal/metrics"
	"github.com/mfeltz/relaygate/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 64 KB; chat frames are small

	// disconnectGrace is how long a faulted connection is kept open so the
	// closing envelope has a chance to flush before the socket is torn down.
	disconnectGrace = time.Second

	sendBufferSize = 256
)

// clientIDCounter generates unique, monotonically increasing IDs for clients.
// IDs give broadcast operations a stable iteration order regardless of map
// iteration randomness.
var clientIDCounter atomic.Uint64

// FrameHandler consumes inbound frames read off a client's connection.
type FrameHandler interface {
	Handle(c *Client, frame models.Frame)
}

// Client is a middleman between one websocket connection and the hub. Every
// client carries the authenticated principal of the connection; frames are
// handled one at a time by the readPump goroutine, so per-connection event
// handling is serialized without additional locking.
type Client struct {
	id        uint64
	hub       *Hub
	conn      *websocket.Conn
	principal *auth.Principal
	handler   FrameHandler

	// sendMu guards send against the hub closing it while a frame handler
	// still running in the readPump goroutine queues a reply.
	sendMu     sync.RWMutex
	sendClosed bool
	send       chan models.Push
}

// NewClient creates a client for an already-authenticated connection.
func NewClient(hub *Hub, conn *websocket.Conn, principal *auth.Principal, handler FrameHandler) *Client {
	return &Client{
		id:        clientIDCounter.Add(1),
		hub:       hub,
		conn:      conn,
		principal: principal,
		handler:   handler,
		send:      make(chan models.Push, sendBufferSize),
	}
}

// ID returns the client's unique identifier for deterministic ordering.
func (c *Client) ID() uint64 {
	return c.id
}

// Principal returns the authenticated identity behind this connection.
func (c *Client) Principal() *auth.Principal {
	return c.principal
}

// TrySend queues a push without blocking. Returns false once the client has
// been dropped. A full buffer means the consumer cannot keep up with fan-out;
// the connection is torn down rather than letting one slow reader stall the
// hub.
func (c *Client) TrySend(p models.Push) bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.sendClosed {
		return false
	}

	select {
	case c.send <- p:
		return true
	default:
		metrics.SlowConsumerDrops.Inc()
		logging.Warn().
			Str("subject_id", c.principal.SubjectID).
			Str("event", p.Event).
			Msg("send buffer full, dropping slow consumer")
		if c.conn != nil {
			_ = c.conn.Close()
		}
		return false
	}
}

// CloseAfter tears the connection down after the given grace period. Used by
// the fault boundary so a final envelope can reach the peer first.
func (c *Client) CloseAfter(grace time.Duration) {
	if c.conn == nil {
		return
	}
	time.AfterFunc(grace, func() {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""),
			time.Now().Add(writeWait),
		)
		_ = c.conn.Close()
	})
}

// closeSend closes the outbound channel exactly once. Called only from the
// hub's run loop when the client is dropped; the lock excludes any in-flight
// TrySend before the channel closes.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// readPump pumps frames from the websocket connection into the frame handler.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).
					Str("subject_id", c.principal.SubjectID).
					Msg("unexpected websocket close")
			}
			break
		}

		var frame models.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			env := models.NewErrorEnvelope(CodeValidation, "malformed frame: expected {event, data}")
			c.TrySend(models.Push{Event: models.EventError, Data: env})
			continue
		}

		c.handler.Handle(c, frame)
	}
}

// writePump pumps queued pushes to the websocket connection and keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case push, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(push)
			if err != nil {
				logging.Error().Err(err).Str("event", push.Event).Msg("failed to marshal push")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
