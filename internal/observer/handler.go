// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package observer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/mfeltz/relaygate/internal/auth"
	"github.com/mfeltz/relaygate/internal/gateway"
	"github.com/mfeltz/relaygate/internal/logging"
	"github.com/mfeltz/relaygate/internal/metrics"
	"github.com/mfeltz/relaygate/internal/models"
	"github.com/mfeltz/relaygate/internal/ratelimit"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 // observers only send tiny control frames

	// disconnectGrace keeps a rate-limited connection open long enough for
	// the closing envelope to flush.
	disconnectGrace = time.Second
)

// Conn is one attached observer connection. It implements Observer.
type Conn struct {
	ws        *websocket.Conn
	principal *auth.Principal
	send      chan models.Push
	done      chan struct{}
}

func newConn(ws *websocket.Conn, principal *auth.Principal) *Conn {
	return &Conn{
		ws:        ws,
		principal: principal,
		send:      make(chan models.Push, 64),
		done:      make(chan struct{}),
	}
}

// Send queues a push without blocking. Snapshots are coarse; a full buffer
// means the observer stopped reading, so the connection is closed.
func (c *Conn) Send(p models.Push) bool {
	select {
	case c.send <- p:
		return true
	default:
		_ = c.ws.Close()
		return false
	}
}

// SubjectID identifies the observer for logs.
func (c *Conn) SubjectID() string {
	return c.principal.SubjectID
}

// Handler serves the privileged metrics channel. Only role admin may attach;
// anyone else is refused before the upgrade, without an error envelope.
type Handler struct {
	broadcaster    *Broadcaster
	authenticator  *auth.Authenticator
	limiter        *ratelimit.Limiter
	allowedOrigins []string
}

// NewHandler creates the /ws/metrics endpoint handler. The limiter gates the
// observer control events the same way chat events are gated; nil disables
// rate limiting.
func NewHandler(broadcaster *Broadcaster, authenticator *auth.Authenticator, limiter *ratelimit.Limiter, allowedOrigins []string) *Handler {
	return &Handler{
		broadcaster:    broadcaster,
		authenticator:  authenticator,
		limiter:        limiter,
		allowedOrigins: allowedOrigins,
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ServeHTTP handles GET /ws/metrics.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, err := h.authenticator.Authenticate(r)
	if err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			metrics.AuthFailures.WithLabelValues("missing_token").Inc()
		} else {
			metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
		}
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if !principal.IsAdmin() {
		metrics.AuthFailures.WithLabelValues("forbidden").Inc()
		logging.Warn().
			Str("subject_id", principal.SubjectID).
			Str("role", principal.Role).
			Msg("non-admin attempted to attach to metrics channel")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("metrics websocket upgrade error")
		return
	}

	conn := newConn(ws, principal)
	go conn.writeLoop()
	h.broadcaster.Attach(conn)
	go h.readLoop(conn)
}

// readLoop consumes observer control frames: refresh triggers an out-of-band
// broadcast, subscribe re-sends an initial snapshot. Anything else is
// ignored. The observer detaches when the connection drops.
func (h *Handler) readLoop(c *Conn) {
	defer func() {
		h.broadcaster.Detach(c)
		_ = c.ws.Close()
		close(c.done)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var frame models.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		if h.limiter != nil {
			decision := h.limiter.Allow(c.principal.SubjectID)
			if !decision.Allowed {
				h.reject(c, decision)
				continue
			}
		}

		switch frame.Event {
		case models.EventRefresh:
			h.broadcaster.Refresh(context.Background())
		case models.EventSubscribe:
			h.broadcaster.Resend(context.Background(), c)
		}
	}
}

// reject sends the rate-limit envelope and schedules the disconnect. Each
// refresh is a full collaborator pull, so even admins are bounded.
func (h *Handler) reject(c *Conn, decision ratelimit.Decision) {
	metrics.RateLimitRejections.WithLabelValues(string(decision.Tier)).Inc()

	env := models.NewErrorEnvelope(gateway.CodeRateLimit, "rate limit exceeded, disconnecting")
	c.Send(models.Push{Event: models.EventRateLimitError, Data: env})
	time.AfterFunc(disconnectGrace, func() {
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""),
			time.Now().Add(writeWait),
		)
		_ = c.ws.Close()
	})
}

// writeLoop pumps queued pushes to the socket with ping keepalives, mirroring
// the chat client's write pump.
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case push := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			payload, err := json.Marshal(push)
			if err != nil {
				logging.Error().Err(err).Str("event", push.Event).Msg("failed to marshal observer push")
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
