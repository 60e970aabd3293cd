// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mfeltz/relaygate/internal/auth"
	"github.com/mfeltz/relaygate/internal/logging"
	"github.com/mfeltz/relaygate/internal/metrics"
)

// Handler authenticates and upgrades chat connections. Authentication runs
// before the upgrade so an unauthenticated peer never reaches the hub or any
// event handler.
type Handler struct {
	hub            *Hub
	authenticator  *auth.Authenticator
	dispatcher     *Dispatcher
	allowedOrigins []string
}

// NewHandler creates the /ws endpoint handler.
func NewHandler(hub *Hub, authenticator *auth.Authenticator, dispatcher *Dispatcher, allowedOrigins []string) *Handler {
	return &Handler{
		hub:            hub,
		authenticator:  authenticator,
		dispatcher:     dispatcher,
		allowedOrigins: allowedOrigins,
	}
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkOrigin validates the Origin header against the configured allow list.
// A missing Origin is allowed: browsers always send one, so its absence means
// a non-browser client that CORS cannot protect anyway.
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
	logging.Warn().Str("origin", origin).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// ServeHTTP handles GET /ws.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.hub.Running() {
		http.Error(w, "gateway unavailable", http.StatusServiceUnavailable)
		return
	}

	principal, err := h.authenticator.Authenticate(r)
	if err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			metrics.AuthFailures.WithLabelValues("missing_token").Inc()
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade error")
		return
	}

	client := NewClient(h.hub, conn, principal, h.dispatcher)
	h.hub.Register <- client
	client.Start()
}
