// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func writeHealth(w http.ResponseWriter, status int, state string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:    state,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// healthLive reports process liveness. Always healthy while the listener
// answers.
func (router *Router) healthLive(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, http.StatusOK, "ok")
}

// healthReady reports readiness to accept chat connections, which requires
// the hub's run loop to be active.
func (router *Router) healthReady(w http.ResponseWriter, _ *http.Request) {
	if router.readiness == nil || !router.readiness.Running() {
		writeHealth(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeHealth(w, http.StatusOK, "ready")
}
