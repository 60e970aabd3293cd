// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package api

import (
	"fmt"
	"net/http"
	"time"
)

// NewServer builds the process's HTTP server. Read and write timeouts are
// left unset: websocket connections are hijacked long-lived streams and the
// per-message deadlines live in the pumps. Header and idle timeouts still
// bound non-upgraded traffic.
func NewServer(host string, port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
