// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package auth

import (
	"errors"
	"net/http"

	"github.com/mfeltz/relaygate/internal/logging"
)

// ErrNoToken is returned when no extractor finds a credential.
var ErrNoToken = errors.New("no token in handshake")

// Authenticator runs the connection-open gate: extract, verify, attach.
// It runs exactly once per connection, synchronously with the upgrade; every
// component downstream may assume a connection it sees carries a principal.
type Authenticator struct {
	verifier *Verifier
}

// NewAuthenticator creates an Authenticator over the given verifier.
func NewAuthenticator(verifier *Verifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// Authenticate extracts a token from the upgrade request and verifies it.
// Both outcomes emit one structured log entry with the raw token redacted.
func (a *Authenticator) Authenticate(r *http.Request) (*Principal, error) {
	token := ExtractToken(r)
	if token == "" {
		logging.Warn().
			Str("component", "auth").
			Str("remote", r.RemoteAddr).
			Msg("connection rejected: no token in handshake")
		return nil, ErrNoToken
	}

	principal, err := a.verifier.Verify(token)
	if err != nil {
		logging.Warn().
			Str("component", "auth").
			Str("remote", r.RemoteAddr).
			Str("token", logging.RedactToken(token)).
			Str("reason", logging.SanitizeError(err.Error())).
			Msg("connection rejected: token verification failed")
		return nil, err
	}

	logging.Info().
		Str("component", "auth").
		Str("subject", principal.SubjectID).
		Str("role", principal.Role).
		Msg("connection authenticated")
	return principal, nil
}
