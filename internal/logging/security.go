// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package logging

import "strings"

// RedactToken returns a loggable form of a bearer token. The full token is a
// credential and must never reach logs; only a short prefix survives so that
// operators can correlate entries with client reports.
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	const keep = 6
	if len(token) <= keep {
		return "[redacted]"
	}
	return token[:keep] + "...[redacted]"
}

// SanitizeError strips anything that looks like an embedded credential from an
// error string before logging. JWT parse errors can echo parts of the token.
func SanitizeError(msg string) string {
	// Segments with two dots and base64url characters resemble a compact JWS.
	fields := strings.Fields(msg)
	for i, f := range fields {
		if strings.Count(f, ".") == 2 && len(f) > 20 {
			fields[i] = "[redacted]"
		}
	}
	return strings.Join(fields, " ")
}
