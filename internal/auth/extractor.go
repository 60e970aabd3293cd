// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package auth

import (
	"net/http"
	"strings"
)

// HandshakeTokenHeader is the dedicated handshake auth field clients may set
// on the upgrade request.
const HandshakeTokenHeader = "X-Auth-Token"

// TokenQueryParam is the query-string fallback for clients that cannot set
// headers on the upgrade request (browsers, mostly).
const TokenQueryParam = "token"

// TokenExtractor pulls a candidate bearer token from an upgrade request,
// returning "" when its location is empty.
type TokenExtractor func(r *http.Request) string

// Extractors returns the ordered extractor chain. The order is observable
// wire behavior and must stay stable: handshake field, then query parameter,
// then Authorization header.
func Extractors() []TokenExtractor {
	return []TokenExtractor{
		fromHandshakeHeader,
		fromQueryParam,
		fromAuthorizationHeader,
	}
}

// ExtractToken tries each extractor in order; the first non-empty result wins.
func ExtractToken(r *http.Request) string {
	for _, extract := range Extractors() {
		if token := extract(r); token != "" {
			return token
		}
	}
	return ""
}

func fromHandshakeHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HandshakeTokenHeader))
}

func fromQueryParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get(TokenQueryParam))
}

func fromAuthorizationHeader(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
