// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

// Package auth gates the connection-open transition: it extracts a bearer
// token from the upgrade request, verifies it against the shared secret, and
// attaches the resulting principal to the connection. The gateway only
// verifies tokens; issuance lives elsewhere.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role admitted on the privileged metrics channel.
const RoleAdmin = "admin"

// ErrInvalidToken covers every verification failure: malformed, expired,
// wrong signature, wrong algorithm. Callers must not distinguish further on
// the wire.
var ErrInvalidToken = errors.New("invalid token")

// Principal is the verified identity attached to a connection after
// authentication. Immutable for the connection's lifetime.
type Principal struct {
	SubjectID string
	Email     string
	Role      string
}

// IsAdmin reports whether the principal may attach to the metrics channel.
func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Claims is the expected JWT claim set.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens against a shared HMAC secret.
type Verifier struct {
	secret []byte
}

// minSecretLen guards against trivially brute-forceable HMAC keys.
const minSecretLen = 32

// NewVerifier creates a token verifier. The secret must be at least 32 bytes.
func NewVerifier(secret string) (*Verifier, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", minSecretLen)
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify parses and validates a token string, returning the principal derived
// from the claims. Every failure wraps ErrInvalidToken; signature, expiry and
// not-before are all enforced by the parse.
func (v *Verifier) Verify(tokenString string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Pin the algorithm family to prevent alg-confusion downgrades.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: unusable claims", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &Principal{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
	}, nil
}

// Sign mints a token for the given principal. Production credential issuance
// is out of scope for the gateway; this exists for tests and local tooling.
func (v *Verifier) Sign(p *Principal, ttl time.Duration) (string, error) {
	claims := &Claims{
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.SubjectID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
