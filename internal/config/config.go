// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

// Package config loads and validates gateway configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables (highest precedence).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the gateway process.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Observer ObserverConfig `koanf:"observer"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// Environment selects development or production behavior. Internal fault
	// detail only crosses the wire in development.
	Environment string `koanf:"environment"`
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	// JWTSecret is the shared HMAC secret used to verify bearer tokens.
	// The gateway verifies tokens; it never mints them.
	JWTSecret string `koanf:"jwt_secret"`

	CORSOrigins []string `koanf:"cors_origins"`

	// RatePerMinute and RatePerHour are per-subject event ceilings. The
	// minute window is the primary guard; the hour window is a coarser
	// second layer.
	RatePerMinute     int  `koanf:"rate_per_minute"`
	RatePerHour       int  `koanf:"rate_per_hour"`
	RateLimitDisabled bool `koanf:"rate_limit_disabled"`
}

// GatewayConfig holds chat semantics settings.
type GatewayConfig struct {
	DefaultRoom  string `koanf:"default_room"`
	HistoryLimit int    `koanf:"history_limit"`
}

// ObserverConfig holds metrics-broadcast settings and the collaborator
// endpoints the scheduler pulls from. Empty endpoints leave that snapshot
// section permanently degraded rather than failing startup.
type ObserverConfig struct {
	BroadcastInterval time.Duration `koanf:"broadcast_interval"`

	RedisURL    string   `koanf:"redis_url"`
	DatabaseURL string   `koanf:"database_url"`
	QueueNames  []string `koanf:"queue_names"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// minJWTSecretLen is the minimum accepted HMAC secret length. Anything
// shorter is brute-forceable offline.
const minJWTSecretLen = 32

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if len(c.Security.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("security.jwt_secret must be at least %d characters", minJWTSecretLen)
	}
	if c.Security.RatePerMinute < 1 {
		return fmt.Errorf("security.rate_per_minute must be positive, got %d", c.Security.RatePerMinute)
	}
	if c.Security.RatePerHour < c.Security.RatePerMinute {
		return fmt.Errorf("security.rate_per_hour (%d) must not be lower than rate_per_minute (%d)",
			c.Security.RatePerHour, c.Security.RatePerMinute)
	}
	if c.Gateway.DefaultRoom == "" {
		return fmt.Errorf("gateway.default_room must not be empty")
	}
	if c.Gateway.HistoryLimit < 1 {
		return fmt.Errorf("gateway.history_limit must be positive, got %d", c.Gateway.HistoryLimit)
	}
	if c.Observer.BroadcastInterval < time.Second {
		return fmt.Errorf("observer.broadcast_interval %s too small", c.Observer.BroadcastInterval)
	}
	return nil
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}
