// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = testSecret
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Security.RatePerMinute)
	assert.Equal(t, 500, cfg.Security.RatePerHour)
	assert.Equal(t, "general", cfg.Gateway.DefaultRoom)
	assert.Equal(t, 100, cfg.Gateway.HistoryLimit)
	assert.Equal(t, 30*time.Second, cfg.Observer.BroadcastInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing secret", func(c *Config) { c.Security.JWTSecret = "" }, "jwt_secret"},
		{"short secret", func(c *Config) { c.Security.JWTSecret = "tooshort" }, "jwt_secret"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero minute rate", func(c *Config) { c.Security.RatePerMinute = 0 }, "rate_per_minute"},
		{"hour below minute", func(c *Config) { c.Security.RatePerHour = 5 }, "rate_per_hour"},
		{"empty default room", func(c *Config) { c.Gateway.DefaultRoom = "" }, "default_room"},
		{"zero history", func(c *Config) { c.Gateway.HistoryLimit = 0 }, "history_limit"},
		{"tiny interval", func(c *Config) { c.Observer.BroadcastInterval = time.Millisecond }, "broadcast_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "10")
	t.Setenv("RATE_LIMIT_PER_HOUR", "100")
	t.Setenv("DEFAULT_ROOM", "lobby")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("QUEUE_NAMES", "mail,thumbs")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Security.RatePerMinute)
	assert.Equal(t, 100, cfg.Security.RatePerHour)
	assert.Equal(t, "lobby", cfg.Gateway.DefaultRoom)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORSOrigins)
	assert.Equal(t, []string{"mail", "thumbs"}, cfg.Observer.QueueNames)
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "jwt_secret"))
}

func TestEnvTransformDropsUnknownKeys(t *testing.T) {
	assert.Equal(t, "", envTransformFunc("PATH"))
	assert.Equal(t, "", envTransformFunc("HOME"))
	assert.Equal(t, "security.jwt_secret", envTransformFunc("JWT_SECRET"))
	assert.Equal(t, "server.port", envTransformFunc("HTTP_PORT"))
}

func TestIsDevelopment(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.IsDevelopment())
	cfg.Server.Environment = "production"
	assert.False(t, cfg.IsDevelopment())
}
