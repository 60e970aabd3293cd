// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/relaygate/config.yaml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns built-in defaults, applied before file and env layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8090,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Security: SecurityConfig{
			JWTSecret:         "",
			CORSOrigins:       []string{"*"},
			RatePerMinute:     30,
			RatePerHour:       500,
			RateLimitDisabled: false,
		},
		Gateway: GatewayConfig{
			DefaultRoom:  "general",
			HistoryLimit: 100,
		},
		Observer: ObserverConfig{
			BroadcastInterval: 30 * time.Second,
			RedisURL:          "",
			DatabaseURL:       "",
			QueueNames:        []string{"default"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration with layered precedence: ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are the paths parsed as comma-separated slices when they
// arrive from the environment as plain strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"observer.queue_names",
}

// processSliceFields converts comma-separated env strings into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps recognized environment variables to config paths.
// Unmapped variables are dropped so arbitrary process env cannot pollute the
// configuration.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		"jwt_secret":            "security.jwt_secret",
		"cors_origins":          "security.cors_origins",
		"rate_limit_per_minute": "security.rate_per_minute",
		"rate_limit_per_hour":   "security.rate_per_hour",
		"disable_rate_limit":    "security.rate_limit_disabled",

		"default_room":  "gateway.default_room",
		"history_limit": "gateway.history_limit",

		"broadcast_interval": "observer.broadcast_interval",
		"redis_url":          "observer.redis_url",
		"database_url":       "observer.database_url",
		"queue_names":        "observer.queue_names",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
