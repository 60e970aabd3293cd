// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

// Package main is the entry point for the Relaygate server.
//
// Relaygate is a real-time chat gateway: clients connect over WebSocket with
// a JWT, join rooms, exchange messages with bounded history replay, and see
// each other's presence and typing state. Privileged admin observers attach
// to a separate channel that streams periodic telemetry snapshots.
//
// Startup order:
//
//  1. Configuration: Koanf v2 layered sources (defaults, config.yaml, env)
//  2. Logging: zerolog, JSON or console format
//  3. Auth: JWT verifier over the shared secret
//  4. Gateway: history store, hub, rate limiter, event dispatcher
//  5. Observer collaborators: Redis and Postgres, both optional
//  6. Supervisor tree: realtime layer (hub, broadcaster, sweep) + API layer
//
// Shutdown is graceful on SIGINT/SIGTERM: the supervisor drains, the hub
// closes all clients, and the HTTP server stops with a timeout.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mfeltz/relaygate/internal/api"
	"github.com/mfeltz/relaygate/internal/auth"
	"github.com/mfeltz/relaygate/internal/config"
	"github.com/mfeltz/relaygate/internal/gateway"
	"github.com/mfeltz/relaygate/internal/history"
	"github.com/mfeltz/relaygate/internal/logging"
	"github.com/mfeltz/relaygate/internal/observer"
	"github.com/mfeltz/relaygate/internal/ratelimit"
	"github.com/mfeltz/relaygate/internal/supervisor"
	"github.com/mfeltz/relaygate/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("default_room", cfg.Gateway.DefaultRoom).
		Int("history_limit", cfg.Gateway.HistoryLimit).
		Bool("rate_limit_disabled", cfg.Security.RateLimitDisabled).
		Msg("configuration loaded")

	verifier, err := auth.NewVerifier(cfg.Security.JWTSecret)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to construct token verifier")
	}
	authenticator := auth.NewAuthenticator(verifier)

	hub := gateway.NewHub(history.NewStore(cfg.Gateway.HistoryLimit), cfg.Gateway.DefaultRoom)

	var limiter *ratelimit.Limiter
	if !cfg.Security.RateLimitDisabled {
		limiter = ratelimit.New(cfg.Security.RatePerMinute, cfg.Security.RatePerHour)
	} else {
		logging.Warn().Msg("per-subject rate limiting is disabled")
	}

	dispatcher := gateway.NewDispatcher(gateway.NewCoordinator(hub), limiter, cfg.IsDevelopment())
	chatHandler := gateway.NewHandler(hub, authenticator, dispatcher, cfg.Security.CORSOrigins)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := observer.NewCollector(buildCollaborators(ctx, cfg))
	broadcaster := observer.NewBroadcaster(collector, cfg.Observer.BroadcastInterval)
	observerHandler := observer.NewHandler(broadcaster, authenticator, limiter, cfg.Security.CORSOrigins)

	router := api.NewRouter(chatHandler, observerHandler, hub, cfg.Security.CORSOrigins)
	server := api.NewServer(cfg.Server.Host, cfg.Server.Port, router.Setup())

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddRealtimeService(services.NewRunnerService(hub, "chat-hub"))
	tree.AddRealtimeService(services.NewRunnerService(broadcaster, "metrics-broadcaster"))
	if limiter != nil {
		tree.AddRealtimeService(services.NewSweepService(limiter, 0))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Timeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("relaygate listening")

	if err := <-tree.ServeBackground(ctx); err != nil && err != context.Canceled {
		logging.Error().Err(err).Msg("supervisor terminated with error")
		os.Exit(1)
	}
	logging.Info().Msg("relaygate stopped")
}

// buildCollaborators wires the optional telemetry collaborators. Each one is
// wrapped in a circuit breaker; a missing URL leaves that section permanently
// degraded rather than failing startup.
func buildCollaborators(ctx context.Context, cfg *config.Config) (observer.QueueStats, observer.CacheProbe, observer.StoreProbe) {
	var (
		queue observer.QueueStats
		cache observer.CacheProbe
		store observer.StoreProbe
	)

	if cfg.Observer.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Observer.RedisURL)
		if err != nil {
			logging.Error().Err(err).Msg("invalid redis url, queue and cache telemetry disabled")
		} else {
			client := redis.NewClient(opts)
			if err := client.Ping(ctx).Err(); err != nil {
				logging.Warn().Err(err).Msg("redis unreachable at startup (will retry per snapshot)")
			}
			queue = observer.NewBreakerQueueStats(observer.NewRedisQueueStats(client, cfg.Observer.QueueNames), "redis-queue")
			cache = observer.NewBreakerCacheProbe(observer.NewRedisCacheProbe(client), "redis-cache")
		}
	} else {
		logging.Info().Msg("no redis url configured, queue and cache telemetry disabled")
	}

	if cfg.Observer.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.Observer.DatabaseURL)
		if err != nil {
			logging.Error().Err(err).Msg("invalid database url, store telemetry disabled")
		} else {
			if err := pool.Ping(ctx); err != nil {
				logging.Warn().Err(err).Msg("database unreachable at startup (will retry per snapshot)")
			}
			store = observer.NewBreakerStoreProbe(observer.NewPgxStoreProbe(pool), "primary-store")
		}
	} else {
		logging.Info().Msg("no database url configured, store telemetry disabled")
	}

	return queue, cache, store
}
