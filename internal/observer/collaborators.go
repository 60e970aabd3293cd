// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

// Package observer implements the privileged metrics channel: a broadcast
// scheduler that pushes periodic telemetry snapshots to admin observers,
// pulling from pluggable collaborators behind circuit breakers.
package observer

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mfeltz/relaygate/internal/models"
)

// Collaborator interfaces. Implementations must honor the context deadline;
// the collector bounds every pull.

// QueueStats reports background-queue depths.
type QueueStats interface {
	QueueCounts(ctx context.Context) (models.QueueCounts, error)
}

// CacheProbe reports cache reachability and latency.
type CacheProbe interface {
	CacheHealth(ctx context.Context) (models.CacheHealth, error)
}

// StoreProbe reports primary-store connectivity and latency.
type StoreProbe interface {
	StoreHealth(ctx context.Context) (models.StoreHealth, error)
}

// RedisQueueStats reads queue depths with LLEN over the configured queue keys.
type RedisQueueStats struct {
	client *redis.Client
	queues []string
}

// NewRedisQueueStats creates a queue-depth collaborator over Redis lists.
func NewRedisQueueStats(client *redis.Client, queues []string) *RedisQueueStats {
	return &RedisQueueStats{client: client, queues: queues}
}

func (s *RedisQueueStats) QueueCounts(ctx context.Context) (models.QueueCounts, error) {
	counts := models.QueueCounts{Queues: make(map[string]int64, len(s.queues))}
	for _, queue := range s.queues {
		depth, err := s.client.LLen(ctx, queue).Result()
		if err != nil {
			return models.QueueCounts{}, fmt.Errorf("llen %q: %w", queue, err)
		}
		counts.Queues[queue] = depth
		counts.Total += depth
	}
	return counts, nil
}

// RedisCacheProbe checks cache health with a PING round trip.
type RedisCacheProbe struct {
	client *redis.Client
}

// NewRedisCacheProbe creates a cache-health collaborator.
func NewRedisCacheProbe(client *redis.Client) *RedisCacheProbe {
	return &RedisCacheProbe{client: client}
}

func (p *RedisCacheProbe) CacheHealth(ctx context.Context) (models.CacheHealth, error) {
	start := time.Now()
	if err := p.client.Ping(ctx).Err(); err != nil {
		return models.CacheHealth{}, fmt.Errorf("cache ping: %w", err)
	}
	return models.CacheHealth{
		Healthy:   true,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
	}, nil
}

// PgxStoreProbe checks primary-store connectivity via the connection pool.
type PgxStoreProbe struct {
	pool *pgxpool.Pool
}

// NewPgxStoreProbe creates a store-health collaborator.
func NewPgxStoreProbe(pool *pgxpool.Pool) *PgxStoreProbe {
	return &PgxStoreProbe{pool: pool}
}

func (p *PgxStoreProbe) StoreHealth(ctx context.Context) (models.StoreHealth, error) {
	start := time.Now()
	if err := p.pool.Ping(ctx); err != nil {
		return models.StoreHealth{}, fmt.Errorf("store ping: %w", err)
	}
	return models.StoreHealth{
		Connected: true,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
	}, nil
}
