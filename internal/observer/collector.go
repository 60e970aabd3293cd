// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package observer

import (
	"context"
	"sync"
	"time"

	"github.com/mfeltz/relaygate/internal/metrics"
	"github.com/mfeltz/relaygate/internal/models"
)

// defaultPullTimeout bounds one snapshot pull across all collaborators.
const defaultPullTimeout = 5 * time.Second

const sectionUnconfigured = "collaborator not configured"

// Collector assembles telemetry snapshots. Any collaborator may be nil, in
// which case its section is permanently degraded; a pull failure degrades
// only that section.
type Collector struct {
	queue QueueStats
	cache CacheProbe
	store StoreProbe

	timeout time.Duration
}

// NewCollector creates a collector over the given collaborators.
func NewCollector(queue QueueStats, cache CacheProbe, store StoreProbe) *Collector {
	return &Collector{
		queue:   queue,
		cache:   cache,
		store:   store,
		timeout: defaultPullTimeout,
	}
}

// Snapshot pulls all three collaborators concurrently and assembles the
// result. It never fails as a whole; errors appear as degraded sections.
func (c *Collector) Snapshot(ctx context.Context) models.MetricsSnapshot {
	start := time.Now()
	defer func() {
		metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	snapshot := models.MetricsSnapshot{Timestamp: time.Now().UTC()}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		if c.queue == nil {
			snapshot.Queue = models.QueueSection{Status: models.SectionError, Error: sectionUnconfigured}
			return
		}
		counts, err := c.queue.QueueCounts(ctx)
		if err != nil {
			metrics.SnapshotSectionErrors.WithLabelValues("queue").Inc()
			snapshot.Queue = models.QueueSection{Status: models.SectionError, Error: err.Error()}
			return
		}
		snapshot.Queue = models.QueueSection{Status: models.SectionOK, Counts: &counts}
	}()

	go func() {
		defer wg.Done()
		if c.cache == nil {
			snapshot.Cache = models.CacheSection{Status: models.SectionError, Error: sectionUnconfigured}
			return
		}
		health, err := c.cache.CacheHealth(ctx)
		if err != nil {
			metrics.SnapshotSectionErrors.WithLabelValues("cache").Inc()
			snapshot.Cache = models.CacheSection{Status: models.SectionError, Error: err.Error()}
			return
		}
		snapshot.Cache = models.CacheSection{Status: models.SectionOK, Health: &health}
	}()

	go func() {
		defer wg.Done()
		if c.store == nil {
			snapshot.Store = models.StoreSection{Status: models.SectionError, Error: sectionUnconfigured}
			return
		}
		health, err := c.store.StoreHealth(ctx)
		if err != nil {
			metrics.SnapshotSectionErrors.WithLabelValues("store").Inc()
			snapshot.Store = models.StoreSection{Status: models.SectionError, Error: err.Error()}
			return
		}
		snapshot.Store = models.StoreSection{Status: models.SectionOK, Health: &health}
	}()

	wg.Wait()
	return snapshot
}
