// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package models

import "time"

// Section status values for metrics snapshots. A collaborator failure
// degrades its section to SectionError; the rest of the snapshot is intact.
const (
	SectionOK    = "ok"
	SectionError = "error"
)

// QueueCounts reports background-job queue depths by queue name.
type QueueCounts struct {
	Queues map[string]int64 `json:"queues"`
	Total  int64            `json:"total"`
}

// CacheHealth reports cache-store reachability and round-trip latency.
type CacheHealth struct {
	Healthy   bool    `json:"healthy"`
	LatencyMs float64 `json:"latencyMs"`
}

// StoreHealth reports primary-store connectivity and round-trip latency.
type StoreHealth struct {
	Connected bool    `json:"connected"`
	LatencyMs float64 `json:"latencyMs"`
}

// QueueSection is the queue portion of a snapshot.
type QueueSection struct {
	Status string       `json:"status"`
	Counts *QueueCounts `json:"counts,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// CacheSection is the cache portion of a snapshot.
type CacheSection struct {
	Status string       `json:"status"`
	Health *CacheHealth `json:"health,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// StoreSection is the primary-store portion of a snapshot.
type StoreSection struct {
	Status string       `json:"status"`
	Health *StoreHealth `json:"health,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// MetricsSnapshot is one telemetry pull pushed to all privileged observers.
type MetricsSnapshot struct {
	Timestamp time.Time    `json:"timestamp"`
	Queue     QueueSection `json:"queue"`
	Cache     CacheSection `json:"cache"`
	Store     StoreSection `json:"store"`
}
