// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package observer

import (
	"context"
	"sync"
	"time"

	"github.com/mfeltz/relaygate/internal/logging"
	"github.com/mfeltz/relaygate/internal/metrics"
	"github.com/mfeltz/relaygate/internal/models"
)

// Observer is one attached privileged connection.
type Observer interface {
	// Send queues a push without blocking; false means the observer is gone.
	Send(p models.Push) bool
	// SubjectID identifies the observer for logs.
	SubjectID() string
}

// Broadcaster is the metrics broadcast scheduler. It is idle while no
// observer is attached; the first attach arms the periodic ticker and every
// attach pushes an immediate initial snapshot to the newcomer. The last
// detach cancels the ticker promptly. A degraded snapshot never stops
// subsequent ticks.
type Broadcaster struct {
	collector *Collector
	interval  time.Duration

	mu         sync.Mutex
	observers  map[Observer]struct{}
	cancelTick context.CancelFunc
	tickDone   chan struct{}

	// baseCtx parents each broadcasting episode so supervisor shutdown
	// stops an armed ticker.
	baseCtx context.Context
}

// NewBroadcaster creates a scheduler in the idle state.
func NewBroadcaster(collector *Collector, interval time.Duration) *Broadcaster {
	return &Broadcaster{
		collector: collector,
		interval:  interval,
		observers: make(map[Observer]struct{}),
		baseCtx:   context.Background(),
	}
}

// RunWithContext parks the scheduler under supervision. The scheduler itself
// is event-driven; this anchors episode contexts and tears everything down on
// shutdown.
func (b *Broadcaster) RunWithContext(ctx context.Context) error {
	b.mu.Lock()
	b.baseCtx = ctx
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	if b.cancelTick != nil {
		b.cancelTick()
		b.cancelTick = nil
	}
	count := len(b.observers)
	b.observers = make(map[Observer]struct{})
	metrics.ObserversActive.Set(0)
	b.mu.Unlock()

	logging.Info().
		Str("component", "metrics-broadcaster").
		Int("observers_dropped", count).
		Msg("metrics broadcaster stopped")
	return ctx.Err()
}

// Attach registers an observer. The newcomer receives an initial snapshot
// right away; if this is the first observer the ticker is armed.
func (b *Broadcaster) Attach(o Observer) {
	b.mu.Lock()
	b.observers[o] = struct{}{}
	first := len(b.observers) == 1
	if first {
		var tickCtx context.Context
		tickCtx, b.cancelTick = context.WithCancel(b.baseCtx)
		b.tickDone = make(chan struct{})
		go b.tick(tickCtx, b.tickDone)
	}
	count := len(b.observers)
	base := b.baseCtx
	b.mu.Unlock()

	metrics.ObserversActive.Set(float64(count))
	logging.Info().
		Str("subject_id", o.SubjectID()).
		Int("observers", count).
		Bool("ticker_armed", first).
		Msg("metrics observer attached")

	snapshot := b.collector.Snapshot(base)
	o.Send(models.Push{Event: models.EventInitial, Data: snapshot})
}

// Detach removes an observer. When the last one leaves the ticker is
// canceled synchronously, so no further broadcast work runs for an empty
// audience.
func (b *Broadcaster) Detach(o Observer) {
	b.mu.Lock()
	if _, ok := b.observers[o]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.observers, o)
	count := len(b.observers)
	var done chan struct{}
	if count == 0 && b.cancelTick != nil {
		b.cancelTick()
		b.cancelTick = nil
		done = b.tickDone
		b.tickDone = nil
	}
	b.mu.Unlock()

	if done != nil {
		<-done
	}

	metrics.ObserversActive.Set(float64(count))
	logging.Info().
		Str("subject_id", o.SubjectID()).
		Int("observers", count).
		Msg("metrics observer detached")
}

// Refresh performs one out-of-band pull and pushes an update to every
// observer. The periodic schedule is not disturbed.
func (b *Broadcaster) Refresh(ctx context.Context) {
	snapshot := b.collector.Snapshot(ctx)
	b.push(models.Push{Event: models.EventUpdate, Data: snapshot})
}

// Resend pushes a fresh initial snapshot to a single observer.
func (b *Broadcaster) Resend(ctx context.Context, o Observer) {
	snapshot := b.collector.Snapshot(ctx)
	o.Send(models.Push{Event: models.EventInitial, Data: snapshot})
}

// ObserverCount returns the number of attached observers.
func (b *Broadcaster) ObserverCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}

// Broadcasting reports whether the ticker is currently armed.
func (b *Broadcaster) Broadcasting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelTick != nil
}

func (b *Broadcaster) tick(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := b.collector.Snapshot(ctx)
			b.push(models.Push{Event: models.EventUpdate, Data: snapshot})
		}
	}
}

func (b *Broadcaster) push(p models.Push) {
	b.mu.Lock()
	targets := make([]Observer, 0, len(b.observers))
	for o := range b.observers {
		targets = append(targets, o)
	}
	b.mu.Unlock()

	for _, o := range targets {
		o.Send(p)
	}
}
