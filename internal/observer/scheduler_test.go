// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package observer

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mfeltz/relaygate/internal/logging"
	"github.com/mfeltz/relaygate/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// stubQueueStats counts pulls and optionally fails.
type stubQueueStats struct {
	pulls atomic.Int64
	err   error
}

func (s *stubQueueStats) QueueCounts(context.Context) (models.QueueCounts, error) {
	s.pulls.Add(1)
	if s.err != nil {
		return models.QueueCounts{}, s.err
	}
	return models.QueueCounts{Queues: map[string]int64{"default": 4}, Total: 4}, nil
}

type stubCacheProbe struct {
	err error
}

func (s *stubCacheProbe) CacheHealth(context.Context) (models.CacheHealth, error) {
	if s.err != nil {
		return models.CacheHealth{}, s.err
	}
	return models.CacheHealth{Healthy: true, LatencyMs: 0.4}, nil
}

type stubStoreProbe struct {
	err error
}

func (s *stubStoreProbe) StoreHealth(context.Context) (models.StoreHealth, error) {
	if s.err != nil {
		return models.StoreHealth{}, s.err
	}
	return models.StoreHealth{Connected: true, LatencyMs: 1.2}, nil
}

// recordingObserver collects pushes for assertions.
type recordingObserver struct {
	mu     sync.Mutex
	pushes []models.Push
	id     string
}

func (r *recordingObserver) Send(p models.Push) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, p)
	return true
}

func (r *recordingObserver) SubjectID() string { return r.id }

func (r *recordingObserver) snapshot() []models.Push {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Push, len(r.pushes))
	copy(out, r.pushes)
	return out
}

func (r *recordingObserver) countByEvent(event string) int {
	n := 0
	for _, p := range r.snapshot() {
		if p.Event == event {
			n++
		}
	}
	return n
}

func newTestBroadcaster(interval time.Duration) (*Broadcaster, *stubQueueStats) {
	queue := &stubQueueStats{}
	collector := NewCollector(queue, &stubCacheProbe{}, &stubStoreProbe{})
	return NewBroadcaster(collector, interval), queue
}

func TestBroadcaster_IdleDoesNotPull(t *testing.T) {
	b, queue := newTestBroadcaster(20 * time.Millisecond)

	time.Sleep(100 * time.Millisecond)

	if b.Broadcasting() {
		t.Error("broadcaster should be idle with zero observers")
	}
	if got := queue.pulls.Load(); got != 0 {
		t.Errorf("collaborator pulled %d times while idle, want 0", got)
	}
}

func TestBroadcaster_FirstObserverGetsImmediateSnapshot(t *testing.T) {
	b, _ := newTestBroadcaster(time.Hour)
	o := &recordingObserver{id: "admin"}

	b.Attach(o)
	defer b.Detach(o)

	if !b.Broadcasting() {
		t.Error("ticker should be armed after the first attach")
	}
	if got := o.countByEvent(models.EventInitial); got != 1 {
		t.Fatalf("observer received %d initial snapshots, want 1 immediately", got)
	}

	snap, ok := o.snapshot()[0].Data.(models.MetricsSnapshot)
	if !ok {
		t.Fatalf("initial data = %T, want MetricsSnapshot", o.snapshot()[0].Data)
	}
	if snap.Queue.Status != models.SectionOK || snap.Queue.Counts.Total != 4 {
		t.Errorf("queue section = %+v, want ok with total 4", snap.Queue)
	}
	if snap.Cache.Status != models.SectionOK || snap.Store.Status != models.SectionOK {
		t.Errorf("cache/store sections = %+v / %+v, want ok", snap.Cache, snap.Store)
	}
	if snap.Timestamp.IsZero() {
		t.Error("snapshot timestamp should be set")
	}
}

func TestBroadcaster_PeriodicUpdates(t *testing.T) {
	b, _ := newTestBroadcaster(30 * time.Millisecond)
	o := &recordingObserver{id: "admin"}

	b.Attach(o)
	time.Sleep(110 * time.Millisecond)
	b.Detach(o)

	if got := o.countByEvent(models.EventUpdate); got < 2 {
		t.Errorf("observer received %d periodic updates, want at least 2", got)
	}
}

func TestBroadcaster_LastDetachStopsTicker(t *testing.T) {
	b, queue := newTestBroadcaster(20 * time.Millisecond)
	o1 := &recordingObserver{id: "a"}
	o2 := &recordingObserver{id: "b"}

	b.Attach(o1)
	b.Attach(o2)
	if b.ObserverCount() != 2 {
		t.Fatalf("ObserverCount = %d, want 2", b.ObserverCount())
	}

	b.Detach(o1)
	if !b.Broadcasting() {
		t.Error("ticker should stay armed while an observer remains")
	}

	b.Detach(o2)
	if b.Broadcasting() {
		t.Error("ticker should be canceled after the last detach")
	}

	pullsAtStop := queue.pulls.Load()
	time.Sleep(100 * time.Millisecond)
	if got := queue.pulls.Load(); got != pullsAtStop {
		t.Errorf("pulls continued after last detach: %d -> %d", pullsAtStop, got)
	}
}

func TestBroadcaster_RearmAfterIdle(t *testing.T) {
	b, _ := newTestBroadcaster(time.Hour)
	o := &recordingObserver{id: "admin"}

	b.Attach(o)
	b.Detach(o)
	b.Attach(o)
	defer b.Detach(o)

	if !b.Broadcasting() {
		t.Error("ticker should re-arm on the next first attach")
	}
	if got := o.countByEvent(models.EventInitial); got != 2 {
		t.Errorf("observer received %d initial snapshots across two attaches, want 2", got)
	}
}

func TestBroadcaster_RefreshIsOutOfBand(t *testing.T) {
	b, queue := newTestBroadcaster(time.Hour)
	o := &recordingObserver{id: "admin"}

	b.Attach(o)
	defer b.Detach(o)

	before := queue.pulls.Load()
	b.Refresh(context.Background())

	if got := queue.pulls.Load(); got != before+1 {
		t.Errorf("refresh pulled %d times, want exactly one extra pull", got-before)
	}
	if got := o.countByEvent(models.EventUpdate); got != 1 {
		t.Errorf("observer received %d updates after refresh, want 1", got)
	}
	if !b.Broadcasting() {
		t.Error("refresh must not disturb the armed ticker")
	}
}

func TestBroadcaster_DetachUnknownObserverIsNoop(t *testing.T) {
	b, _ := newTestBroadcaster(time.Hour)
	b.Detach(&recordingObserver{id: "ghost"})

	if b.ObserverCount() != 0 {
		t.Errorf("ObserverCount = %d, want 0", b.ObserverCount())
	}
}

func TestCollector_SectionDegradation(t *testing.T) {
	queue := &stubQueueStats{err: errors.New("redis: connection refused")}
	collector := NewCollector(queue, &stubCacheProbe{}, &stubStoreProbe{})

	snap := collector.Snapshot(context.Background())

	if snap.Queue.Status != models.SectionError {
		t.Errorf("queue status = %q, want error", snap.Queue.Status)
	}
	if snap.Queue.Error == "" {
		t.Error("degraded section should carry the error text")
	}
	if snap.Queue.Counts != nil {
		t.Error("degraded section should carry no counts")
	}
	if snap.Cache.Status != models.SectionOK {
		t.Errorf("cache status = %q, a queue failure must not degrade other sections", snap.Cache.Status)
	}
	if snap.Store.Status != models.SectionOK {
		t.Errorf("store status = %q, want ok", snap.Store.Status)
	}
}

func TestCollector_NilCollaborators(t *testing.T) {
	collector := NewCollector(nil, nil, nil)

	snap := collector.Snapshot(context.Background())

	for name, status := range map[string]string{
		"queue": snap.Queue.Status,
		"cache": snap.Cache.Status,
		"store": snap.Store.Status,
	} {
		if status != models.SectionError {
			t.Errorf("%s status = %q, want permanently degraded", name, status)
		}
	}
	if snap.Queue.Error != sectionUnconfigured {
		t.Errorf("queue error = %q, want %q", snap.Queue.Error, sectionUnconfigured)
	}
}

func TestBroadcaster_FailedTickKeepsTicking(t *testing.T) {
	queue := &stubQueueStats{err: errors.New("down")}
	collector := NewCollector(queue, &stubCacheProbe{err: errors.New("down")}, &stubStoreProbe{err: errors.New("down")})
	b := NewBroadcaster(collector, 25*time.Millisecond)
	o := &recordingObserver{id: "admin"}

	b.Attach(o)
	time.Sleep(90 * time.Millisecond)
	b.Detach(o)

	// Fully degraded snapshots still go out on schedule.
	if got := o.countByEvent(models.EventUpdate); got < 2 {
		t.Errorf("received %d updates with failing collaborators, want at least 2", got)
	}
}

func TestBroadcaster_ShutdownDropsObservers(t *testing.T) {
	b, _ := newTestBroadcaster(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.RunWithContext(ctx) }()
	time.Sleep(10 * time.Millisecond)

	o := &recordingObserver{id: "admin"}
	b.Attach(o)

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("RunWithContext returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcaster did not stop after cancel")
	}

	if b.ObserverCount() != 0 {
		t.Errorf("ObserverCount = %d after shutdown, want 0", b.ObserverCount())
	}
	if b.Broadcasting() {
		t.Error("ticker should be stopped after shutdown")
	}
}
