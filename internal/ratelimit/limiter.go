// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

// Package ratelimit implements per-subject fixed-window event limiting with
// two layered windows: a fine minute window and a coarse hour window. The
// fixed-window shape (count resets atomically at the boundary) is observable
// behavior: a subject gets exactly the ceiling within one window.
package ratelimit

import (
	"sync"
	"time"
)

// Tier identifies which window tripped a denial.
type Tier string

const (
	TierMinute Tier = "minute"
	TierHour   Tier = "hour"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// Tier is set when Allowed is false.
	Tier Tier
	// RetryAfter is how long until the tripped window resets.
	RetryAfter time.Duration
}

var allow = Decision{Allowed: true}

// window is one fixed counting window. count is monotonically non-decreasing
// within a window and resets together with the boundary.
type window struct {
	count   int
	resetAt time.Time
}

// Limiter tracks one pair of windows per subject. Decisions for different
// subjects are fully independent.
type Limiter struct {
	mu       sync.Mutex
	subjects map[string]*subjectWindows

	perMinute int
	perHour   int

	minuteSpan time.Duration
	hourSpan   time.Duration

	stopSweep chan struct{}
	sweepOnce sync.Once

	// now is swappable for tests.
	now func() time.Time
}

type subjectWindows struct {
	minute window
	hour   window
}

// New creates a Limiter with the given per-window ceilings.
func New(perMinute, perHour int) *Limiter {
	return &Limiter{
		subjects:   make(map[string]*subjectWindows),
		perMinute:  perMinute,
		perHour:    perHour,
		minuteSpan: time.Minute,
		hourSpan:   time.Hour,
		stopSweep:  make(chan struct{}),
		now:        time.Now,
	}
}

// Allow records one event for the subject and reports whether it is within
// both ceilings. Window creation is lazy; expired windows reset on access.
func (l *Limiter) Allow(subjectID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	sw, ok := l.subjects[subjectID]
	if !ok {
		sw = &subjectWindows{
			minute: window{resetAt: now.Add(l.minuteSpan)},
			hour:   window{resetAt: now.Add(l.hourSpan)},
		}
		l.subjects[subjectID] = sw
	}

	if now.After(sw.minute.resetAt) {
		sw.minute = window{resetAt: now.Add(l.minuteSpan)}
	}
	if now.After(sw.hour.resetAt) {
		sw.hour = window{resetAt: now.Add(l.hourSpan)}
	}

	sw.minute.count++
	sw.hour.count++

	if sw.minute.count > l.perMinute {
		return Decision{Allowed: false, Tier: TierMinute, RetryAfter: sw.minute.resetAt.Sub(now)}
	}
	if sw.hour.count > l.perHour {
		return Decision{Allowed: false, Tier: TierHour, RetryAfter: sw.hour.resetAt.Sub(now)}
	}
	return allow
}

// StartSweep runs a periodic cleanup deleting subjects whose windows are all
// expired, bounding memory for abandoned subjects. Blocks until Stop.
func (l *Limiter) StartSweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopSweep:
			return
		}
	}
}

// sweep removes fully-expired subject windows.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, sw := range l.subjects {
		if now.After(sw.minute.resetAt) && now.After(sw.hour.resetAt) {
			delete(l.subjects, id)
		}
	}
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.sweepOnce.Do(func() { close(l.stopSweep) })
}

// TrackedSubjects returns the number of subjects currently holding windows.
func (l *Limiter) TrackedSubjects() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subjects)
}
