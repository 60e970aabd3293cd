// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

// Package services adapts the gateway's long-running components to the
// suture.Service interface.
package services

import (
	"context"
	"time"
)

// ContextRunner matches components that block in RunWithContext until
// canceled. Satisfied by *gateway.Hub and *observer.Broadcaster; the
// interface keeps this package free of those imports.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// RunnerService wraps a ContextRunner as a supervised service.
type RunnerService struct {
	runner ContextRunner
	name   string
}

// NewRunnerService wraps runner; name identifies the service in suture logs.
func NewRunnerService(runner ContextRunner, name string) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.RunWithContext(ctx)
}

// String implements fmt.Stringer for suture's log messages.
func (s *RunnerService) String() string {
	return s.name
}

// Sweeper matches the rate limiter's background cleanup surface.
type Sweeper interface {
	StartSweep(interval time.Duration)
	Stop()
}

// SweepService runs a Sweeper under supervision so the cleanup goroutine
// stops with the rest of the realtime layer.
type SweepService struct {
	sweeper  Sweeper
	interval time.Duration
}

// NewSweepService creates the rate-limit sweep service.
func NewSweepService(sweeper Sweeper, interval time.Duration) *SweepService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SweepService{sweeper: sweeper, interval: interval}
}

// Serve implements suture.Service. StartSweep blocks in its ticker loop, so
// it runs on its own goroutine; cancellation stops it via the sweeper's own
// shutdown signal.
func (s *SweepService) Serve(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.sweeper.StartSweep(s.interval)
	}()

	<-ctx.Done()
	s.sweeper.Stop()
	<-done
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *SweepService) String() string {
	return "ratelimit-sweep"
}
