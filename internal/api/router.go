// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

// Package api provides HTTP routing using the Chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// upgradeRateLimit bounds pre-auth connection attempts per client IP. This
// sits in front of token verification, so unauthenticated churn cannot burn
// signature checks.
const (
	upgradeRateLimit  = 30
	upgradeRateWindow = time.Minute
)

// ReadinessChecker reports whether the gateway can accept connections.
// Satisfied by *gateway.Hub.
type ReadinessChecker interface {
	Running() bool
}

// Router assembles the HTTP surface: health, Prometheus exposition, the chat
// websocket, and the privileged metrics websocket.
type Router struct {
	chat      http.Handler
	observers http.Handler
	readiness ReadinessChecker
	origins   []string
}

// NewRouter creates a router over the two websocket handlers.
func NewRouter(chat, observers http.Handler, readiness ReadinessChecker, origins []string) *Router {
	return &Router{
		chat:      chat,
		observers: observers,
		readiness: readiness,
		origins:   origins,
	}
}

// Setup configures all routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Auth-Token"},
		MaxAge:         86400,
	}))

	r.Route("/healthz", func(r chi.Router) {
		r.Use(httprate.LimitByRealIP(1000, time.Minute))
		r.Get("/live", router.healthLive)
		r.Get("/ready", router.healthReady)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByRealIP(upgradeRateLimit, upgradeRateWindow))
		r.Handle("/ws", router.chat)
		r.Handle("/ws/metrics", router.observers)
	})

	return r
}
