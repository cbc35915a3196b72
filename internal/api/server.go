// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the control API, the overlay streams and the probes.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/ytpoint/internal/api/middleware"
	"github.com/ManuGH/ytpoint/internal/broadcast"
	"github.com/ManuGH/ytpoint/internal/health"
	"github.com/ManuGH/ytpoint/internal/journal"
	"github.com/ManuGH/ytpoint/internal/points"
	"github.com/ManuGH/ytpoint/internal/session"
)

// Controller is the session surface driven over HTTP.
type Controller interface {
	View() session.View
	Start(ctx context.Context, ref string) (session.Info, error)
	Stop(ctx context.Context) error
	AddManual(ctx context.Context, amount int64) (points.Snapshot, error)
	Reset(ctx context.Context) points.Snapshot
}

// Config holds the HTTP-facing settings.
type Config struct {
	AllowedOrigins []string
	// RateLimit is requests per minute per client on control routes; 0 disables.
	RateLimit int
	KeepAlive time.Duration
	// TracingService names HTTP spans; empty disables otelhttp.
	TracingService string
	CSP            string
	// MountMetrics serves /metrics on the API listener too.
	MountMetrics bool
	// StateWait bounds a GET /api/v1/state?since= long poll.
	StateWait time.Duration
}

const defaultStateWait = 25 * time.Second

// Deps are the collaborators the server routes to. Journal and Health are optional.
type Deps struct {
	Controller Controller
	Hub        *broadcast.Hub
	Journal    journal.Journal
	Health     *health.Manager
}

// Server is the HTTP API.
type Server struct {
	cfg     Config
	deps    Deps
	origins middleware.Origins
}

// New validates deps and builds a server.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Controller == nil {
		return nil, errors.New("api: controller is required")
	}
	if deps.Hub == nil {
		return nil, errors.New("api: hub is required")
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	if cfg.StateWait <= 0 {
		cfg.StateWait = defaultStateWait
	}
	return &Server{
		cfg:     cfg,
		deps:    deps,
		origins: middleware.NewOrigins(cfg.AllowedOrigins),
	}, nil
}

// Handler returns the router with all routes and middleware applied.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		Origins:               s.origins,
		EnableSecurityHeaders: true,
		CSP:                   s.cfg.CSP,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
	})

	r.Get("/", s.handleOverlay)
	r.Get("/overlay", s.handleOverlay)
	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	if s.cfg.MountMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Handle("/events", broadcast.NewSSEHandler(s.deps.Hub, s.cfg.KeepAlive))
	r.Handle("/ws", broadcast.NewWSHandler(s.deps.Hub, s.cfg.KeepAlive, s.origins.CheckOrigin))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/tips", s.handleTips)

		r.Group(func(r chi.Router) {
			r.Use(middleware.CSRFProtection(s.origins))
			r.Use(middleware.ControlRateLimit(s.cfg.RateLimit))
			r.Post("/session", s.handleStart)
			r.Delete("/session", s.handleStop)
			r.Post("/points/manual", s.handleManual)
			r.Post("/points/reset", s.handleReset)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorCode(w, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorCode(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

// NewMetricsHandler serves Prometheus metrics for a dedicated listener.
func NewMetricsHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	return r
}
