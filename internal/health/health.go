// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package health serves liveness and readiness probes with per-component status.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/ManuGH/ytpoint/internal/log"
)

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager manages health and readiness checks
type Manager struct {
	version  string
	checkers []Checker
}

// NewManager creates a new health check manager
func NewManager(version string) *Manager {
	return &Manager{
		version:  version,
		checkers: make([]Checker, 0),
	}
}

// RegisterChecker adds a health checker to the manager
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// Health performs a health check (liveness probe)
// Returns 200 if the process is alive, regardless of service state
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
	}

	// If verbose, include component checks
	if verbose && len(m.checkers) > 0 {
		resp.Checks = make(map[string]CheckResult)
		hasUnhealthy := false
		hasDegraded := false

		for _, checker := range m.checkers {
			result := checker.Check(ctx)
			resp.Checks[checker.Name()] = result

			switch result.Status {
			case StatusUnhealthy:
				hasUnhealthy = true
			case StatusDegraded:
				hasDegraded = true
			}
		}

		// Overall status based on components
		if hasUnhealthy {
			resp.Status = StatusUnhealthy
		} else if hasDegraded {
			resp.Status = StatusDegraded
		}
	}

	return resp
}

// Ready performs a readiness check (readiness probe)
// Returns 200 if services are initialized and ready to serve traffic
func (m *Manager) Ready(ctx context.Context, _ bool) ReadinessResponse {
	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}

	if len(m.checkers) == 0 {
		// No checkers registered - consider ready
		return resp
	}

	resp.Checks = make(map[string]CheckResult)
	hasUnhealthy := false
	hasDegraded := false

	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		resp.Checks[checker.Name()] = result

		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
			resp.Ready = false
		case StatusDegraded:
			hasDegraded = true
		}
	}

	// Overall status
	if hasUnhealthy {
		resp.Status = StatusUnhealthy
	} else if hasDegraded {
		resp.Status = StatusDegraded
	}

	return resp
}

// ServeHealth handles HTTP health check requests
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // Always 200 for liveness

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "health.encode_error").Msg("failed to encode health response")
	}

	logger.Debug().
		Str("event", "health.checked").
		Str("status", string(resp.Status)).
		Bool("verbose", verbose).
		Msg("health check performed")
}

// ServeReady handles HTTP readiness check requests
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Ready(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str("event", "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Bool("verbose", verbose).
		Msg("readiness check performed")
}

// PingChecker reports a dependency reachable through ping. An optional
// dependency that fails degrades instead of failing readiness.
type PingChecker struct {
	name     string
	ping     func(ctx context.Context) error
	optional bool
	timeout  time.Duration
}

// NewPingChecker creates a checker calling ping with a 2s deadline.
func NewPingChecker(name string, optional bool, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping, optional: optional, timeout: 2 * time.Second}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.ping(ctx); err != nil {
		status := StatusUnhealthy
		if c.optional {
			status = StatusDegraded
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

// NewCheckerFunc names fn as a checker.
func NewCheckerFunc(name string, fn func(ctx context.Context) CheckResult) CheckerFunc {
	return CheckerFunc{name: name, fn: fn}
}

func (c CheckerFunc) Name() string { return c.name }

func (c CheckerFunc) Check(ctx context.Context) CheckResult { return c.fn(ctx) }
