// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"github.com/go-chi/chi/v5"
)

// StackConfig configures the canonical ingress middleware stack.
type StackConfig struct {
	Origins Origins

	EnableSecurityHeaders bool
	CSP                   string

	EnableMetrics bool
	// TracingService names HTTP spans; empty disables tracing.
	TracingService string
	EnableLogging  bool
}

// NewRouter constructs a chi router with the canonical middleware stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the stack outermost first: recovery, correlation, CORS,
// headers, metrics, tracing, access log.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(CORS(cfg.Origins))
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders(cfg.CSP))
	}
	if cfg.EnableMetrics {
		r.Use(Metrics)
	}
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(AccessLog)
	}
}
