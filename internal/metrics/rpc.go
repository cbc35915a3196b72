// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors shared across ytpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal counts worker RPC calls by method and outcome
	// (ok, remote_error, timeout, worker_gone, write_error, canceled).
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytpoint_rpc_calls_total",
		Help: "Total number of worker RPC calls by method and result",
	}, []string{"method", "result"})

	// RPCCallDuration tracks round-trip latency of worker RPC calls.
	RPCCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ytpoint_rpc_call_duration_seconds",
		Help:    "Worker RPC round-trip latency in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method"})

	// RPCPending is the number of in-flight requests awaiting a response.
	RPCPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ytpoint_rpc_pending",
		Help: "Number of worker RPC requests awaiting a response",
	})

	// RPCOrphanResponsesTotal counts responses whose request was already resolved or timed out.
	RPCOrphanResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytpoint_rpc_orphan_responses_total",
		Help: "Total number of worker responses without a pending request",
	})
)

// ObserveRPCCall records the outcome and latency of a single RPC call.
func ObserveRPCCall(method, result string, d time.Duration) {
	if method == "" {
		method = "unknown"
	}
	RPCCallsTotal.WithLabelValues(method, result).Inc()
	RPCCallDuration.WithLabelValues(method).Observe(d.Seconds())
}
