// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workerStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytpoint_worker_start_total",
		Help: "Total number of worker process starts",
	}, []string{"result"})

	workerExitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytpoint_worker_exit_total",
		Help: "Total number of worker process exits",
	}, []string{"reason"})

	// PushEventsTotal counts unsolicited worker events by kind and routing outcome.
	PushEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytpoint_push_events_total",
		Help: "Total number of worker push events by kind and outcome",
	}, []string{"kind", "outcome"})

	// DecodeErrorsTotal counts worker stdout lines that matched no message shape.
	DecodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytpoint_worker_decode_errors_total",
		Help: "Total number of undecodable worker output lines",
	})

	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytpoint_proc_terminate_total",
		Help: "Signals sent while terminating worker process groups",
	}, []string{"signal", "result"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytpoint_proc_wait_total",
		Help: "Worker process wait outcomes after termination",
	}, []string{"outcome"})
)

// IncWorkerStart records a worker spawn attempt.
func IncWorkerStart(result string) {
	workerStartTotal.WithLabelValues(result).Inc()
}

// IncWorkerExit records why a worker process went away.
func IncWorkerExit(reason string) {
	workerExitTotal.WithLabelValues(reason).Inc()
}

// IncPushEvent records a routed or dropped push event.
func IncPushEvent(kind, outcome string) {
	if kind == "" {
		kind = "unknown"
	}
	PushEventsTotal.WithLabelValues(kind, outcome).Inc()
}

// IncProcTerminate records a termination signal and its result.
func IncProcTerminate(signal, result string) {
	procTerminateTotal.WithLabelValues(signal, result).Inc()
}

// IncProcWait records how a terminated process was reaped.
func IncProcWait(outcome string) {
	procWaitTotal.WithLabelValues(outcome).Inc()
}
