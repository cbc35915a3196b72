// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session states exported by SessionState. Only one is 1 at a time.
var sessionStates = []string{"idle", "starting", "active", "stopping"}

var (
	// SessionState reports the current monitoring session state.
	SessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ytpoint_session_state",
		Help: "Current monitoring session state (1 = current)",
	}, []string{"state"})

	// SessionStartTotal counts start attempts by result.
	SessionStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytpoint_session_start_total",
		Help: "Total number of session start attempts by result",
	}, []string{"result"})

	// PollTotal counts polling ticks by result.
	PollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytpoint_poll_total",
		Help: "Total number of metrics polls by result",
	}, []string{"result"})

	// PointsTotal is the latest derived grand total.
	PointsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ytpoint_points_total",
		Help: "Current derived point total",
	})

	// TipsTotal counts tips applied to the metrics store.
	TipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytpoint_tips_total",
		Help: "Total number of tips received by currency",
	}, []string{"currency"})
)

// SetSessionState flips the state gauge so exactly one state reads 1.
func SetSessionState(state string) {
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		SessionState.WithLabelValues(s).Set(v)
	}
}
