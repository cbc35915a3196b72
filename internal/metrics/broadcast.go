// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BroadcastPublishedTotal counts snapshots handed to the fan-out hub.
	BroadcastPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytpoint_broadcast_published_total",
		Help: "Total number of items published to the broadcast hub",
	}, []string{"type"})

	// BroadcastDroppedTotal counts items evicted from slow subscriber buffers.
	BroadcastDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytpoint_broadcast_dropped_total",
		Help: "Total number of items dropped for slow subscribers by transport",
	}, []string{"transport"})

	// BroadcastStaleTotal counts snapshots dropped because a newer one was already published.
	BroadcastStaleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytpoint_broadcast_stale_snapshots_total",
		Help: "Total number of out-of-order snapshots discarded by the broadcast hub",
	})

	// BroadcastSubscribers is the number of live remote subscriptions.
	BroadcastSubscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ytpoint_broadcast_subscribers",
		Help: "Current number of remote broadcast subscribers by transport",
	}, []string{"transport"})
)

// IncBroadcastDrop records a dropped item for the given transport.
func IncBroadcastDrop(transport string) {
	if transport == "" {
		transport = "unknown"
	}
	BroadcastDroppedTotal.WithLabelValues(transport).Inc()
}
