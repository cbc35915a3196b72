// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package points turns raw engagement counters into a derived point score.
//
// All derived components use truncating integer division; the total is the
// sum of the displayed components, manual adjustment included.
package points

import (
	"errors"
	"fmt"
)

// ErrInvalidRate is returned for a non-positive divisor.
var ErrInvalidRate = errors.New("points: rate must be positive")

// RateConfig holds the divisors turning each signal into points.
type RateConfig struct {
	// Tip is the currency amount per point.
	Tip int64 `yaml:"tipRate" json:"tip_rate"`
	// Viewer is the number of concurrent viewers per point.
	Viewer int64 `yaml:"viewerRate" json:"viewer_rate"`
	// Like is the number of likes per point.
	Like int64 `yaml:"likeRate" json:"like_rate"`
	// Subscriber is the number of new subscribers per point.
	Subscriber int64 `yaml:"subscriberRate" json:"subscriber_rate"`
}

// DefaultRates returns the stock conversion rates.
func DefaultRates() RateConfig {
	return RateConfig{Tip: 100, Viewer: 100, Like: 10, Subscriber: 1}
}

// Validate checks that every divisor is positive.
func (r RateConfig) Validate() error {
	for name, v := range map[string]int64{
		"tipRate":        r.Tip,
		"viewerRate":     r.Viewer,
		"likeRate":       r.Like,
		"subscriberRate": r.Subscriber,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s=%d", ErrInvalidRate, name, v)
		}
	}
	return nil
}

// RawMetrics is the mutable engagement snapshot of a session.
type RawMetrics struct {
	TipTotal           int64 `json:"superchat_amount"`
	ConcurrentViewers  int64 `json:"concurrent_viewers"`
	LikeCount          int64 `json:"like_count"`
	InitialSubscribers int64 `json:"initial_subscribers"`
	CurrentSubscribers int64 `json:"current_subscribers"`
}

// Breakdown is the derived, read-only point view.
type Breakdown struct {
	Total       int64 `json:"total"`
	Tip         int64 `json:"superchat"`
	Viewers     int64 `json:"concurrent"`
	Likes       int64 `json:"likes"`
	Subscribers int64 `json:"subscribers"`
	Manual      int64 `json:"manual"`
}

// Compute derives a Breakdown from m. The subscriber component goes negative
// when the channel lost subscribers since the session began.
func Compute(m RawMetrics, r RateConfig, manual int64) Breakdown {
	b := Breakdown{
		Tip:         m.TipTotal / r.Tip,
		Viewers:     m.ConcurrentViewers / r.Viewer,
		Likes:       m.LikeCount / r.Like,
		Subscribers: (m.CurrentSubscribers - m.InitialSubscribers) / r.Subscriber,
		Manual:      manual,
	}
	b.Total = b.Tip + b.Viewers + b.Likes + b.Subscribers + b.Manual
	return b
}

// Snapshot pairs RawMetrics with the Breakdown computed from them.
// Seq increases with every mutation of the store.
type Snapshot struct {
	Points  Breakdown  `json:"points"`
	Metrics RawMetrics `json:"metrics"`
	Seq     uint64     `json:"seq"`
}
