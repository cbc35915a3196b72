// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package points

import (
	"sync"

	"github.com/ManuGH/ytpoint/internal/metrics"
)

// Store holds RawMetrics and the Breakdown derived from them under a single
// lock, so a reader never sees the two from different mutations.
type Store struct {
	mu     sync.RWMutex
	rates  RateConfig
	raw    RawMetrics
	points Breakdown
	seq    uint64
}

// NewStore returns an empty store using rates.
func NewStore(rates RateConfig) (*Store, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	return &Store{rates: rates}, nil
}

// Rates returns the rates currently in effect.
func (s *Store) Rates() RateConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rates
}

// Begin starts a new session: rates are replaced, the tip total is zeroed and
// the subscriber baseline is fixed. Manual points carry over.
func (s *Store) Begin(rates RateConfig, viewers, likes, subscribers int64) (Snapshot, error) {
	if err := rates.Validate(); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates = rates
	s.raw = RawMetrics{
		ConcurrentViewers:  viewers,
		LikeCount:          likes,
		InitialSubscribers: subscribers,
		CurrentSubscribers: subscribers,
	}
	return s.commitLocked(), nil
}

// ApplyTip adds amount to the cumulative tip total.
func (s *Store) ApplyTip(amount int64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw.TipTotal += amount
	return s.commitLocked()
}

// ApplyPoll overwrites the polled counters with the latest scrape.
func (s *Store) ApplyPoll(viewers, likes, subscribers int64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw.ConcurrentViewers = viewers
	s.raw.LikeCount = likes
	s.raw.CurrentSubscribers = subscribers
	return s.commitLocked()
}

// AddManual adds amount (which may be negative) to the manual component.
func (s *Store) AddManual(amount int64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points.Manual += amount
	return s.commitLocked()
}

// Reset zeroes tips, polled counters and manual points. With
// keepInitialSubscribers both subscriber fields are set to the prior baseline
// so the subscriber component reads zero without losing it.
func (s *Store) Reset(keepInitialSubscribers bool) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var base int64
	if keepInitialSubscribers {
		base = s.raw.InitialSubscribers
	}
	s.raw = RawMetrics{InitialSubscribers: base, CurrentSubscribers: base}
	s.points.Manual = 0
	return s.commitLocked()
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Points: s.points, Metrics: s.raw, Seq: s.seq}
}

func (s *Store) commitLocked() Snapshot {
	s.points = Compute(s.raw, s.rates, s.points.Manual)
	s.seq++
	metrics.PointsTotal.Set(float64(s.points.Total))
	return Snapshot{Points: s.points, Metrics: s.raw, Seq: s.seq}
}
