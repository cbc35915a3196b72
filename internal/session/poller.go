// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"time"

	"github.com/ManuGH/ytpoint/internal/log"
	"github.com/ManuGH/ytpoint/internal/metrics"
)

// DefaultPollInterval is used when no interval is configured.
const DefaultPollInterval = 5 * time.Second

// Poller calls poll on every tick while its context is live. A failed poll is
// logged and the loop carries on; the poller never tears anything down.
type Poller struct {
	interval time.Duration
	poll     func(ctx context.Context) error
}

// NewPoller returns a poller calling poll every interval.
func NewPoller(interval time.Duration, poll func(ctx context.Context) error) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{interval: interval, poll: poll}
}

// Run blocks until ctx is done. It always returns nil so a session task group
// is never cancelled by a poll failure.
func (p *Poller) Run(ctx context.Context) error {
	logger := log.WithComponentFromContext(ctx, "poller")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("polling stopped")
			return nil
		case <-ticker.C:
		}
		// the session may have ended while we waited for the tick
		if ctx.Err() != nil {
			return nil
		}
		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.PollTotal.WithLabelValues("error").Inc()
			logger.Warn().Err(err).Msg("metrics poll failed")
			continue
		}
		metrics.PollTotal.WithLabelValues("ok").Inc()
	}
}
