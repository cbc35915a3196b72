// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rpc

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/ytpoint/internal/log"
	"github.com/ManuGH/ytpoint/internal/metrics"
	"github.com/ManuGH/ytpoint/internal/worker/protocol"
)

// Listener receives push events of one kind. It runs on the worker read loop
// and must not block.
type Listener func(ev *protocol.PushEvent)

// Router sends responses to the Correlator and push events to the listener
// registered for their kind.
type Router struct {
	corr   *Correlator
	logger zerolog.Logger

	mu        sync.RWMutex
	listeners map[string]Listener

	// at most one malformed-line warning per second, bursts of 5
	warn *rate.Limiter
}

// NewRouter returns a router delivering responses to corr.
func NewRouter(corr *Correlator) *Router {
	return &Router{
		corr:      corr,
		logger:    log.WithComponent("router"),
		listeners: make(map[string]Listener),
		warn:      rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Correlator returns the correlator responses are routed to.
func (r *Router) Correlator() *Correlator { return r.corr }

// Handle registers fn for kind, replacing any previous listener.
func (r *Router) Handle(kind string, fn Listener) {
	r.mu.Lock()
	r.listeners[kind] = fn
	r.mu.Unlock()
}

// DispatchLine decodes one worker output line and dispatches it.
// Malformed lines are counted and logged, never returned.
func (r *Router) DispatchLine(line []byte) {
	msg, ok, err := protocol.Decode(line)
	if err != nil {
		metrics.DecodeErrorsTotal.Inc()
		if r.warn.Allow() {
			r.logger.Warn().Err(err).Int("len", len(line)).Msg("discarding malformed worker line")
		}
		return
	}
	if ok {
		r.Dispatch(msg)
	}
}

// Dispatch routes a decoded message.
func (r *Router) Dispatch(msg protocol.Message) {
	switch {
	case msg.Event != nil:
		r.mu.RLock()
		fn := r.listeners[msg.Event.Kind]
		r.mu.RUnlock()
		if fn == nil {
			metrics.IncPushEvent(msg.Event.Kind, "unhandled")
			r.logger.Debug().Str(log.FieldEventKind, msg.Event.Kind).Msg("no listener for push event")
			return
		}
		metrics.IncPushEvent(msg.Event.Kind, "delivered")
		fn(msg.Event)
	case msg.Response != nil:
		if !r.corr.Resolve(msg.Response) {
			r.logger.Debug().Uint64(log.FieldRPCID, msg.Response.ID).Msg("response for unknown or expired request")
		}
	}
}
