// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package rpc correlates worker requests with their responses and routes
// unsolicited push events to listeners.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/ytpoint/internal/log"
	"github.com/ManuGH/ytpoint/internal/metrics"
	"github.com/ManuGH/ytpoint/internal/telemetry"
	"github.com/ManuGH/ytpoint/internal/worker/protocol"
)

// DefaultTimeout bounds a call when no per-call timeout is given.
const DefaultTimeout = 30 * time.Second

// LineWriter delivers one encoded request line to the worker. A write may
// block while the worker is not reading; it must return once the worker's
// input is closed.
type LineWriter interface {
	WriteLine(line []byte) error
}

type result struct {
	value json.RawMessage
	err   error
}

type pendingCall struct {
	method string
	ch     chan result
}

// Correlator assigns request ids, tracks in-flight calls and completes each
// one exactly once: by response, by timeout or by FailAll.
type Correlator struct {
	w       LineWriter
	timeout time.Duration
	tracer  trace.Tracer

	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]pendingCall
	gone    error
}

// NewCorrelator returns a correlator writing requests to w. A timeout of zero
// selects DefaultTimeout.
func NewCorrelator(w LineWriter, timeout time.Duration) *Correlator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Correlator{
		w:       w,
		timeout: timeout,
		tracer:  telemetry.Tracer("ytpoint.worker.rpc"),
		pending: make(map[uint64]pendingCall),
	}
}

// Timeout returns the default per-call deadline.
func (c *Correlator) Timeout() time.Duration { return c.timeout }

// Call issues method with params and waits for the response using the default timeout.
func (c *Correlator) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.CallTimeout(ctx, method, params, c.timeout)
}

// CallTimeout is Call with an explicit deadline.
func (c *Correlator) CallTimeout(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "ytpoint.worker.call", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	id := c.nextID.Add(1)
	span.SetAttributes(telemetry.RPCAttributes(method, id)...)

	value, err := c.call(ctx, id, method, params, timeout)
	outcome := outcomeOf(err)
	metrics.ObserveRPCCall(method, outcome, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(telemetry.RPCOutcomeKey, outcome))
		span.SetStatus(codes.Error, outcome)
		logger := log.WithComponentFromContext(ctx, "rpc")
		logger.Debug().
			Uint64(log.FieldRPCID, id).
			Str(log.FieldMethod, method).
			Err(err).
			Msg("worker call failed")
	}
	return value, err
}

func (c *Correlator) call(ctx context.Context, id uint64, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	line, err := protocol.Encode(protocol.Request{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	ch := make(chan result, 1)
	c.mu.Lock()
	if c.gone != nil {
		c.mu.Unlock()
		return nil, c.gone
	}
	c.pending[id] = pendingCall{method: method, ch: ch}
	c.mu.Unlock()
	metrics.RPCPending.Inc()

	// the deadline covers the write: a worker that stops reading stdin must
	// not hold the caller past its timeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	written := make(chan error, 1)
	go func() { written <- c.w.WriteLine(line) }()

	for {
		select {
		case err := <-written:
			if err != nil {
				c.remove(id)
				return nil, fmt.Errorf("rpc: write %s: %w", method, err)
			}
			written = nil
		case r := <-ch:
			return r.value, r.err
		case <-timer.C:
			if c.remove(id) {
				return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, method, timeout)
			}
			// resolved concurrently with the deadline
			r := <-ch
			return r.value, r.err
		case <-ctx.Done():
			if c.remove(id) {
				return nil, ctx.Err()
			}
			r := <-ch
			return r.value, r.err
		}
	}
}

// remove deletes a pending entry and reports whether it was still present.
func (c *Correlator) remove(id uint64) bool {
	c.mu.Lock()
	_, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		metrics.RPCPending.Dec()
	}
	return ok
}

// Resolve completes the pending call matching resp.ID. It reports false for
// responses nobody waits for anymore, which is expected after a timeout.
func (c *Correlator) Resolve(resp *protocol.Response) bool {
	c.mu.Lock()
	p, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.mu.Unlock()

	if !ok {
		metrics.RPCOrphanResponsesTotal.Inc()
		return false
	}
	metrics.RPCPending.Dec()

	if resp.Failed() {
		p.ch <- result{err: &RemoteError{Method: p.method, Message: *resp.Err}}
	} else {
		p.ch <- result{value: resp.Result}
	}
	return true
}

// FailAll completes every pending call with err and makes later calls fail
// immediately with the same error. A nil err means ErrWorkerGone.
func (c *Correlator) FailAll(err error) int {
	if err == nil {
		err = ErrWorkerGone
	}
	c.mu.Lock()
	if c.gone == nil {
		c.gone = err
	}
	pending := c.pending
	c.pending = make(map[uint64]pendingCall)
	c.mu.Unlock()

	for _, p := range pending {
		metrics.RPCPending.Dec()
		p.ch <- result{err: err}
	}
	return len(pending)
}

// Pending returns the number of in-flight calls.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func outcomeOf(err error) string {
	var remote *RemoteError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &remote):
		return "remote_error"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrWorkerGone):
		return "worker_gone"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "write_error"
	}
}
