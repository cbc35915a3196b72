// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package broadcast fans state out to the embedded UI and to remote overlay
// subscribers.
//
// The embedded UI reads a single latest-value slot that is overwritten on
// every snapshot and never lost. Remote subscribers each own a bounded
// buffer; when one falls behind, its oldest unread events are dropped so
// Publish never waits on a reader.
package broadcast

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ManuGH/ytpoint/internal/log"
	"github.com/ManuGH/ytpoint/internal/metrics"
	"github.com/ManuGH/ytpoint/internal/points"
)

// Event types.
const (
	TypePoints = "points"
	TypeTip    = "tip"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 16

const dropLogEvery = 100

// Event is one published item, encoded once and shared by all subscribers.
type Event struct {
	Type string
	Data json.RawMessage
	Seq  uint64
}

// frame is the self-describing wire shape of an Event.
type frame struct {
	Type string          `json:"type"`
	Seq  uint64          `json:"seq,omitempty"`
	Data json.RawMessage `json:"data"`
}

// Frame encodes ev as {"type":...,"seq":...,"data":...} for transports
// without a native event name.
func (e Event) Frame() ([]byte, error) {
	return json.Marshal(frame{Type: e.Type, Seq: e.Seq, Data: e.Data})
}

// Hub is process-lifetime: sessions come and go, subscribers stay attached.
type Hub struct {
	buffer int
	seq    atomic.Uint64
	drops  atomic.Uint64

	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool

	lmu     sync.Mutex
	latest  points.Snapshot
	version uint64
	changed chan struct{}
}

// NewHub returns a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Hub{
		buffer:  buffer,
		subs:    make(map[string]*Subscription),
		changed: make(chan struct{}),
	}
}

// Subscription is one remote consumer's view of the hub.
type Subscription struct {
	ID        string
	Transport string

	ch     chan Event
	closed atomic.Bool
}

// C yields events until the subscription is removed from the hub.
func (s *Subscription) C() <-chan Event { return s.ch }

// Close marks the subscription done. The hub drops it on its next publish.
func (s *Subscription) Close() { s.closed.Store(true) }

// Subscribe attaches a new remote consumer. transport labels metrics ("sse",
// "ws", "redis").
func (h *Hub) Subscribe(transport string) *Subscription {
	sub := &Subscription{
		ID:        uuid.NewString(),
		Transport: transport,
		ch:        make(chan Event, h.buffer),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.closed.Store(true)
		close(sub.ch)
		return sub
	}
	h.subs[sub.ID] = sub
	metrics.BroadcastSubscribers.WithLabelValues(transport).Inc()
	return sub
}

// SubscriberCount returns the number of attached subscriptions, closed ones
// not yet collected included.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// PublishSnapshot stores snap in the latest-value slot and fans it out.
// Snapshots not newer than the slot (by Seq) are dropped, so concurrent
// publishers can never move the slot or the stream back to an older state.
func (h *Hub) PublishSnapshot(snap points.Snapshot) {
	h.lmu.Lock()
	defer h.lmu.Unlock()
	if h.version > 0 && snap.Seq <= h.latest.Seq {
		metrics.BroadcastStaleTotal.Inc()
		return
	}
	h.latest = snap
	h.version++
	close(h.changed)
	h.changed = make(chan struct{})

	// fan-out stays under lmu so subscribers see snapshots in Seq order
	if err := h.Publish(TypePoints, snap); err != nil {
		log.L().Error().Err(err).Msg("broadcast snapshot")
	}
}

// Publish encodes payload and offers it to every remote subscriber without
// blocking. With no subscribers it is a no-op.
func (h *Hub) Publish(typ string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("broadcast: encode %s: %w", typ, err)
	}
	ev := Event{Type: typ, Data: data, Seq: h.seq.Add(1)}
	metrics.BroadcastPublishedTotal.WithLabelValues(typ).Inc()

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		if sub.closed.Load() {
			h.removeLocked(id, sub)
			continue
		}
		h.offer(sub, ev)
	}
	return nil
}

// offer enqueues ev, evicting the oldest queued event when the buffer is full.
func (h *Hub) offer(sub *Subscription, ev Event) {
	for {
		select {
		case sub.ch <- ev:
			return
		default:
		}
		select {
		case <-sub.ch:
			metrics.IncBroadcastDrop(sub.Transport)
			if n := h.drops.Add(1); n%dropLogEvery == 0 {
				log.L().Warn().
					Str(log.FieldSubscriberID, sub.ID).
					Str("transport", sub.Transport).
					Uint64("dropped", n).
					Msg("slow broadcast subscriber, dropping oldest events")
			}
		default:
			// reader drained it concurrently; retry the send
		}
	}
}

func (h *Hub) removeLocked(id string, sub *Subscription) {
	delete(h.subs, id)
	close(sub.ch)
	metrics.BroadcastSubscribers.WithLabelValues(sub.Transport).Dec()
}

// Close detaches every subscriber. Later Subscribe calls return closed subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		h.removeLocked(id, sub)
	}
}

// Latest returns the most recent snapshot, if any was published.
func (h *Hub) Latest() (points.Snapshot, bool) {
	h.lmu.Lock()
	defer h.lmu.Unlock()
	return h.latest, h.version > 0
}

// Watch yields the latest snapshot whenever it changes until ctx is done.
// A slow reader skips intermediate snapshots but always ends on the newest.
func (h *Hub) Watch(ctx context.Context) <-chan points.Snapshot {
	out := make(chan points.Snapshot)
	go func() {
		defer close(out)
		var seen uint64
		for {
			h.lmu.Lock()
			snap, version, changed := h.latest, h.version, h.changed
			h.lmu.Unlock()

			if version != seen {
				select {
				case out <- snap:
					seen = version
				case <-ctx.Done():
					return
				}
				continue
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
