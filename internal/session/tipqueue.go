// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"sync"

	"github.com/ManuGH/ytpoint/internal/worker/protocol"
)

// tipQueue is an unbounded FIFO between the worker read loop, which must not
// block, and the session's tip drain loop. Tips are money and never dropped.
type tipQueue struct {
	mu     sync.Mutex
	items  []protocol.Tip
	notify chan struct{}
}

func newTipQueue() *tipQueue {
	return &tipQueue{notify: make(chan struct{}, 1)}
}

func (q *tipQueue) push(t protocol.Tip) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop waits for the next tip. Once ctx is done it keeps returning queued tips
// until the queue is empty, then reports false.
func (q *tipQueue) pop(ctx context.Context) (protocol.Tip, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			t := q.items[0]
			q.items[0] = protocol.Tip{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return t, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			q.mu.Lock()
			empty := len(q.items) == 0
			q.mu.Unlock()
			if empty {
				return protocol.Tip{}, false
			}
		}
	}
}
