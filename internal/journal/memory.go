// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package journal

import (
	"context"
	"sync"
)

// Memory is a bounded in-process journal; the oldest entries are evicted
// once capacity is reached.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
	cap     int
	closed  bool
}

// NewMemory returns a journal holding up to capacity entries.
func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = MaxRecent
	}
	return &Memory{cap: capacity}
}

func (m *Memory) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if len(m.entries) == m.cap {
		copy(m.entries, m.entries[1:])
		m.entries = m.entries[:len(m.entries)-1]
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	limit = clampLimit(limit)
	out := make([]Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
