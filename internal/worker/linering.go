// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"sync"
)

// LineRing keeps the last N stderr lines of a worker for post-mortem logging.
type LineRing struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// NewLineRing creates a LineRing holding up to capacity lines.
func NewLineRing(capacity int) *LineRing {
	if capacity < 1 {
		capacity = 64
	}
	return &LineRing{lines: make([]string, capacity)}
}

// Add appends one line, evicting the oldest when full.
func (r *LineRing) Add(line string) {
	if line == "" {
		return
	}
	r.mu.Lock()
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

// LastN returns up to n of the most recent lines, oldest first.
func (r *LineRing) LastN(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := r.next
	if r.full {
		count = len(r.lines)
	}
	if n > count {
		n = count
	}
	out := make([]string, 0, n)
	for i := count - n; i < count; i++ {
		idx := i
		if r.full {
			idx = (r.next + i) % len(r.lines)
		}
		out = append(out, r.lines[idx])
	}
	return out
}
