// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsm is a small strict state machine: unknown transitions are errors.
package fsm

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is wrapped by every rejected Fire.
var ErrInvalidTransition = errors.New("fsm: invalid transition")

// Transition describes a single edge.
type Transition[S ~string, E ~string] struct {
	From  S
	Event E
	To    S
}

// TransitionError reports the state and event of a rejected Fire.
type TransitionError[S ~string, E ~string] struct {
	State S
	Event E
}

func (e *TransitionError[S, E]) Error() string {
	return fmt.Sprintf("fsm: invalid transition: state=%s event=%s", e.State, e.Event)
}

func (e *TransitionError[S, E]) Unwrap() error { return ErrInvalidTransition }

// Hook observes committed transitions. It runs outside the machine lock.
type Hook[S ~string, E ~string] func(from, to S, event E)

// Machine applies events atomically.
type Machine[S ~string, E ~string] struct {
	mu    sync.Mutex
	state S
	index map[key[S, E]]S
	hooks []Hook[S, E]
}

type key[S ~string, E ~string] struct {
	from  S
	event E
}

// New builds a machine in state initial. Duplicate edges are rejected.
func New[S ~string, E ~string](initial S, transitions []Transition[S, E]) (*Machine[S, E], error) {
	idx := make(map[key[S, E]]S, len(transitions))
	for _, t := range transitions {
		k := key[S, E]{t.From, t.Event}
		if _, exists := idx[k]; exists {
			return nil, fmt.Errorf("duplicate transition: %s -> %s", t.From, t.Event)
		}
		idx[k] = t.To
	}
	return &Machine[S, E]{state: initial, index: idx}, nil
}

// OnTransition registers h. Not safe to call concurrently with Fire.
func (m *Machine[S, E]) OnTransition(h Hook[S, E]) {
	m.hooks = append(m.hooks, h)
}

// State returns the current state.
func (m *Machine[S, E]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fire applies event. On failure the state is unchanged and the current
// state is returned with a *TransitionError.
func (m *Machine[S, E]) Fire(event E) (S, error) {
	m.mu.Lock()
	from := m.state
	to, ok := m.index[key[S, E]{from, event}]
	if !ok {
		m.mu.Unlock()
		return from, &TransitionError[S, E]{State: from, Event: event}
	}
	m.state = to
	m.mu.Unlock()

	for _, h := range m.hooks {
		h(from, to, event)
	}
	return to, nil
}

// Can reports whether event is legal in the current state.
func (m *Machine[S, E]) Can(event E) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.index[key[S, E]{m.state, event}]
	return ok
}
