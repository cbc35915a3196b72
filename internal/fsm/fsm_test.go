// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsm

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state string
type event string

func door(t *testing.T) *Machine[state, event] {
	t.Helper()
	m, err := New[state, event]("closed", []Transition[state, event]{
		{From: "closed", Event: "open", To: "opened"},
		{From: "opened", Event: "close", To: "closed"},
	})
	require.NoError(t, err)
	return m
}

func TestFire(t *testing.T) {
	m := door(t)
	var seen [][3]string
	m.OnTransition(func(from, to state, ev event) {
		seen = append(seen, [3]string{string(from), string(to), string(ev)})
	})

	to, err := m.Fire("open")
	require.NoError(t, err)
	assert.Equal(t, state("opened"), to)
	assert.True(t, m.Can("close"))
	assert.False(t, m.Can("open"))

	cur, err := m.Fire("open")
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, state("opened"), cur)

	var te *TransitionError[state, event]
	require.ErrorAs(t, err, &te)
	assert.Equal(t, event("open"), te.Event)

	assert.Equal(t, [][3]string{{"closed", "opened", "open"}}, seen)
}

func TestDuplicateTransition(t *testing.T) {
	_, err := New[state, event]("a", []Transition[state, event]{
		{From: "a", Event: "x", To: "b"},
		{From: "a", Event: "x", To: "c"},
	})
	require.Error(t, err)
}

func TestFireIsAtomic(t *testing.T) {
	m := door(t)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Fire("open"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
