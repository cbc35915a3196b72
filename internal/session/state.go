// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"github.com/ManuGH/ytpoint/internal/fsm"
	"github.com/ManuGH/ytpoint/internal/log"
	"github.com/ManuGH/ytpoint/internal/metrics"
)

// State is the lifecycle state of the controller.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateStopping State = "stopping"
)

type event string

const (
	evStart   event = "start"
	evStarted event = "started"
	evFail    event = "fail"
	evStop    event = "stop"
	evStopped event = "stopped"
)

var transitions = []fsm.Transition[State, event]{
	{From: StateIdle, Event: evStart, To: StateStarting},
	{From: StateStarting, Event: evStarted, To: StateActive},
	{From: StateStarting, Event: evFail, To: StateIdle},
	{From: StateActive, Event: evStop, To: StateStopping},
	{From: StateStopping, Event: evStopped, To: StateIdle},
}

func newMachine() *fsm.Machine[State, event] {
	m, err := fsm.New(StateIdle, transitions)
	if err != nil {
		// static table
		panic(err)
	}
	logger := log.WithComponent("session")
	m.OnTransition(func(from, to State, ev event) {
		metrics.SetSessionState(string(to))
		logger.Debug().
			Str(log.FieldOldState, string(from)).
			Str(log.FieldNewState, string(to)).
			Str(log.FieldEvent, string(ev)).
			Msg("session state transition")
	})
	metrics.SetSessionState(string(StateIdle))
	return m
}
