// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import "errors"

var (
	// ErrWorkerUnavailable covers spawn failures, write failures and unexpected exits.
	ErrWorkerUnavailable = errors.New("worker unavailable")
	// ErrAlreadyStarted is returned when Start is called on a used Supervisor.
	ErrAlreadyStarted = errors.New("worker: supervisor already started")
	// ErrInvalidResult is returned when a call succeeds but its result has the wrong shape.
	ErrInvalidResult = errors.New("worker: invalid result")
)
