// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for malformed video references and other bad arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotLive is returned when the referenced video is not a live stream.
	ErrNotLive = fmt.Errorf("%w: video is not a live stream", ErrInvalidInput)
	// ErrAlreadyActive is returned by Start unless the controller is idle.
	ErrAlreadyActive = errors.New("session already active")
	// ErrNotActive is returned by Stop unless a session is active.
	ErrNotActive = errors.New("no active session")
)
