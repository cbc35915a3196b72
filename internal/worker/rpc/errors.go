// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package rpc

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkerGone is returned to every caller still waiting when the worker exits or is stopped.
	ErrWorkerGone = errors.New("rpc: worker gone")
	// ErrTimeout is returned when no response arrived before the call deadline.
	ErrTimeout = errors.New("rpc: request timeout")
)

// RemoteError is an error reply sent by the worker.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc: %s: %s", e.Method, e.Message)
}
