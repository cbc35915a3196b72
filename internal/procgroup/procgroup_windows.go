// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package procgroup

import (
	"os/exec"
	"syscall"
)

// Set is a no-op on Windows.
func Set(cmd *exec.Cmd) {}

// Kill maps SIGKILL to Process.Kill. SIGTERM is a no-op because Windows has
// no graceful signal; Terminate falls through to SIGKILL after the grace period.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if sig == syscall.SIGKILL {
		return cmd.Process.Kill()
	}
	return nil
}

// groupAlive is false on Windows: there is no group to outlive the leader.
func groupAlive(*exec.Cmd) bool { return false }
