// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/ytpoint/internal/log"
	"github.com/ManuGH/ytpoint/internal/metrics"
)

// groupPollInterval paces the check for surviving group members.
const groupPollInterval = 10 * time.Millisecond

// Terminate stops a process group: SIGTERM, wait up to grace for the leader
// to be reaped and every other member to be gone, then SIGKILL and wait up
// to timeout. exited must be closed by the goroutine that owns cmd.Wait.
// Safe to call on nil or already reaped commands.
func Terminate(cmd *exec.Cmd, exited <-chan struct{}, grace, timeout time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	select {
	case <-exited:
		if !groupAlive(cmd) {
			metrics.IncProcWait("already_exited")
			return nil
		}
	default:
	}

	logger := log.WithComponent("procgroup")
	pid := cmd.Process.Pid

	recordSignal("SIGTERM", Kill(cmd, syscall.SIGTERM))
	if waitGone(cmd, exited, grace) {
		metrics.IncProcWait("graceful")
		return nil
	}

	logger.Warn().Int(log.FieldPID, pid).Dur("grace", grace).Msg("SIGTERM grace period exceeded, sending SIGKILL to process group")
	recordSignal("SIGKILL", Kill(cmd, syscall.SIGKILL))
	if waitGone(cmd, exited, timeout) {
		metrics.IncProcWait("forced")
		return nil
	}
	metrics.IncProcWait("stuck")
	return ErrKillFailed
}

// waitGone reports whether the leader was reaped and the group emptied within d.
func waitGone(cmd *exec.Cmd, exited <-chan struct{}, d time.Duration) bool {
	deadline := time.NewTimer(d)
	defer deadline.Stop()

	select {
	case <-exited:
	case <-deadline.C:
		return false
	}

	tick := time.NewTicker(groupPollInterval)
	defer tick.Stop()
	for groupAlive(cmd) {
		select {
		case <-tick.C:
		case <-deadline.C:
			return false
		}
	}
	return true
}

func recordSignal(sig string, err error) {
	switch {
	case err == nil:
		metrics.IncProcTerminate(sig, "sent")
	case errors.Is(err, os.ErrProcessDone), errors.Is(err, syscall.ESRCH):
		metrics.IncProcTerminate(sig, "esrch")
	default:
		metrics.IncProcTerminate(sig, "error")
	}
}
