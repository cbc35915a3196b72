// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package procgroup

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// Set configures the command to start in a new process group.
// Mandatory for Kill to reach grandchildren of the worker.
func Set(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Kill sends a signal to the process group of the command, including members
// that outlived the leader. If the command or process is nil, or if the group
// is already gone, it returns nil.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if !isLeader(cmd) {
		if err := cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
		return nil
	}
	pgid := cmd.Process.Pid

	// Negative PGID signals the whole group
	if err := syscall.Kill(-pgid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
	return nil
}

// isLeader reports whether Set made the command its own group leader. The
// group id equals the leader's pid and stays valid after the leader is
// reaped as long as any member is alive.
func isLeader(cmd *exec.Cmd) bool {
	return cmd.SysProcAttr != nil && cmd.SysProcAttr.Setpgid
}

// groupAlive reports whether any member of the command's process group exists.
func groupAlive(cmd *exec.Cmd) bool {
	if cmd == nil || cmd.Process == nil || !isLeader(cmd) {
		return false
	}
	err := syscall.Kill(-cmd.Process.Pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
