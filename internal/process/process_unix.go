//go:build !windows

package process

import (
	"errors"
	"os/exec"
	"syscall"
)

// Isolate starts cmd in its own process group so the whole tree can be
// killed at once and terminal signals aimed at the caller do not reach it.
func Isolate(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// KillProcessGroup kills a process and all its children by sending SIGKILL
// to the process group (negative PID).
func KillProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	// Best-effort; callers follow up with Process.Kill.
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// Alive reports whether pid names a running (or not yet reaped) process.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
