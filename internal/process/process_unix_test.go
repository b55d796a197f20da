//go:build !windows

package process

import (
	"os/exec"
	"testing"
	"time"
)

func TestKillProcessGroup_KillsIsolatedChild(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("sleep", "30")
	Isolate(cmd)
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep not available: %v", err)
	}
	pid := cmd.Process.Pid

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	KillProcessGroup(pid)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		t.Fatal("child still running 5s after KillProcessGroup")
	}

	if Alive(pid) {
		t.Errorf("Alive(%d) = true after kill and reap", pid)
	}
}
