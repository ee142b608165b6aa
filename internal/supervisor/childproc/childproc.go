// Package childproc spawns and manages the supervised command. Process
// construction follows tmc/macgo's process/launcher.go: os/exec with
// a SysProcAttr controlling process-group placement and inherited stdio.
package childproc

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/go-procwatch/procwatch/internal/supervisor/supervisorerr"
)

// Handle wraps a running child process, tracking whether it has been
// reaped so repeated Wait/Kill calls are safe.
type Handle struct {
	cmd      *exec.Cmd
	ownGroup bool
	exited   bool
	waitErr  error
}

// Spawn starts name with args, inheriting the supervisor's stdio. When
// newProcessGroup is true, the child is made the leader of its own process
// group (SignalGroup/Kill then target that group); when false — foreground
// mode — the child stays in the supervisor's process group so it keeps the
// controlling terminal's pgrp, matching process.rs's
// spawn_command(.., use_process_group) where use_process_group =
// !config.foreground.
func Spawn(name string, args []string, newProcessGroup bool) (*Handle, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if newProcessGroup {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: 0}
	}

	if err := cmd.Start(); err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
			return nil, supervisorerr.New("spawn", supervisorerr.KindCommandNotFound, err)
		case errors.Is(err, os.ErrPermission):
			return nil, supervisorerr.New("spawn", supervisorerr.KindPermissionDenied, err)
		default:
			return nil, supervisorerr.New("spawn", supervisorerr.KindSpawn, err)
		}
	}
	return &Handle{cmd: cmd, ownGroup: newProcessGroup}, nil
}

// PID returns the child's process ID.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// Wait blocks for the process to exit, reaping it exactly once.
func (h *Handle) Wait() (*os.ProcessState, error) {
	if h.exited {
		return h.cmd.ProcessState, h.waitErr
	}
	err := h.cmd.Wait()
	h.exited = true
	h.waitErr = err
	return h.cmd.ProcessState, err
}

// Signal sends sig directly to the child (not its process group).
func (h *Handle) Signal(sig syscall.Signal) error {
	if h.exited {
		return nil
	}
	err := h.cmd.Process.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// SignalGroup sends sig to the child's entire process group, matching the
// original's send_signal killpg-then-kill-fallback behavior: ESRCH (the
// group or process no longer exists) is treated as success, since the
// goal state — "target is not receiving more signals" — already holds. A
// child spawned without its own group (foreground mode) shares the
// supervisor's pgid, so killpg there would hit the supervisor too; this
// falls back to signaling just the child in that case.
func (h *Handle) SignalGroup(sig syscall.Signal) error {
	if !h.ownGroup {
		return h.Signal(sig)
	}
	pgid := h.PID()
	err := syscall.Kill(-pgid, sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	// Fall back to signaling just the process if the group send failed
	// for a reason other than "already gone".
	if sigErr := h.Signal(sig); sigErr == nil || errors.Is(sigErr, syscall.ESRCH) {
		return nil
	}
	return err
}

// Kill sends SIGKILL to the process group (or just the process, in
// foreground mode), matching process.rs's kill() which treats ESRCH
// (already dead) as success.
func (h *Handle) Kill() error {
	return h.SignalGroup(syscall.SIGKILL)
}
