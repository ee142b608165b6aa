// Package hook runs the --on-timeout command, substituting "%p" with the
// timed-out child's PID and "%%" with a literal percent sign, mirroring
// runner.rs's run_on_timeout_hook. The hook itself is sub-supervised
// against --on-timeout-limit so a misbehaving hook cannot block the
// supervisor forever.
package hook

import (
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-procwatch/procwatch/internal/supervisor/childproc"
	"github.com/go-procwatch/procwatch/internal/supervisor/childstatus"
	"github.com/go-procwatch/procwatch/internal/supervisor/outcome"
)

const substitutionSentinel = "\x00PERCENT\x00"

// Substitute expands "%p" to pid and "%%" to a literal "%" in template,
// using a sentinel two-pass replacement (escape %% first, substitute %p,
// then unescape the sentinel) so a literal "%%" never gets mistaken for
// the start of a "%p" sequence, matching the original's substitution
// order exactly.
func Substitute(template string, pid int) string {
	escaped := strings.ReplaceAll(template, "%%", substitutionSentinel)
	substituted := strings.ReplaceAll(escaped, "%p", strconv.Itoa(pid))
	return strings.ReplaceAll(substituted, substitutionSentinel, "%")
}

// Run executes the on-timeout command (expanded via Substitute) through
// "sh -c", enforcing limit as its own wall-clock deadline. Context is not
// used for cancellation here: the hook's own process group is killed
// directly on overrun, mirroring wait_for_hook_with_kqueue's behavior of
// reaping via SIGKILL rather than relying on a parent context cancel.
func Run(command string, pid int, limit time.Duration) outcome.HookResult {
	expanded := Substitute(command, pid)
	start := time.Now()

	// The hook always gets its own process group, independent of the main
	// run's --foreground setting: it has no controlling-terminal role of
	// its own and Kill needs to reach any children it spawns.
	handle, err := childproc.Spawn("sh", []string{"-c", expanded}, true)
	if err != nil {
		return outcome.HookResult{Ran: false}
	}

	done := make(chan struct{})
	var state *childstatus.Status
	go func() {
		defer close(done)
		ps, waitErr := handle.Wait()
		if waitErr == nil && ps != nil {
			if ws, ok := rawWaitStatus(ps); ok {
				s := childstatus.FromRaw(ws)
				state = &s
			}
		}
	}()

	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case <-done:
		exitCode := 0
		hasCode := false
		if state != nil {
			if code, ok := state.Code(); ok {
				exitCode = code
				hasCode = true
			}
		}
		result := outcome.HookResult{
			Ran:       true,
			TimedOut:  false,
			ElapsedMS: uint64(time.Since(start).Milliseconds()),
		}
		if hasCode {
			result.ExitCode = &exitCode
		}
		return result

	case <-timer.C:
		_ = handle.Kill()
		<-done
		return outcome.HookResult{
			Ran:       true,
			TimedOut:  true,
			ElapsedMS: uint64(time.Since(start).Milliseconds()),
		}
	}
}

// rawWaitStatus extracts the raw wait(2) status word from an
// os.ProcessState, the Darwin-specific Sys() assertion that backs
// childstatus's bit-level decoder.
func rawWaitStatus(ps *os.ProcessState) (int, bool) {
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		return 0, false
	}
	return int(ws), true
}
