// Package outcome defines the supervisor's run outcome variants and the
// exit-code classifier, mirroring runner.rs's RunResult enum and its
// exit_code() method.
package outcome

import (
	"syscall"

	"github.com/go-procwatch/procwatch/internal/supervisor/childstatus"
	"github.com/go-procwatch/procwatch/internal/supervisor/clock"
)

// Status tags which RunResult variant an Outcome represents.
type Status string

const (
	StatusCompleted             Status = "completed"
	StatusTimedOut              Status = "timeout"
	StatusSignalForwarded       Status = "signal_forwarded"
	StatusMemoryLimitExceeded   Status = "memory_limit_exceeded"
)

// HookResult mirrors runner.rs's HookResult: whether the on-timeout hook
// ran, its exit code (absent if it never produced one), whether it was
// itself killed for overstaying --on-timeout-limit, and how long it ran.
type HookResult struct {
	Ran       bool
	ExitCode  *int
	TimedOut  bool
	ElapsedMS uint64
}

// Outcome is the result of one run attempt.
type Outcome struct {
	Status Status

	// ChildStatus is present whenever the child was reaped.
	ChildStatus *childstatus.Status

	// Signal is the signal sent to (TimedOut) or forwarded to
	// (SignalForwarded) the child. Zero if not applicable.
	Signal syscall.Signal

	// Killed reports whether the child was escalated to SIGKILL (TimedOut
	// via --kill-after, or MemoryLimitExceeded).
	Killed bool

	// Reason distinguishes which clock triggered a TimedOut outcome.
	Reason clock.Mode

	// Hook carries the on-timeout hook's result, if one ran.
	Hook *HookResult

	// PeakMemoryBytes is populated for MemoryLimitExceeded.
	PeakMemoryBytes uint64
}

// ExitCode computes the process exit code for o, mirroring
// RunResult::exit_code(preserve_status, timeout_exit_code):
//
//   - Completed: the child's own exit code, or (128+signum)&0xFF if the
//     child was itself terminated by a signal rather than exiting.
//   - TimedOut, preserve_status == false: timeoutExitCode (default 124).
//   - TimedOut, preserve_status == true, killed: 137 (128+SIGKILL).
//   - TimedOut, preserve_status == true, not killed: the child's own
//     status-derived code, falling back to (128+signum)&0xFF.
//   - SignalForwarded: the child's status-derived code, falling back to
//     (128+signum)&0xFF.
//   - MemoryLimitExceeded: 137, the same bucket as a killed timeout.
func (o Outcome) ExitCode(preserveStatus bool, timeoutExitCode int) int {
	switch o.Status {
	case StatusCompleted:
		return o.statusDerivedCode()

	case StatusTimedOut:
		if !preserveStatus {
			return timeoutExitCode
		}
		if o.Killed {
			return 137
		}
		return o.statusDerivedCode()

	case StatusSignalForwarded:
		return o.statusDerivedCode()

	case StatusMemoryLimitExceeded:
		return 137

	default:
		return 125
	}
}

// statusDerivedCode returns the child's own exit code if it exited
// normally, or (128+signum)&0xFF if it was signaled, falling back to
// 128+o.Signal when no child status was captured at all (the child was
// never reaped, e.g. a forwarded signal killed it before wait() returned
// a status the supervisor could read).
func (o Outcome) statusDerivedCode() int {
	if o.ChildStatus != nil {
		if code, ok := o.ChildStatus.Code(); ok {
			return code
		}
		if sig, ok := o.ChildStatus.Signal(); ok {
			return (128 + sig) & 0xFF
		}
	}
	if o.Signal != 0 {
		return (128 + int(o.Signal)) & 0xFF
	}
	return 125
}
