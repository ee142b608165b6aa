package outcome

import (
	"syscall"
	"testing"

	"github.com/go-procwatch/procwatch/internal/supervisor/childstatus"
)

func TestExitCodeCompleted(t *testing.T) {
	st := childstatus.FromRaw(42 << 8)
	o := Outcome{Status: StatusCompleted, ChildStatus: &st}
	if got := o.ExitCode(false, 124); got != 42 {
		t.Errorf("ExitCode() = %d, want 42", got)
	}
}

func TestExitCodeTimedOutDefault(t *testing.T) {
	o := Outcome{Status: StatusTimedOut, Signal: syscall.SIGTERM}
	if got := o.ExitCode(false, 124); got != 124 {
		t.Errorf("ExitCode() = %d, want 124", got)
	}
}

func TestExitCodeTimedOutPreserveKilled(t *testing.T) {
	o := Outcome{Status: StatusTimedOut, Killed: true}
	if got := o.ExitCode(true, 124); got != 137 {
		t.Errorf("ExitCode() = %d, want 137", got)
	}
}

func TestExitCodeTimedOutPreserveNotKilled(t *testing.T) {
	st := childstatus.FromRaw(syscall.SIGTERM)
	o := Outcome{Status: StatusTimedOut, ChildStatus: &st, Signal: syscall.SIGTERM}
	if got := o.ExitCode(true, 124); got != 128+15 {
		t.Errorf("ExitCode() = %d, want %d", got, 128+15)
	}
}

func TestExitCodeMemoryLimitExceeded(t *testing.T) {
	o := Outcome{Status: StatusMemoryLimitExceeded, Killed: true}
	if got := o.ExitCode(true, 124); got != 137 {
		t.Errorf("ExitCode() = %d, want 137", got)
	}
}

func TestExitCodeSignalForwarded(t *testing.T) {
	st := childstatus.FromRaw(0)
	o := Outcome{Status: StatusSignalForwarded, ChildStatus: &st}
	if got := o.ExitCode(false, 124); got != 0 {
		t.Errorf("ExitCode() = %d, want 0", got)
	}
}
