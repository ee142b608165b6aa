package hook

import (
	"testing"
	"time"
)

func TestSubstitute(t *testing.T) {
	cases := []struct {
		template string
		pid      int
		want     string
	}{
		{"kill -9 %p", 1234, "kill -9 1234"},
		{"echo 100%% done, pid=%p", 42, "echo 100% done, pid=42"},
		{"no substitution here", 1, "no substitution here"},
		{"%%p literal percent then p", 1, "%p literal percent then p"},
	}
	for _, tc := range cases {
		if got := Substitute(tc.template, tc.pid); got != tc.want {
			t.Errorf("Substitute(%q, %d) = %q, want %q", tc.template, tc.pid, got, tc.want)
		}
	}
}

func TestRunCompletes(t *testing.T) {
	result := Run("exit 0", 1, 2*time.Second)
	if !result.Ran {
		t.Fatal("expected hook to run")
	}
	if result.TimedOut {
		t.Fatal("expected hook not to time out")
	}
	if result.ExitCode == nil || *result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %v", result.ExitCode)
	}
}

func TestRunTimesOut(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow hook-timeout test in short mode")
	}
	result := Run("sleep 5", 1, 100*time.Millisecond)
	if !result.Ran || !result.TimedOut {
		t.Errorf("expected hook to time out, got %+v", result)
	}
}
