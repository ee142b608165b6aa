package main

import (
	"testing"

	"github.com/go-procwatch/procwatch/internal/supervisor/logging"
)

func TestExecuteCompletesWithChildExitCode(t *testing.T) {
	code, err := Execute([]string{"5", "sh", "-c", "exit 3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestExecuteTimesOut(t *testing.T) {
	code, err := Execute([]string{"0.1", "sh", "-c", "sleep 5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 124 {
		t.Errorf("exit code = %d, want 124", code)
	}
}

func TestExecutePreserveStatusKill(t *testing.T) {
	code, err := Execute([]string{"--preserve-status", "-s", "KILL", "0.1", "sh", "-c", "sleep 5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 137 {
		t.Errorf("exit code = %d, want 137", code)
	}
}

func TestExecuteCommandNotFound(t *testing.T) {
	code, err := Execute([]string{"5", "/no/such/binary-procwatch-test"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if code != 127 {
		t.Errorf("exit code = %d, want 127", code)
	}
}

func TestResolveArgsTimeoutEnvFallback(t *testing.T) {
	t.Setenv("TIMEOUT", "2")
	log := testLogger(t)
	r, err := resolveArgs([]string{"echo", "hi"}, log)
	if err != nil {
		t.Fatal(err)
	}
	if r.durationStr != "2" || r.command != "echo" {
		t.Errorf("unexpected resolution: %+v", r)
	}
}

func TestResolveArgsCLIWinsOverEnv(t *testing.T) {
	t.Setenv("TIMEOUT", "99")
	log := testLogger(t)
	r, err := resolveArgs([]string{"3", "echo", "hi"}, log)
	if err != nil {
		t.Fatal(err)
	}
	if r.durationStr != "3" {
		t.Errorf("durationStr = %q, want CLI value 3", r.durationStr)
	}
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.New()
}
