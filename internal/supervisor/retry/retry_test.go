package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/go-procwatch/procwatch/internal/supervisor/outcome"
)

func TestRunSucceedsFirstTry(t *testing.T) {
	calls := 0
	cfg := Config{RetryCount: 2, InitialDelay: time.Millisecond}
	result, attempts, err := Run(cfg, nil, func() (outcome.Outcome, error) {
		calls++
		return outcome.Outcome{Status: outcome.StatusCompleted}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", calls)
	}
	if len(attempts) != 1 || attempts[0].Status != "completed" {
		t.Errorf("unexpected attempts: %+v", attempts)
	}
	if result.Status != outcome.StatusCompleted {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRunRetriesOnTimeout(t *testing.T) {
	calls := 0
	cfg := Config{RetryCount: 2, InitialDelay: time.Millisecond, Multiplier: 2}
	_, attempts, err := Run(cfg, nil, func() (outcome.Outcome, error) {
		calls++
		return outcome.Outcome{Status: outcome.StatusTimedOut}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", calls)
	}
	for _, a := range attempts {
		if a.Status != "timeout" {
			t.Errorf("expected status timeout, got %q", a.Status)
		}
	}
}

func TestRunStopsOnError(t *testing.T) {
	wantErr := errors.New("spawn failed")
	calls := 0
	cfg := Config{RetryCount: 3}
	_, attempts, err := Run(cfg, nil, func() (outcome.Outcome, error) {
		calls++
		return outcome.Outcome{}, wantErr
	})
	if err != wantErr {
		t.Errorf("expected wantErr, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 attempt on spawn error, got %d", calls)
	}
	if len(attempts) != 1 || attempts[0].Status != "error" {
		t.Errorf("unexpected attempts: %+v", attempts)
	}
}

func TestRunInterruptedBySignal(t *testing.T) {
	interrupt := make(chan struct{})
	close(interrupt) // already "signaled"
	calls := 0
	cfg := Config{RetryCount: 5, InitialDelay: time.Second}
	_, attempts, err := Run(cfg, interrupt, func() (outcome.Outcome, error) {
		calls++
		return outcome.Outcome{Status: outcome.StatusTimedOut}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected retry loop to stop after first interrupted delay, got %d calls", calls)
	}
	if len(attempts) != 1 {
		t.Errorf("expected 1 attempt, got %d", len(attempts))
	}
}

func TestClampedRetries(t *testing.T) {
	cfg := Config{RetryCount: 1000}
	if got := cfg.clampedRetries(); got != MaxRetries {
		t.Errorf("clampedRetries() = %d, want %d", got, MaxRetries)
	}
}
