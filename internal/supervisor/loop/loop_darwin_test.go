package loop

import (
	"testing"
	"time"

	"github.com/go-procwatch/procwatch/internal/supervisor/childproc"
	"github.com/go-procwatch/procwatch/internal/supervisor/clock"
	"github.com/go-procwatch/procwatch/internal/supervisor/outcome"
	"github.com/go-procwatch/procwatch/internal/supervisor/sigpipe"
)

func TestRunCompletesBeforeDeadline(t *testing.T) {
	h, err := childproc.Spawn("/bin/sh", []string{"-c", "exit 7"}, true)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	pipe, err := sigpipe.New()
	if err != nil {
		t.Fatalf("sigpipe.New: %v", err)
	}
	defer pipe.Close()

	o, err := Run(Config{Timeout: 5 * time.Second, TimeoutMode: clock.Wall}, h, pipe)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if o.Status != outcome.StatusCompleted {
		t.Fatalf("status = %v, want completed", o.Status)
	}
	if code, ok := o.ChildStatus.Code(); !ok || code != 7 {
		t.Errorf("code = %d, ok = %v, want 7", code, ok)
	}
}

func TestRunTimesOutAndKills(t *testing.T) {
	h, err := childproc.Spawn("/bin/sh", []string{"-c", "sleep 5"}, true)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	pipe, err := sigpipe.New()
	if err != nil {
		t.Fatalf("sigpipe.New: %v", err)
	}
	defer pipe.Close()

	start := time.Now()
	o, err := Run(Config{
		Timeout:     50 * time.Millisecond,
		TimeoutMode: clock.Wall,
		Signal:      15, // SIGTERM
	}, h, pipe)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if o.Status != outcome.StatusTimedOut {
		t.Fatalf("status = %v, want timeout", o.Status)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("took too long to time out: %v", time.Since(start))
	}
}

func TestRunNoDeadlineWaitsToCompletion(t *testing.T) {
	h, err := childproc.Spawn("/bin/sh", []string{"-c", "exit 0"}, true)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	pipe, err := sigpipe.New()
	if err != nil {
		t.Fatalf("sigpipe.New: %v", err)
	}
	defer pipe.Close()

	o, err := Run(Config{}, h, pipe)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if o.Status != outcome.StatusCompleted {
		t.Fatalf("status = %v, want completed", o.Status)
	}
}
