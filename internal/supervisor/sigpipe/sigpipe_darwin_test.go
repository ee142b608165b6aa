package sigpipe

import (
	"syscall"
	"testing"
	"time"
)

func TestForwardableSet(t *testing.T) {
	for _, sig := range []syscall.Signal{syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP} {
		if !ShouldForward(sig) {
			t.Errorf("expected %v to be forwardable", sig)
		}
	}
	if ShouldForward(syscall.SIGWINCH) {
		t.Error("SIGWINCH should not be forwardable")
	}
}

func TestPipeSignalDelivery(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer p.Close()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("self-kill failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.LastSignal() == syscall.SIGUSR1 {
			p.Drain()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for signal to reach self-pipe")
}

func TestCloseIdempotent(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	p.Close()
	p.Close()
}
