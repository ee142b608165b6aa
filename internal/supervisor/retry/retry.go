// Package retry implements the supervisor's retry-with-backoff controller:
// run an attempt, and if it didn't complete successfully, wait a
// (growing) delay and try again, up to a configured count. The backoff
// schedule is computed by github.com/cenkalti/backoff/v4's exponential
// backoff, replacing the original implementation's hand-rolled
// delay * backoff.powi(attempt) arithmetic with the ecosystem library the
// rest of the retrieved pack reaches for. The attempt log shape
// (Attempts/AttemptResult with a status string) reconstructs the public
// contract exercised by the original crate's tests/library_api.rs.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/go-procwatch/procwatch/internal/supervisor/outcome"
)

// MaxRetries caps the attempt count regardless of what the caller
// requests, mirroring the original's MAX_RETRIES = 10 ceiling.
const MaxRetries = 10

// AttemptResult records the outcome of a single attempt.
type AttemptResult struct {
	Status  string // "completed", "timeout", "signal", "memory_limit", "error"
	Outcome outcome.Outcome
	Err     error
}

// Attempts is the ordered log of every attempt made.
type Attempts []AttemptResult

// Config configures the retry controller.
type Config struct {
	// RetryCount is how many retries are allowed after the first attempt
	// (so RetryCount=2 means up to 3 total attempts), clamped to
	// MaxRetries.
	RetryCount int
	// InitialDelay is the first retry delay.
	InitialDelay time.Duration
	// Multiplier grows the delay each retry (e.g. 2.0 doubles it).
	Multiplier float64
	// MaxDelay caps the grown delay; zero means no cap.
	MaxDelay time.Duration
}

func (c Config) clampedRetries() int {
	if c.RetryCount > MaxRetries {
		return MaxRetries
	}
	if c.RetryCount < 0 {
		return 0
	}
	return c.RetryCount
}

func (c Config) backOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.InitialDelay
	if c.Multiplier > 0 {
		eb.Multiplier = c.Multiplier
	}
	// No jitter and no default cap: retry k waits exactly
	// InitialDelay * Multiplier^(k-1), bounded only by MaxDelay if set.
	eb.RandomizationFactor = 0
	eb.MaxInterval = time.Duration(1<<63 - 1)
	if c.MaxDelay > 0 {
		eb.MaxInterval = c.MaxDelay
	}
	eb.MaxElapsedTime = 0 // the retry count, not elapsed time, bounds attempts
	eb.Reset()
	return eb
}

func statusOf(o outcome.Outcome) string {
	switch o.Status {
	case outcome.StatusCompleted:
		return "completed"
	case outcome.StatusTimedOut:
		return "timeout"
	case outcome.StatusSignalForwarded:
		return "signal"
	case outcome.StatusMemoryLimitExceeded:
		return "memory_limit"
	default:
		return "unknown"
	}
}

// succeeded reports whether an outcome means "don't retry": the command
// completed, regardless of its own exit code (a nonzero exit from the
// child is not itself cause for a supervisor-level retry — only
// timeouts/signals/memory limits are).
func succeeded(o outcome.Outcome) bool {
	return o.Status == outcome.StatusCompleted
}

// Run executes attempt repeatedly until it succeeds, the retry budget is
// exhausted, or interrupt fires (a signal arrived — the event-driven
// short-circuit kqueue_delay provides in the original, here a channel the
// caller closes or sends on when a signal arrives).
// Returns the final outcome (whichever attempt was last run) and the full
// attempt log.
func Run(cfg Config, interrupt <-chan struct{}, attempt func() (outcome.Outcome, error)) (outcome.Outcome, Attempts, error) {
	retries := cfg.clampedRetries()
	eb := cfg.backOff()

	var attempts Attempts
	var last outcome.Outcome
	var lastErr error

	for i := 0; i <= retries; i++ {
		o, err := attempt()
		last, lastErr = o, err

		if err != nil {
			attempts = append(attempts, AttemptResult{Status: "error", Outcome: o, Err: err})
			return o, attempts, err
		}

		attempts = append(attempts, AttemptResult{Status: statusOf(o), Outcome: o})

		if succeeded(o) || i == retries {
			return o, attempts, nil
		}

		delay := eb.NextBackOff()
		if delay == backoff.Stop {
			return o, attempts, nil
		}
		if interrupted := sleepInterruptible(delay, interrupt); interrupted {
			return o, attempts, nil
		}
	}

	return last, attempts, lastErr
}

// sleepInterruptible waits for delay to elapse or interrupt to fire,
// whichever comes first, returning true if interrupted. This is the Go
// channel-based equivalent of the original's kqueue_delay: zero-CPU wait
// that a signal can cut short.
func sleepInterruptible(delay time.Duration, interrupt <-chan struct{}) bool {
	if interrupt == nil {
		time.Sleep(delay)
		return false
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-interrupt:
		return true
	}
}
