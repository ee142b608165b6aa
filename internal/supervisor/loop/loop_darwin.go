// Package loop is the supervisor's single-threaded kqueue event loop: the
// state machine that waits for whichever happens first among "child
// exited", "deadline reached", "signal arrived", or "throttle tick due",
// and reacts accordingly. Ported from runner.rs's monitor_with_timeout and
// wait_with_kqueue.
package loop

import (
	"math"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/go-procwatch/procwatch/internal/supervisor/childproc"
	"github.com/go-procwatch/procwatch/internal/supervisor/childstatus"
	"github.com/go-procwatch/procwatch/internal/supervisor/clock"
	"github.com/go-procwatch/procwatch/internal/supervisor/hook"
	"github.com/go-procwatch/procwatch/internal/supervisor/outcome"
	"github.com/go-procwatch/procwatch/internal/supervisor/rusage"
	"github.com/go-procwatch/procwatch/internal/supervisor/sigpipe"
	"github.com/go-procwatch/procwatch/internal/supervisor/throttle"
)

// identTimer is the kevent ident of the timer this loop registers,
// mirroring wait_with_kqueue's ident assignments (ident 1 for the timer;
// EVFILT_PROC uses the child pid and EVFILT_READ the pipe fd as idents).
const identTimer = 1

// maxTimerNS is the largest ns value that fits in the kevent data field's
// signed range, the same MAX_TIMER_NS guard wait_with_kqueue applies.
const maxTimerNS = uint64(math.MaxInt64)

// Config configures one supervised run.
type Config struct {
	Timeout        time.Duration
	TimeoutMode    clock.Mode
	Signal         syscall.Signal
	KillAfter      *time.Duration
	OnTimeout      string
	OnTimeoutLimit time.Duration
	Throttle       *throttle.Config
	MaxMemoryBytes *uint64
	Foreground     bool // child keeps the supervisor's process group; signal it alone, not a group
}

// Run drives handle to completion under cfg's deadline, forwarding
// signals observed on pipe and throttling CPU usage if configured.
func Run(cfg Config, handle *childproc.Handle, pipe *sigpipe.Pipe) (outcome.Outcome, error) {
	if cfg.Timeout <= 0 {
		// Zero timeout means "no deadline": just wait, the same
		// zero-timeout bypass run_command applies before ever building a
		// kqueue.
		return waitNoDeadline(handle, pipe)
	}

	kq, err := unix.Kqueue()
	if err != nil {
		return outcome.Outcome{}, err
	}
	defer unix.Close(kq)

	if err := registerProcExit(kq, handle.PID()); err != nil {
		return outcome.Outcome{}, err
	}
	if err := registerRead(kq, pipe.ReadFD()); err != nil {
		return outcome.Outcome{}, err
	}

	var thr *throttle.State
	if cfg.Throttle != nil {
		thr, err = throttle.Attach(handle.PID(), *cfg.Throttle)
		if err != nil {
			thr = nil // throttling is best-effort; a dead/unreadable pid just skips it
		} else {
			defer thr.Resume()
		}
	}

	deadlineNS := clock.NowNS(cfg.TimeoutMode) + uint64(cfg.Timeout.Nanoseconds())
	var forwardedSignal syscall.Signal

	for {
		now := clock.NowNS(cfg.TimeoutMode)
		if now >= deadlineNS {
			return handleTimeout(kq, cfg, handle, pipe, thr, forwardedSignal)
		}
		remaining := deadlineNS - now

		timerBudget := remaining
		if thr != nil && cfg.Throttle.Interval > 0 {
			tickNS := uint64(cfg.Throttle.Interval.Nanoseconds())
			if tickNS < timerBudget {
				timerBudget = tickNS
			}
		}
		if cfg.MaxMemoryBytes != nil {
			// Wake at least every 100ms so the memory check below runs
			// even when no throttle tick is scheduled.
			sampleNS := uint64((100 * time.Millisecond).Nanoseconds())
			if sampleNS < timerBudget {
				timerBudget = sampleNS
			}
		}
		if timerBudget > maxTimerNS {
			timerBudget = maxTimerNS
		}

		if err := registerTimer(kq, timerBudget); err != nil {
			return outcome.Outcome{}, err
		}

		events := make([]unix.Kevent_t, 4)
		n, err := unix.Kevent(kq, nil, events, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return outcome.Outcome{}, err
		}

		childExited := false
		for i := 0; i < n; i++ {
			ev := events[i]
			switch ev.Filter {
			case unix.EVFILT_PROC:
				childExited = true
			case unix.EVFILT_READ:
				pipe.Drain()
				sig := pipe.LastSignal()
				if sig != 0 && sigpipe.ShouldForward(sig) {
					forwardedSignal = sig
					if thr != nil {
						_ = thr.Resume()
					}
					forwardTarget(handle, cfg.Foreground, sig)
				}
			case unix.EVFILT_TIMER:
				// Either the deadline was reached (checked at top of next
				// iteration) or this was a throttle-tick-only wakeup.
				if thr != nil {
					thr.Tick()
				}
			}
		}

		if childExited {
			ps, _ := handle.Wait()
			st := waitStatusOf(ps)
			if forwardedSignal != 0 {
				return outcome.Outcome{Status: outcome.StatusSignalForwarded, Signal: forwardedSignal, ChildStatus: st}, nil
			}
			return outcome.Outcome{Status: outcome.StatusCompleted, ChildStatus: st}, nil
		}

		if cfg.MaxMemoryBytes != nil {
			if sample, err := rusage.Sample(handle.PID()); err == nil && sample.MemoryBytes > *cfg.MaxMemoryBytes {
				if thr != nil {
					_ = thr.Resume()
				}
				_ = handle.Kill()
				ps, _ := handle.Wait()
				return outcome.Outcome{
					Status:          outcome.StatusMemoryLimitExceeded,
					Killed:          true,
					ChildStatus:     waitStatusOf(ps),
					PeakMemoryBytes: sample.MemoryBytes,
				}, nil
			}
		}
	}
}

// handleTimeout runs the on-timeout hook (if configured), sends the
// configured signal, optionally waits a --kill-after grace period and
// escalates to SIGKILL, and reaps the child. Mirrors monitor_with_timeout's
// primary-timeout branch.
func handleTimeout(kq int, cfg Config, handle *childproc.Handle, pipe *sigpipe.Pipe, thr *throttle.State, forwarded syscall.Signal) (outcome.Outcome, error) {
	var hookResult *outcome.HookResult
	if cfg.OnTimeout != "" {
		limit := cfg.OnTimeoutLimit
		if limit <= 0 {
			limit = 5 * time.Second
		}
		r := hook.Run(cfg.OnTimeout, handle.PID(), limit)
		hookResult = &r
	}

	if thr != nil {
		// Mandatory safety invariant: a suspended child cannot run its own
		// signal handler, so it must be resumed before any terminating
		// signal is sent, or the supervisor deadlocks waiting for it to exit.
		_ = thr.Resume()
	}
	sendSignal(handle, cfg.Foreground, cfg.Signal)

	killed := false
	var graceSignal syscall.Signal
	if cfg.KillAfter != nil {
		switch res, sig := waitGraceOrExit(kq, handle, pipe, thr, cfg.Foreground, *cfg.KillAfter); res {
		case graceSignalForwarded:
			graceSignal = sig
		case graceElapsed:
			_ = handle.Kill()
			killed = true
		}
	}

	ps, _ := handle.Wait()
	if graceSignal != 0 {
		return outcome.Outcome{Status: outcome.StatusSignalForwarded, Signal: graceSignal, ChildStatus: waitStatusOf(ps)}, nil
	}
	return outcome.Outcome{
		Status:      outcome.StatusTimedOut,
		Signal:      cfg.Signal,
		Killed:      killed,
		ChildStatus: waitStatusOf(ps),
		Reason:      cfg.TimeoutMode,
		Hook:        hookResult,
	}, nil
}

// graceResult classifies what ended a --kill-after grace window.
type graceResult int

const (
	graceChildExited graceResult = iota
	graceSignalForwarded
	graceElapsed
)

// waitGraceOrExit blocks up to grace for the child to exit after the
// primary signal, watching the same kq the main loop used. A forwardable
// signal arriving on pipe during the window is relayed to the child
// rather than dropped, the [Grace] state's signal-received transition:
// the caller then reports SignalForwarded instead of escalating to
// SIGKILL.
func waitGraceOrExit(kq int, handle *childproc.Handle, pipe *sigpipe.Pipe, thr *throttle.State, foreground bool, grace time.Duration) (graceResult, syscall.Signal) {
	deadline := time.Now().Add(grace)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return graceElapsed, 0
		}
		budget := uint64(remaining.Nanoseconds())
		if budget > maxTimerNS {
			budget = maxTimerNS
		}
		if err := registerTimer(kq, budget); err != nil {
			return graceElapsed, 0
		}
		events := make([]unix.Kevent_t, 4)
		n, err := unix.Kevent(kq, nil, events, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return graceElapsed, 0
		}
		for i := 0; i < n; i++ {
			switch events[i].Filter {
			case unix.EVFILT_PROC:
				return graceChildExited, 0
			case unix.EVFILT_READ:
				pipe.Drain()
				sig := pipe.LastSignal()
				if sig == 0 || !sigpipe.ShouldForward(sig) {
					continue
				}
				if thr != nil {
					_ = thr.Resume()
				}
				sendSignal(handle, foreground, sig)
				return graceSignalForwarded, sig
			}
			// EVFILT_TIMER carries no payload worth inspecting here; the
			// top of the next iteration re-checks remaining against grace.
		}
	}
}

func sendSignal(handle *childproc.Handle, foreground bool, sig syscall.Signal) {
	if foreground {
		_ = handle.Signal(sig)
		return
	}
	_ = handle.SignalGroup(sig)
}

func forwardTarget(handle *childproc.Handle, foreground bool, sig syscall.Signal) {
	sendSignal(handle, foreground, sig)
}

// waitNoDeadline handles the zero-timeout bypass: no kqueue is built, but
// forwardable signals observed on the pipe are still relayed to the child
// while the blocking wait proceeds on its own goroutine.
func waitNoDeadline(handle *childproc.Handle, pipe *sigpipe.Pipe) (outcome.Outcome, error) {
	type waitResult struct {
		ps  *os.ProcessState
		err error
	}
	done := make(chan waitResult, 1)
	go func() {
		ps, err := handle.Wait()
		done <- waitResult{ps, err}
	}()

	var forwarded syscall.Signal
	for {
		select {
		case r := <-done:
			if r.err != nil {
				return outcome.Outcome{}, r.err
			}
			st := waitStatusOf(r.ps)
			if forwarded != 0 {
				return outcome.Outcome{Status: outcome.StatusSignalForwarded, Signal: forwarded, ChildStatus: st}, nil
			}
			return outcome.Outcome{Status: outcome.StatusCompleted, ChildStatus: st}, nil
		case sig := <-pipe.Signals():
			if s, ok := sig.(syscall.Signal); ok && sigpipe.ShouldForward(s) {
				forwarded = s
				forwardTarget(handle, false, s)
			}
		}
	}
}

func waitStatusOf(ps interface{ Sys() any }) *childstatus.Status {
	if ps == nil {
		return nil
	}
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		return nil
	}
	s := childstatus.FromRaw(int(ws))
	return &s
}

func registerProcExit(kq, pid int) error {
	ev := unix.Kevent_t{
		Ident:  uint64(pid),
		Filter: unix.EVFILT_PROC,
		Flags:  unix.EV_ADD | unix.EV_ONESHOT,
		Fflags: unix.NOTE_EXIT,
	}
	_, err := unix.Kevent(kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func registerRead(kq, fd int) error {
	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD,
	}
	_, err := unix.Kevent(kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func registerTimer(kq int, ns uint64) error {
	ev := unix.Kevent_t{
		Ident:  identTimer,
		Filter: unix.EVFILT_TIMER,
		Flags:  unix.EV_ADD | unix.EV_ONESHOT,
		Fflags: unix.NOTE_NSECONDS,
		Data:   int64(ns),
	}
	_, err := unix.Kevent(kq, []unix.Kevent_t{ev}, nil, nil)
	return err
}
