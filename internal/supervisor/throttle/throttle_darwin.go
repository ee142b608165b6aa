// Package throttle caps a child process's CPU usage via SIGSTOP/SIGCONT,
// using integral control: it tracks cumulative CPU time consumed against
// the cumulative wall-clock budget allowed since the throttle was
// attached, rather than a delta/proportional controller. Integral control
// converges exactly to the target percentage over the process's lifetime
// instead of oscillating around it. Ported from throttle.rs's
// CpuThrottleState::update.
package throttle

import (
	"math"
	"math/bits"
	"syscall"
	"time"

	"github.com/go-procwatch/procwatch/internal/supervisor/clock"
	"github.com/go-procwatch/procwatch/internal/supervisor/rusage"
)

// Config mirrors CpuThrottleConfig: the target CPU percentage (100 = one
// full core, 400 = four cores, unbounded above 100×cores per spec.md's
// Open Question resolution) and the tick interval the supervisor loop
// drives Tick at.
type Config struct {
	PercentOfCore uint32
	Interval      time.Duration
}

// State tracks one throttled child, mirroring CpuThrottleState.
type State struct {
	pid          int
	percent      uint64
	startCPUNS   uint64
	startWallNS  uint64
	suspended    bool
}

// Attach begins throttling pid toward cfg.PercentOfCore, sampling the
// starting CPU time and wall clock as the integral control's baseline.
func Attach(pid int, cfg Config) (*State, error) {
	sample, err := rusage.Sample(pid)
	if err != nil {
		return nil, err
	}
	return &State{
		pid:         pid,
		percent:     uint64(cfg.PercentOfCore),
		startCPUNS:  sample.CPUTimeNS,
		startWallNS: clock.NowNS(clock.Wall),
	}, nil
}

// Tick samples current usage and suspends or resumes the child so that,
// over the lifetime of the attachment, cumulative CPU time stays at or
// below percent% of cumulative wall-clock time. This is the direct port
// of CpuThrottleState::update's budget comparison.
func (s *State) Tick() error {
	sample, err := rusage.Sample(s.pid)
	if err != nil {
		return err
	}

	elapsedWallNS := clock.NowNS(clock.Wall) - s.startWallNS
	cpuUsedNS := sample.CPUTimeNS - s.startCPUNS

	// budget = elapsed_wall * percent / 100, computed in a wide
	// intermediate the way throttle.rs uses u128 to avoid overflow on
	// long-running processes.
	hi, lo := bits.Mul64(elapsedWallNS, s.percent)
	budgetNS := uint64(math.MaxUint64)
	if hi < 100 {
		budgetNS, _ = bits.Div64(hi, lo, 100)
	}

	switch {
	case cpuUsedNS > budgetNS && !s.suspended:
		if err := syscall.Kill(s.pid, syscall.SIGSTOP); err != nil {
			return err
		}
		s.suspended = true
	case cpuUsedNS <= budgetNS && s.suspended:
		if err := syscall.Kill(s.pid, syscall.SIGCONT); err != nil {
			return err
		}
		s.suspended = false
	}
	return nil
}

// Suspended reports whether the child is currently stopped.
func (s *State) Suspended() bool {
	return s.suspended
}

// Resume sends SIGCONT unconditionally if the child was left suspended.
// Callers must invoke this before the run ends — a process left in
// SIGSTOP state after the supervisor exits would hang forever, the same
// safety invariant throttle.rs documents on CpuThrottleState's Drop impl.
func (s *State) Resume() error {
	if !s.suspended {
		return nil
	}
	err := syscall.Kill(s.pid, syscall.SIGCONT)
	s.suspended = false
	return err
}
