// Package rlimit applies RLIMIT_AS (address space / virtual memory) and
// RLIMIT_CPU to the current process before it execs the child, mirroring
// rlimit.rs's apply_limits. Setrlimit is called through
// golang.org/x/sys/unix, tmc/macgo's one direct third-party dependency.
package rlimit

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/go-procwatch/procwatch/internal/supervisor/supervisorerr"
)

// Limits holds the resource limits to apply, mirroring ResourceLimits in
// the original implementation's rlimit.rs.
type Limits struct {
	MemBytes *uint64
	CPUTime  *time.Duration
}

// IsEmpty reports whether no limits were requested.
func (l Limits) IsEmpty() bool {
	return l.MemBytes == nil && l.CPUTime == nil
}

// Apply sets the requested limits on the supervisor process itself, before
// childproc.Spawn forks and execs the target command. rlimits are
// inherited by a process's children across fork+exec, so setting them here
// has the same effect as process.rs setting them between fork and exec
// inside the child, without needing a pre-exec callback (which os/exec
// does not expose).
//
// RLIMIT_AS is not enforced by the XNU kernel: setrlimit(RLIMIT_AS, ...)
// returns EINVAL on Darwin. That failure is swallowed here exactly as
// apply_limits does, since macOS never enforced the limit to begin with;
// every other setrlimit failure is fatal.
func Apply(limits Limits) error {
	if limits.MemBytes != nil {
		rlim := unix.Rlimit{Cur: *limits.MemBytes, Max: *limits.MemBytes}
		if err := unix.Setrlimit(unix.RLIMIT_AS, &rlim); err != nil {
			if err != unix.EINVAL {
				return supervisorerr.New("apply resource limits", supervisorerr.KindResourceLimit, err)
			}
		}
	}

	if limits.CPUTime != nil {
		secs := uint64(limits.CPUTime.Seconds())
		rlim := unix.Rlimit{Cur: secs, Max: secs}
		if err := unix.Setrlimit(unix.RLIMIT_CPU, &rlim); err != nil {
			return supervisorerr.New("apply resource limits", supervisorerr.KindResourceLimit, err)
		}
	}

	return nil
}
