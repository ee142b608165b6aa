// Package sigpipe implements the supervisor's self-pipe signal transport.
// The original implementation installs a raw async-signal-safe C signal
// handler that writes one byte to a pipe; Go's runtime already delivers
// signals to a channel safely from a dedicated goroutine (os/signal.Notify),
// the pattern tmc/macgo's signal/signal.go Handler.Forward uses. This
// package keeps that idiomatic Go delivery mechanism but still exposes a
// pipe file descriptor, because the supervisor loop (internal/supervisor/loop)
// is a single kqueue-driven event loop that needs something it can
// EVFILT_READ-watch alongside the child-exit and timer events — the
// goroutine bridges "channel delivery" to "readable fd" by writing a byte
// whenever a signal arrives.
package sigpipe

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// watchedSignals is the same POSIX set tmc/macgo's signal.Handler
// forwards, explicitly excluding SIGKILL and SIGSTOP (unblockable/
// un-ignorable, not worth registering for).
var watchedSignals = []os.Signal{
	syscall.SIGABRT, syscall.SIGALRM, syscall.SIGBUS, syscall.SIGCHLD,
	syscall.SIGCONT, syscall.SIGFPE, syscall.SIGHUP, syscall.SIGILL,
	syscall.SIGINT, syscall.SIGIO, syscall.SIGPIPE, syscall.SIGPROF,
	syscall.SIGQUIT, syscall.SIGSEGV, syscall.SIGSYS, syscall.SIGTERM,
	syscall.SIGTRAP, syscall.SIGTSTP, syscall.SIGTTIN, syscall.SIGTTOU,
	syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGVTALRM, syscall.SIGWINCH,
	syscall.SIGXCPU, syscall.SIGXFSZ,
}

// forwardable is the subset of signals the supervisor loop forwards to the
// child's process group, matching the external interface's
// SIGTERM/SIGINT/SIGHUP contract. Other watched signals only wake the
// kqueue loop, which then ignores them; they are not relayed.
var forwardable = map[syscall.Signal]bool{
	syscall.SIGTERM: true,
	syscall.SIGINT:  true,
	syscall.SIGHUP:  true,
}

// Pipe is the self-pipe: a read end the supervisor loop can add to its
// kqueue change list, and the goroutine-fed write end.
type Pipe struct {
	readFD, writeFD int
	ch              chan os.Signal
	last            atomic.Int32
	closed          atomic.Bool
}

// New creates the self-pipe and starts the forwarding goroutine. Callers
// must call Close when done to avoid leaking the fds and the signal
// registration, matching cleanup_signal_forwarding's contract.
func New() (*Pipe, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, err
	}
	unix.CloseOnExec(p[0])
	unix.CloseOnExec(p[1])

	if err := unix.SetNonblock(p[0], true); err != nil {
		unix.Close(p[0])
		unix.Close(p[1])
		return nil, err
	}

	sp := &Pipe{readFD: p[0], writeFD: p[1], ch: make(chan os.Signal, 16)}
	signal.Notify(sp.ch, watchedSignals...)
	go sp.pump()
	return sp, nil
}

func (p *Pipe) pump() {
	for sig := range p.ch {
		if s, ok := sig.(syscall.Signal); ok {
			p.last.Store(int32(s))
		}
		if p.closed.Load() {
			return
		}
		unix.Write(p.writeFD, []byte{1})
	}
}

// ReadFD returns the pipe's read end, for the supervisor loop's kqueue
// change list (EVFILT_READ).
func (p *Pipe) ReadFD() int { return p.readFD }

// Signals exposes the raw signal channel so non-kqueue waiters — the
// retry controller's backoff sleep — can also short-circuit on a signal,
// without needing their own kqueue.
func (p *Pipe) Signals() <-chan os.Signal { return p.ch }

// Drain discards any buffered wakeup bytes after the loop observes a
// readable event, so the next unrelated kevent doesn't re-trigger on
// stale data.
func (p *Pipe) Drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.readFD, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// LastSignal returns the most recently received watched signal, whether or
// not it is in the forwarding set, or 0 if none has arrived yet. Callers
// check ShouldForward before relaying it.
func (p *Pipe) LastSignal() syscall.Signal {
	return syscall.Signal(p.last.Load())
}

// ShouldForward reports whether sig is one the supervisor relays to the
// child's process group.
func ShouldForward(sig syscall.Signal) bool {
	return forwardable[sig]
}

// Close stops signal delivery and closes both pipe ends. Safe to call more
// than once, matching cleanup_signal_forwarding's idempotency contract.
func (p *Pipe) Close() {
	if p.closed.Swap(true) {
		return
	}
	signal.Stop(p.ch)
	close(p.ch)
	unix.Close(p.readFD)
	unix.Close(p.writeFD)
}
