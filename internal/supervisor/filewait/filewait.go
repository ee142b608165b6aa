// Package filewait implements --wait-for-file: block until a path exists
// (or a deadline passes). The original implementation (wait.rs) polls
// stat() with exponential backoff (10ms -> 1s cap). Here the primary path
// watches the parent directory with fsnotify (one of the domain-stack
// dependencies pulled in from the broader retrieved pack) and falls back
// to the same backoff-polling loop if the parent directory cannot be
// watched (e.g. it does not exist yet) or the watcher fails. The race
// window before the watch exists is covered by re-checking the path as
// soon as the watch is in place.
package filewait

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/go-procwatch/procwatch/internal/supervisor/supervisorerr"
)

const (
	initialPoll = 10 * time.Millisecond
	maxPoll     = 1 * time.Second
)

// Wait blocks until path exists or timeout elapses (timeout <= 0 means
// wait indefinitely). Mirrors wait_for_file's contract: an immediate
// existence check avoids sleeping at all if the file is already there.
//
// There is an inherent TOCTOU race between Wait returning and the caller
// using the file, the same race wait.rs documents: if the file can be
// deleted between detection and use, callers must handle ENOENT
// gracefully themselves.
func Wait(path string, timeout time.Duration) error {
	if exists, err := fileExists(path); err != nil {
		return supervisorerr.New("wait for file", supervisorerr.KindWaitForFile, err)
	} else if exists {
		return nil
	}

	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}

	watcher, watchErr := fsnotify.NewWatcher()
	if watchErr == nil {
		defer watcher.Close()
		dir := filepath.Dir(path)
		if err := watcher.Add(dir); err == nil {
			return waitWatched(watcher, path, deadline, hasDeadline)
		}
	}

	return waitPolled(path, deadline, hasDeadline)
}

// waitWatched blocks on fsnotify events for the parent directory, falling
// back to the polling loop if the watcher's event channel closes or it
// reports an error; it never blocks longer than the deadline.
func waitWatched(watcher *fsnotify.Watcher, path string, deadline time.Time, hasDeadline bool) error {
	for {
		if exists, err := fileExists(path); err != nil {
			return supervisorerr.New("wait for file", supervisorerr.KindWaitForFile, err)
		} else if exists {
			return nil
		}

		var timeoutCh <-chan time.Time
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return supervisorerr.New("wait for file", supervisorerr.KindWaitForFileTimeout, errTimeout(path))
			}
			// Re-check on a bounded cadence even with a live watcher, in
			// case the create event targets a different name in the same
			// directory and we need to keep re-stat'ing path itself.
			wait := remaining
			if wait > maxPoll {
				wait = maxPoll
			}
			t := time.NewTimer(wait)
			defer t.Stop()
			timeoutCh = t.C
		}

		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return waitPolled(path, deadline, hasDeadline)
			}
			if event.Name == path && (event.Op&(fsnotify.Create|fsnotify.Write) != 0) {
				if exists, err := fileExists(path); err == nil && exists {
					return nil
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok || err != nil {
				return waitPolled(path, deadline, hasDeadline)
			}
		case <-timeoutCh:
			// loop back around to re-check the deadline/existence
		}
	}
}

// waitPolled is the exponential-backoff stat loop, the original's
// pure-polling fallback, used when fsnotify can't watch yet (parent
// directory missing) or stops delivering events.
func waitPolled(path string, deadline time.Time, hasDeadline bool) error {
	interval := initialPoll
	for {
		var sleep time.Duration
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return supervisorerr.New("wait for file", supervisorerr.KindWaitForFileTimeout, errTimeout(path))
			}
			sleep = interval
			if sleep > remaining {
				sleep = remaining
			}
		} else {
			sleep = interval
		}

		time.Sleep(sleep)

		if exists, err := fileExists(path); err != nil {
			return supervisorerr.New("wait for file", supervisorerr.KindWaitForFile, err)
		} else if exists {
			return nil
		}

		interval *= 2
		if interval > maxPoll {
			interval = maxPoll
		}
	}
}

// fileExists treats both ENOENT and ENOTDIR as "not here yet, keep
// polling": the latter shows up when a leading path component exists but
// isn't a directory, which is just as routine during --wait-for-file as
// the target itself being absent (wait.rs's poll loop makes the same call).
func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err), errors.Is(err, syscall.ENOTDIR):
		return false, nil
	default:
		return false, err
	}
}

type timeoutError struct{ path string }

func (e *timeoutError) Error() string { return "timed out waiting for file: " + e.path }

func errTimeout(path string) error { return &timeoutError{path: path} }
