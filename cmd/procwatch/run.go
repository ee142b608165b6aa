package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-procwatch/procwatch/internal/supervisor/childproc"
	"github.com/go-procwatch/procwatch/internal/supervisor/clock"
	"github.com/go-procwatch/procwatch/internal/supervisor/filewait"
	"github.com/go-procwatch/procwatch/internal/supervisor/logging"
	"github.com/go-procwatch/procwatch/internal/supervisor/loop"
	"github.com/go-procwatch/procwatch/internal/supervisor/outcome"
	"github.com/go-procwatch/procwatch/internal/supervisor/parse"
	"github.com/go-procwatch/procwatch/internal/supervisor/report"
	"github.com/go-procwatch/procwatch/internal/supervisor/retry"
	"github.com/go-procwatch/procwatch/internal/supervisor/rlimit"
	"github.com/go-procwatch/procwatch/internal/supervisor/sigpipe"
	"github.com/go-procwatch/procwatch/internal/supervisor/supervisorerr"
	"github.com/go-procwatch/procwatch/internal/supervisor/throttle"
)

// run wires the parsed flags into the retry controller, supervisor loop,
// and outcome classifier, then renders the result. It returns the process
// exit code and an error to print (nil on a clean completion, even one
// with a nonzero child exit code).
func run(cmd *cobra.Command, opts *options, positional []string) (int, error) {
	log := logging.New()
	if opts.verbose {
		log.Logger = log.Logger.With("verbose", true)
	}

	start := time.Now()

	resolved, err := resolveArgs(positional, log)
	if err != nil {
		return finish(opts, log, start, nil, nil, supervisorerr.New("args", supervisorerr.KindInternal, err))
	}

	timeout, err := parse.Duration(resolved.durationStr)
	if err != nil {
		return finish(opts, log, start, nil, nil, supervisorerr.New("parse timeout", supervisorerr.KindInvalidDuration, err))
	}

	sig, err := parse.Signal(envFallback(opts.signal, cmd.Flags().Changed("signal"), "TIMEOUT_SIGNAL"))
	if err != nil {
		return finish(opts, log, start, nil, nil, supervisorerr.New("parse signal", supervisorerr.KindInvalidSignal, err))
	}

	var killAfter *time.Duration
	if ka := envFallback(opts.killAfter, cmd.Flags().Changed("kill-after"), "TIMEOUT_KILL_AFTER"); ka != "" {
		d, err := parse.Duration(ka)
		if err != nil {
			return finish(opts, log, start, nil, nil, supervisorerr.New("parse kill-after", supervisorerr.KindInvalidDuration, err))
		}
		killAfter = &d
	}

	onTimeoutLimit, err := parse.Duration(opts.onTimeoutLimit)
	if err != nil {
		return finish(opts, log, start, nil, nil, supervisorerr.New("parse on-timeout-limit", supervisorerr.KindInvalidDuration, err))
	}

	mode := clock.Wall
	if opts.confine == "active" {
		mode = clock.Active
	} else if opts.confine != "" && opts.confine != "wall" {
		err := fmt.Errorf("invalid --confine %q: want wall or active", opts.confine)
		return finish(opts, log, start, nil, nil, supervisorerr.New("parse confine", supervisorerr.KindInternal, err))
	}

	limits := rlimit.Limits{}
	if opts.memLimit != "" {
		v, err := parse.MemoryLimit(opts.memLimit)
		if err != nil {
			return finish(opts, log, start, nil, nil, supervisorerr.New("parse mem-limit", supervisorerr.KindInvalidMemoryLimit, err))
		}
		limits.MemBytes = &v
	}
	if opts.cpuTime != "" {
		d, err := parse.Duration(opts.cpuTime)
		if err != nil {
			return finish(opts, log, start, nil, nil, supervisorerr.New("parse cpu-time", supervisorerr.KindInvalidDuration, err))
		}
		limits.CPUTime = &d
	}

	var maxMemoryBytes *uint64
	if opts.maxMemory != "" {
		v, err := parse.MemoryLimit(opts.maxMemory)
		if err != nil {
			return finish(opts, log, start, nil, nil, supervisorerr.New("parse max-memory", supervisorerr.KindInvalidMemoryLimit, err))
		}
		maxMemoryBytes = &v
	}

	var thrCfg *throttle.Config
	if opts.cpuPercent != "" {
		pct, err := parse.CPUPercent(opts.cpuPercent)
		if err != nil {
			return finish(opts, log, start, nil, nil, supervisorerr.New("parse cpu-percent", supervisorerr.KindInvalidCPUPercent, err))
		}
		thrCfg = &throttle.Config{PercentOfCore: pct, Interval: 100 * time.Millisecond}
	}

	if opts.waitForFile != "" {
		if err := filewait.Wait(opts.waitForFile, timeout); err != nil {
			return finish(opts, log, start, nil, nil, err)
		}
	}

	if !limits.IsEmpty() {
		if err := rlimit.Apply(limits); err != nil {
			return finish(opts, log, start, nil, nil, supervisorerr.New("apply rlimit", supervisorerr.KindResourceLimit, err))
		}
	}

	pipe, err := sigpipe.New()
	if err != nil {
		return finish(opts, log, start, nil, nil, supervisorerr.New("install signal pipe", supervisorerr.KindInternal, err))
	}
	defer pipe.Close()

	retryDelay, err := parse.Duration(opts.retryDelay)
	if err != nil {
		return finish(opts, log, start, nil, nil, supervisorerr.New("parse retry-delay", supervisorerr.KindInvalidDuration, err))
	}
	retryCfg := retry.Config{
		RetryCount:   opts.retryCount,
		InitialDelay: retryDelay,
		Multiplier:   opts.retryBackoff,
	}

	loopCfg := loop.Config{
		Timeout:        timeout,
		TimeoutMode:    mode,
		Signal:         sig,
		KillAfter:      killAfter,
		OnTimeout:      opts.onTimeout,
		OnTimeoutLimit: onTimeoutLimit,
		Throttle:       thrCfg,
		MaxMemoryBytes: maxMemoryBytes,
		Foreground:     opts.foreground,
	}

	interrupt := signalDone(pipe)

	result, attempts, runErr := retry.Run(retryCfg, interrupt, func() (outcome.Outcome, error) {
		handle, err := childproc.Spawn(resolved.command, resolved.commandArgs, !opts.foreground)
		if err != nil {
			return outcome.Outcome{}, err
		}
		return loop.Run(loopCfg, handle, pipe)
	})

	return finish(opts, log, start, &result, attempts, wrapSpawnErr(runErr))
}

// wrapSpawnErr normalizes a spawn failure into a *supervisorerr.Error when
// it isn't already one (e.g. a kqueue setup failure from the loop package).
func wrapSpawnErr(err error) error {
	if err == nil {
		return nil
	}
	var se *supervisorerr.Error
	if errors.As(err, &se) {
		return se
	}
	return supervisorerr.New("run", supervisorerr.KindInternal, err)
}

// signalDone bridges the self-pipe's raw signal channel into the
// interrupt channel retry.Run expects for short-circuiting its backoff
// sleep.
func signalDone(pipe *sigpipe.Pipe) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for range pipe.Signals() {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	}()
	return done
}

// finish renders the outcome (success or error) as JSON or human-readable
// text and computes the final exit code.
func finish(opts *options, log *logging.Logger, start time.Time, result *outcome.Outcome, attempts retry.Attempts, err error) (int, error) {
	elapsedMS := uint64(time.Since(start).Milliseconds())

	if err != nil {
		code := 125
		var se *supervisorerr.Error
		if errors.As(err, &se) {
			code = se.ExitCode()
		}
		if opts.jsonOutput {
			report.RenderError(os.Stdout, err, code, elapsedMS)
			return code, nil
		}
		if !opts.quiet {
			return code, err
		}
		return code, nil
	}

	code := result.ExitCode(opts.preserveStatus, opts.timeoutExitCode)

	if opts.jsonOutput {
		if rerr := report.Render(os.Stdout, *result, elapsedMS, code, attempts); rerr != nil {
			log.Error("failed to render JSON output", "err", rerr)
		}
		return code, nil
	}

	if opts.verbose && !opts.quiet {
		log.Info("run finished", "status", result.Status, "exit_code", code, "elapsed_ms", elapsedMS)
	}
	return code, nil
}
