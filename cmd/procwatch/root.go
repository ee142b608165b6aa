package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// options holds every flag value from the external interface's grammar
// (spec section 6), bound directly by cobra/pflag.
type options struct {
	signal          string
	killAfter       string
	preserveStatus  bool
	foreground      bool
	verbose         bool
	quiet           bool
	timeoutExitCode int
	onTimeout       string
	onTimeoutLimit  string
	jsonOutput      bool
	retryCount      int
	retryDelay      string
	retryBackoff    float64
	waitForFile     string
	confine         string
	memLimit        string
	cpuTime         string
	cpuPercent      string
	maxMemory       string
}

// Execute builds and runs the procwatch command against argv, returning the
// POSIX exit code the process should terminate with.
func Execute(argv []string) (int, error) {
	opts := &options{}
	exitCode := 125
	var runErr error

	var printVersion bool

	root := &cobra.Command{
		Use:   "procwatch [OPTIONS] DURATION COMMAND [ARG...]",
		Short: "Run COMMAND under a wall-clock or active-time deadline",
		Args: func(cmd *cobra.Command, args []string) error {
			if printVersion {
				return nil
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printVersion {
				fmt.Fprintln(cmd.OutOrStdout(), "procwatch "+version)
				exitCode = 0
				return nil
			}
			code, err := run(cmd, opts, args)
			exitCode = code
			runErr = err
			return err
		},
	}
	root.Flags().BoolVarP(&printVersion, "version", "V", false, "print version and exit")

	flags := root.Flags()
	flags.StringVarP(&opts.signal, "signal", "s", "TERM", "signal to send on timeout")
	flags.StringVarP(&opts.killAfter, "kill-after", "k", "", "send SIGKILL if still running this long after the primary signal")
	flags.BoolVarP(&opts.preserveStatus, "preserve-status", "p", false, "exit with the child's own status-derived code instead of timeoutExitCode")
	flags.BoolVarP(&opts.foreground, "foreground", "f", false, "signal only the child process, not its process group")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "emit diagnostics to stderr")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress diagnostics to stderr")
	flags.IntVar(&opts.timeoutExitCode, "timeout-exit-code", 124, "exit code to use on timeout when --preserve-status is not set")
	flags.StringVar(&opts.onTimeout, "on-timeout", "", "command to run when the deadline fires, %p expands to the child pid")
	flags.StringVar(&opts.onTimeoutLimit, "on-timeout-limit", "5s", "deadline for the --on-timeout command")
	flags.BoolVar(&opts.jsonOutput, "json", false, "emit a single JSON result line instead of human-readable text")
	flags.IntVar(&opts.retryCount, "retry", 0, "retry this many additional times on timeout, forwarded signal, or memory-limit kill")
	flags.StringVar(&opts.retryDelay, "retry-delay", "1s", "base delay before the first retry")
	flags.Float64Var(&opts.retryBackoff, "retry-backoff", 2.0, "multiplier applied to the retry delay each additional attempt")
	flags.StringVar(&opts.waitForFile, "wait-for-file", "", "block until this path exists before spawning the command")
	flags.StringVarP(&opts.confine, "confine", "c", "wall", "time source for the deadline: wall or active")
	flags.StringVar(&opts.memLimit, "mem-limit", "", "RLIMIT_AS for the child, e.g. 512M")
	flags.StringVar(&opts.cpuTime, "cpu-time", "", "RLIMIT_CPU for the child, e.g. 30s")
	flags.StringVar(&opts.cpuPercent, "cpu-percent", "", "throttle the child to this percent of one core (unbounded above 100)")
	flags.StringVar(&opts.maxMemory, "max-memory", "", "kill the child if its physical memory footprint exceeds this, e.g. 512M (sampled, unlike --mem-limit's hard kernel cap)")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	root.SetArgs(argv)
	if err := root.Execute(); err != nil {
		if runErr == nil {
			// cobra-level failure (bad flags, usage): never reached the
			// supervisor, classify as an invalid-input/internal error.
			return 125, err
		}
	}
	return exitCode, runErr
}

var version = "0.1.0"
