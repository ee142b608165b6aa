package main

import (
	"fmt"
	"os"

	"github.com/go-procwatch/procwatch/internal/supervisor/logging"
	"github.com/go-procwatch/procwatch/internal/supervisor/parse"
)

// resolvedArgs is the result of reconciling the DURATION positional
// argument against the TIMEOUT environment variable, following main.rs's
// resolve_args: the CLI argument always wins, but if both are present and
// the CLI one parses cleanly, a warning is emitted naming the ambiguity
// rather than silently picking one.
type resolvedArgs struct {
	durationStr string
	command     string
	commandArgs []string
}

// resolveArgs decides whether positional[0] is the DURATION or the
// command, based on whether TIMEOUT is set in the environment. Grammar is
// "prog [OPTIONS] DURATION COMMAND [ARG...]"; TIMEOUT lets DURATION be
// omitted from the command line entirely.
func resolveArgs(positional []string, log *logging.Logger) (resolvedArgs, error) {
	envTimeout, envSet := os.LookupEnv("TIMEOUT")

	if len(positional) == 0 {
		return resolvedArgs{}, fmt.Errorf("missing command")
	}

	if !envSet {
		if len(positional) < 2 {
			return resolvedArgs{}, fmt.Errorf("missing command")
		}
		return resolvedArgs{durationStr: positional[0], command: positional[1], commandArgs: positional[2:]}, nil
	}

	// TIMEOUT is set. If positional[0] also parses as a duration and there's
	// a command after it, both sources are present: CLI wins, warn.
	if len(positional) >= 2 {
		if _, err := parse.Duration(positional[0]); err == nil {
			log.Warn("both TIMEOUT environment variable and a CLI duration argument are set; using the CLI argument", "timeout_env", envTimeout, "cli_duration", positional[0])
			return resolvedArgs{durationStr: positional[0], command: positional[1], commandArgs: positional[2:]}, nil
		}
	}

	// positional[0] isn't a duration (or there's only one positional): treat
	// the whole list as the command, source DURATION from TIMEOUT.
	return resolvedArgs{durationStr: envTimeout, command: positional[0], commandArgs: positional[1:]}, nil
}

// envFallback returns flagVal if the flag was explicitly set by the user,
// otherwise the named environment variable's value (possibly empty).
func envFallback(flagVal string, flagSet bool, envName string) string {
	if flagSet {
		return flagVal
	}
	return os.Getenv(envName)
}
