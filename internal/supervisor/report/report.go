// Package report renders the supervisor's machine-readable --json output.
// Schema version 2 field names are a stable contract (main.rs's
// print_json_output/print_json_error): scripts depend on them, so this
// package only ever adds fields in new schema versions, never renames or
// removes one.
//
// Encoding goes through encoding/json rather than hand-built strings
// (which the original Rust implementation used only because its no_std
// release build has no heap-allocating JSON library available) — none of
// the retrieved example repos reach for a third-party JSON library either,
// so the standard library is the idiomatic choice here.
package report

import (
	"encoding/json"
	"io"

	"github.com/go-procwatch/procwatch/internal/supervisor/outcome"
	"github.com/go-procwatch/procwatch/internal/supervisor/parse"
	"github.com/go-procwatch/procwatch/internal/supervisor/retry"
)

const schemaVersion = 2

// Render writes the JSON document for a completed (non-error) run.
func Render(w io.Writer, o outcome.Outcome, elapsedMS uint64, exitCode int, attempts retry.Attempts) error {
	doc := map[string]any{
		"schema_version": schemaVersion,
		"exit_code":      exitCode,
		"elapsed_ms":     elapsedMS,
	}

	switch o.Status {
	case outcome.StatusCompleted:
		doc["status"] = "completed"
		if o.ChildStatus != nil {
			if code, ok := o.ChildStatus.Code(); ok {
				doc["exit_code"] = code
			}
		}

	case outcome.StatusTimedOut:
		doc["status"] = "timeout"
		doc["signal"] = parse.SignalName(o.Signal)
		doc["signal_num"] = parse.SignalNumber(o.Signal)
		doc["killed"] = o.Killed
		doc["command_exit_code"] = commandExitCode(o)
		if o.Hook != nil {
			doc["hook_ran"] = o.Hook.Ran
			doc["hook_exit_code"] = o.Hook.ExitCode
			doc["hook_timed_out"] = o.Hook.TimedOut
			doc["hook_elapsed_ms"] = o.Hook.ElapsedMS
		}

	case outcome.StatusSignalForwarded:
		doc["status"] = "signal_forwarded"
		doc["signal"] = parse.SignalName(o.Signal)
		doc["signal_num"] = parse.SignalNumber(o.Signal)
		doc["command_exit_code"] = commandExitCode(o)

	case outcome.StatusMemoryLimitExceeded:
		doc["status"] = "memory_limit_exceeded"
		doc["killed"] = o.Killed
		doc["peak_memory_bytes"] = o.PeakMemoryBytes
	}

	if len(attempts) > 1 {
		doc["attempts"] = attemptSummaries(attempts)
	}

	enc := json.NewEncoder(w)
	return enc.Encode(doc)
}

// RenderError writes the JSON document for a run that failed before or
// during spawn, mirroring print_json_error.
func RenderError(w io.Writer, err error, exitCode int, elapsedMS uint64) error {
	doc := map[string]any{
		"schema_version": schemaVersion,
		"status":         "error",
		"error":          err.Error(),
		"exit_code":      exitCode,
		"elapsed_ms":     elapsedMS,
	}
	enc := json.NewEncoder(w)
	return enc.Encode(doc)
}

func commandExitCode(o outcome.Outcome) int {
	if o.ChildStatus == nil {
		return -1
	}
	if code, ok := o.ChildStatus.Code(); ok {
		return code
	}
	return -1
}

func attemptSummaries(attempts retry.Attempts) []map[string]any {
	out := make([]map[string]any, 0, len(attempts))
	for i, a := range attempts {
		out = append(out, map[string]any{
			"attempt": i + 1,
			"status":  a.Status,
		})
	}
	return out
}
