// Package logging builds the procwatch structured logger, configured the
// same way tmc/macgo's internal/launch logger is configured, with the
// environment variable prefix swapped for the supervisor domain.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with procwatch-specific configuration.
type Logger struct {
	*slog.Logger
}

// New creates a configured logger based on environment variables:
//
//   - PROCWATCH_DEBUG=1 switches the level to Debug (Info otherwise).
//   - PROCWATCH_LOG_DEST selects "stderr" (default), "file:<path>", or
//     "both:<path>".
//   - PROCWATCH_LOG_JSON=1 switches the handler to JSON.
//   - PROCWATCH_LOG_TIME=1 / PROCWATCH_LOG_LEVEL=1 restore the time/level
//     attributes the text handler otherwise drops.
func New() *Logger {
	opts := &slog.HandlerOptions{Level: level()}

	var handler slog.Handler
	if os.Getenv("PROCWATCH_LOG_JSON") == "1" {
		handler = slog.NewJSONHandler(destination(), opts)
	} else {
		opts.ReplaceAttr = trimAttrs
		handler = slog.NewTextHandler(destination(), opts)
	}

	return &Logger{Logger: slog.New(handler).With("component", "supervisor")}
}

func level() slog.Level {
	if os.Getenv("PROCWATCH_DEBUG") == "1" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// destination resolves PROCWATCH_LOG_DEST into the writer(s) log lines go
// to: plain "stderr" by default, a file at "file:<path>", or both at
// "both:<path>". A file that fails to open falls back to stderr rather
// than losing output entirely.
func destination() io.Writer {
	dest := os.Getenv("PROCWATCH_LOG_DEST")
	mode, path, hasPath := strings.Cut(dest, ":")
	if !hasPath || (mode != "file" && mode != "both") {
		return os.Stderr
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "procwatch: failed to open log file %s: %v\n", path, err)
		return os.Stderr
	}
	if mode == "both" {
		return io.MultiWriter(os.Stderr, f)
	}
	return f
}

// trimAttrs drops the text handler's time/level attributes unless the
// corresponding PROCWATCH_LOG_* override asks to keep them.
func trimAttrs(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		if os.Getenv("PROCWATCH_LOG_TIME") != "1" {
			return slog.Attr{}
		}
	case slog.LevelKey:
		if os.Getenv("PROCWATCH_LOG_LEVEL") != "1" {
			return slog.Attr{}
		}
	}
	return a
}

func (l *Logger) Debug(msg string, args ...any) { l.Logger.Debug("procwatch: "+msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.Logger.Info("procwatch: "+msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.Logger.Warn("procwatch: "+msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.Logger.Error("procwatch: "+msg, args...) }
