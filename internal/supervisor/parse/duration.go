// Package parse implements the supervisor's string-to-value parsers:
// durations, signal specifications, and memory limits. The duration and
// signal grammars are ported from the original implementation's
// duration.rs and signal.rs; the memory grammar from rlimit.rs.
package parse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxDuration caps parsed durations the way the original's MAX_SECONDS cap
// guards against absurd or overflowing values.
const MaxDuration = time.Duration(math.MaxInt64)

// Duration parses a duration string using the GNU coreutils suffix
// grammar plus the sub-second suffixes spec.md's external interface adds
// beyond the original Rust parser: "us" (microseconds) and "ms"
// (milliseconds), in addition to the original's "" / "s" (seconds),
// "m" (minutes), "h" (hours) and "d" (days).
//
// An empty suffix means seconds. Negative, NaN and infinite values are
// rejected, matching the original's validation.
func Duration(input string) (time.Duration, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	num, suffix := splitNumberSuffix(s)
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", input, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("invalid duration %q: not finite", input)
	}
	if value < 0 {
		return 0, fmt.Errorf("invalid duration %q: negative", input)
	}

	var unit time.Duration
	switch strings.ToLower(suffix) {
	case "", "s":
		unit = time.Second
	case "ms":
		unit = time.Millisecond
	case "us":
		unit = time.Microsecond
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid duration suffix in %q", input)
	}

	nanos := value * float64(unit)
	if nanos > float64(MaxDuration) {
		return MaxDuration, nil
	}
	return time.Duration(nanos), nil
}

// IsNoTimeout reports whether a parsed duration should be treated as "no
// deadline" (zero), mirroring the original's is_no_timeout.
func IsNoTimeout(d time.Duration) bool {
	return d == 0
}

// splitNumberSuffix splits a trailing run of ASCII letters off the end of
// s, mirroring rlimit.rs's split_number_suffix (reused here for durations
// since both grammars are "digits/decimal then letters").
func splitNumberSuffix(s string) (number, suffix string) {
	idx := len(s)
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			idx = i
			continue
		}
		break
	}
	return s[:idx], s[idx:]
}
