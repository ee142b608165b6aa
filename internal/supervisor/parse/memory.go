package parse

import (
	"fmt"
	"strconv"
	"strings"
)

// MemoryLimit parses strings like "1G", "512M", "1024", "64K" into a byte
// count, mirroring rlimit.rs's parse_mem_limit: binary (1024-based) units,
// case-insensitive suffix, overflow-checked multiplication.
func MemoryLimit(input string) (uint64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, fmt.Errorf("invalid memory limit: empty")
	}

	num, suffix := splitNumberSuffix(s)
	value, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory value: %q", s)
	}

	var mult uint64
	switch strings.ToLower(suffix) {
	case "", "b":
		mult = 1
	case "k", "kb":
		mult = 1024
	case "m", "mb":
		mult = 1024 * 1024
	case "g", "gb":
		mult = 1024 * 1024 * 1024
	case "t", "tb":
		mult = 1024 * 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("invalid memory suffix in %q", s)
	}

	result := value * mult
	if mult != 0 && result/mult != value {
		return 0, fmt.Errorf("memory limit overflow: %q", s)
	}
	return result, nil
}

// CPUPercent parses the --cpu-percent argument. Unlike MemoryLimit, values
// above 100 are accepted and left unbounded (a multi-core budget, e.g. 400
// for a 4-core allowance) per the original's parse_cpu_percent and
// spec.md's Open Question resolution: "CPU throttle percent > 100×cores is
// unbounded, not clamped". Zero is rejected.
func CPUPercent(input string) (uint32, error) {
	s := strings.TrimSpace(input)
	val, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid cpu percent: %q", input)
	}
	if val == 0 {
		return 0, fmt.Errorf("cpu percent must be > 0: %d", val)
	}
	return uint32(val), nil
}
