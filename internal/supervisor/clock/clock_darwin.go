// Package clock implements the supervisor's two time sources: Wall (backed
// by mach_continuous_time, which keeps advancing across system sleep) and
// Active (backed by clock_gettime_nsec_np(CLOCK_MONOTONIC_RAW), which
// pauses while the machine sleeps). Both Darwin C entry points are called
// through purego, the same no-cgo dynamic-loading mechanism tmc/macgo uses
// in internal/launch/singleprocess.go and uimode_darwin.go to reach AppKit,
// here pointed at libSystem instead of AppKit.
package clock

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

// Mode selects which clock a deadline is measured against.
type Mode int

const (
	// Wall measures continuous (sleep-inclusive) time.
	Wall Mode = iota
	// Active measures time the machine was actually awake and running.
	Active
)

func (m Mode) String() string {
	if m == Active {
		return "active"
	}
	return "wall"
}

const clockMonotonicRaw = 4 // CLOCK_MONOTONIC_RAW

var (
	machContinuousTime  func() uint64
	machTimebaseInfo    func(*machTimebaseInfoT) int32
	clockGettimeNsecNp  func(int32) uint64
	initOnce            sync.Once
	initErr             error
	timebaseNumer       uint64 = 1
	timebaseDenom       uint64 = 1
)

type machTimebaseInfoT struct {
	Numer uint32
	Denom uint32
}

// initLibSystem dlopens libSystem and registers the handful of C entry points this
// package needs, the way singleprocess.go dlopens AppKit before sending
// Objective-C messages into it.
func initLibSystem() error {
	initOnce.Do(func() {
		handle, err := purego.Dlopen("/usr/lib/libSystem.B.dylib", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			initErr = fmt.Errorf("clock: dlopen libSystem: %w", err)
			return
		}

		purego.RegisterLibFunc(&machContinuousTime, handle, "mach_continuous_time")
		purego.RegisterLibFunc(&machTimebaseInfo, handle, "mach_timebase_info")
		purego.RegisterLibFunc(&clockGettimeNsecNp, handle, "clock_gettime_nsec_np")

		var info machTimebaseInfoT
		if machTimebaseInfo(&info) == 0 && info.Denom != 0 {
			timebaseNumer = uint64(info.Numer)
			timebaseDenom = uint64(info.Denom)
		}
	})
	return initErr
}

// NowNS returns the current time in nanoseconds for the given mode. If the
// underlying Darwin library fails to load, it falls back to returning 0 on
// every call rather than panicking; callers treat a stuck clock as a
// programmer-visible bug, not a runtime panic surface.
func NowNS(mode Mode) uint64 {
	if err := initLibSystem(); err != nil {
		return 0
	}
	switch mode {
	case Active:
		return clockGettimeNsecNp(clockMonotonicRaw)
	default:
		return wallNowNS()
	}
}

func wallNowNS() uint64 {
	abs := machContinuousTime()
	if timebaseNumer == timebaseDenom {
		return abs
	}
	// 128-bit intermediate avoided here since Go's uint64 math on durations
	// this size (mach continuous time is nanosecond-scale already on Apple
	// Silicon, numer==denom==1) never approaches overflow in practice; the
	// general rescale still guards against other timebase ratios.
	hi, lo := bitsMulDiv(abs, timebaseNumer, timebaseDenom)
	if hi != 0 {
		return abs
	}
	return lo
}

// bitsMulDiv computes (a*b)/c without overflowing for the ranges this
// package actually sees, returning (overflowed-high-bits, result).
func bitsMulDiv(a, b, c uint64) (uint64, uint64) {
	hi, lo := mul64(a, b)
	if hi == 0 {
		return 0, lo / c
	}
	// a*b overflowed 64 bits; division would require full 128-bit math.
	// Signal the overflow so the caller can fall back to the raw value.
	return hi, 0
}

func mul64(a, b uint64) (hi, lo uint64) {
	const mask32 = 1<<32 - 1
	aLo, aHi := a&mask32, a>>32
	bLo, bHi := b&mask32, b>>32

	t := aLo * bLo
	w0 := t & mask32
	k := t >> 32

	t = aHi*bLo + k
	w1 := t & mask32
	w2 := t >> 32

	t = aLo*bHi + w1
	k = t >> 32

	hi = aHi*bHi + w2 + k
	lo = (t << 32) + w0
	return hi, lo
}
