// Package rusage reads a process's memory footprint and cumulative CPU
// time via libproc's proc_pid_rusage, the same Darwin entry point
// proc_info.rs calls through a raw extern "C" block. Here it is called
// through purego (no cgo), following the dlopen-then-call pattern
// tmc/macgo uses for AppKit/Foundation in internal/launch/singleprocess.go
// and uimode_darwin.go.
package rusage

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/go-procwatch/procwatch/internal/supervisor/supervisorerr"
)

const (
	rusageBufferSize = 512 // oversized: v4 needs ~304 bytes; room for v5/v6
	rusageInfoV4      = 4

	offsetUserTime      = 16
	offsetSystemTime    = 24
	offsetPhysFootprint = 72
)

var (
	procPidRusage func(pid int32, flavor int32, buf unsafe.Pointer) int32
	initOnce      sync.Once
	initErr       error
)

func initLibSystem() error {
	initOnce.Do(func() {
		handle, err := purego.Dlopen("/usr/lib/libSystem.B.dylib", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			initErr = fmt.Errorf("rusage: dlopen libSystem: %w", err)
			return
		}
		purego.RegisterLibFunc(&procPidRusage, handle, "proc_pid_rusage")
	})
	return initErr
}

// Stats is a single resource-usage sample.
type Stats struct {
	MemoryBytes uint64
	CPUTimeNS   uint64
}

// Sample reads the current memory footprint and cumulative CPU time
// (user+system) for pid, mirroring proc_info.rs's get_process_stats.
func Sample(pid int) (Stats, error) {
	if err := initLibSystem(); err != nil {
		return Stats{}, supervisorerr.New("read rusage", supervisorerr.KindInternal, err)
	}

	// 8-byte aligned buffer: the kernel writes uint64 fields into it and
	// misaligned writes can fault on strict configurations, matching
	// proc_info.rs's #[repr(C, align(8))] AlignedBuffer wrapper.
	var aligned struct {
		_   [0]uint64
		buf [rusageBufferSize]byte
	}

	ret := procPidRusage(int32(pid), rusageInfoV4, unsafe.Pointer(&aligned.buf[0]))
	if ret < 0 {
		return Stats{}, supervisorerr.New("read rusage",
			supervisorerr.KindInternal, fmt.Errorf("proc_pid_rusage failed for pid %d", pid))
	}

	return Stats{
		MemoryBytes: readU64(&aligned.buf, offsetPhysFootprint),
		CPUTimeNS:   readU64(&aligned.buf, offsetUserTime) + readU64(&aligned.buf, offsetSystemTime),
	}, nil
}

func readU64(buf *[rusageBufferSize]byte, offset int) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(buf[offset+i]) << (8 * i)
	}
	return v
}
