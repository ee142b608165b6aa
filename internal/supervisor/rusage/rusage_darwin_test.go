package rusage

import (
	"os"
	"testing"
)

func TestReadU64(t *testing.T) {
	var buf [rusageBufferSize]byte
	buf[offsetUserTime] = 0x01
	buf[offsetUserTime+1] = 0x02
	if got := readU64(&buf, offsetUserTime); got != 0x0201 {
		t.Errorf("readU64 = %#x, want 0x201", got)
	}
}

func TestSampleSelf(t *testing.T) {
	stats, err := Sample(os.Getpid())
	if err != nil {
		t.Skipf("proc_pid_rusage unavailable in this environment: %v", err)
	}
	if stats.MemoryBytes == 0 {
		t.Error("expected nonzero memory footprint for self")
	}
}
