package childstatus

import "testing"

func TestNormalExit(t *testing.T) {
	// exit code 42: (42 << 8) | 0
	s := FromRaw(42 << 8)
	code, ok := s.Code()
	if !ok || code != 42 {
		t.Errorf("Code() = %d, %v; want 42, true", code, ok)
	}
	if _, ok := s.Signal(); ok {
		t.Error("Signal() should not be ok for normal exit")
	}
}

func TestSignaled(t *testing.T) {
	// terminated by SIGTERM (15): low 7 bits = 15, no core dump bit
	s := FromRaw(15)
	sig, ok := s.Signal()
	if !ok || sig != 15 {
		t.Errorf("Signal() = %d, %v; want 15, true", sig, ok)
	}
	if _, ok := s.Code(); ok {
		t.Error("Code() should not be ok for signaled exit")
	}
}
