package rlimit

import "testing"

func TestIsEmpty(t *testing.T) {
	var l Limits
	if !l.IsEmpty() {
		t.Error("zero-value Limits should be empty")
	}
	mem := uint64(1024)
	l.MemBytes = &mem
	if l.IsEmpty() {
		t.Error("Limits with MemBytes set should not be empty")
	}
}
