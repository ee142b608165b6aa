package throttle

import "testing"

func TestStateSuspendedInitiallyFalse(t *testing.T) {
	s := &State{pid: 1, percent: 50}
	if s.Suspended() {
		t.Error("new State should not be suspended")
	}
}

func TestResumeNoopWhenNotSuspended(t *testing.T) {
	s := &State{pid: 1, percent: 50}
	if err := s.Resume(); err != nil {
		t.Errorf("Resume() on non-suspended state should be a no-op, got %v", err)
	}
}

func TestBudgetComparisonArithmetic(t *testing.T) {
	s := &State{pid: 1, percent: 50, startWallNS: 0, startCPUNS: 0}
	elapsedWallNS := uint64(1_000_000_000) // 1s elapsed
	budgetNS := (elapsedWallNS * s.percent) / 100
	if budgetNS != 500_000_000 {
		t.Errorf("budget = %d, want 500000000 (50%% of 1s)", budgetNS)
	}
}
