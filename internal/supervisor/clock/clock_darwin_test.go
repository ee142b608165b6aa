package clock

import "testing"

func TestModeString(t *testing.T) {
	cases := []struct {
		mode Mode
		want string
	}{
		{Wall, "wall"},
		{Active, "active"},
	}
	for _, tc := range cases {
		if got := tc.mode.String(); got != tc.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tc.mode, got, tc.want)
		}
	}
}

func TestNowNSMonotonic(t *testing.T) {
	for _, mode := range []Mode{Wall, Active} {
		first := NowNS(mode)
		second := NowNS(mode)
		if second < first {
			t.Errorf("%s clock went backwards: %d then %d", mode, first, second)
		}
	}
}

func TestMul64NoOverflow(t *testing.T) {
	hi, lo := mul64(1000, 1000)
	if hi != 0 || lo != 1_000_000 {
		t.Errorf("mul64(1000,1000) = (%d,%d), want (0,1000000)", hi, lo)
	}
}
