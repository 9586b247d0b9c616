package api

import "testing"

func TestClampEcho(t *testing.T) {
	cases := []struct {
		limit, offset    int
		wantLim, wantOff int
	}{
		{0, 0, 20, 0},
		{500, 5, 20, 5},
		{50, -3, 50, 0},
		{10, 10, 10, 10},
	}
	for _, tc := range cases {
		lim, off := clampEcho(tc.limit, tc.offset)
		if lim != tc.wantLim || off != tc.wantOff {
			t.Errorf("clampEcho(%d, %d) = (%d, %d), want (%d, %d)", tc.limit, tc.offset, lim, off, tc.wantLim, tc.wantOff)
		}
	}
}

func TestMetricsObserveRate(t *testing.T) {
	m := NewMetrics()
	if m.BlocksPerSecond() != 0 {
		t.Fatalf("expected zero rate before any observation")
	}
	m.Observe(100)
	if m.BlocksPerSecond() != 0 {
		t.Fatalf("expected zero rate after first observation (no prior sample)")
	}
	m.RecordRollback()
	m.RecordRejectedOp()
	if m.RollbackCount() != 1 {
		t.Fatalf("RollbackCount() = %d, want 1", m.RollbackCount())
	}
	if m.RejectedOpCount() != 1 {
		t.Fatalf("RejectedOpCount() = %d, want 1", m.RejectedOpCount())
	}
}
