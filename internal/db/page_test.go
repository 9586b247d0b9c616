package db

import "testing"

func TestPageBounds(t *testing.T) {
	cases := []struct {
		limit, offset    int
		wantLim, wantOff int
	}{
		{0, 0, 20, 0},
		{300, 5, 20, 5},
		{50, -1, 50, 0},
		{100, 100, 100, 100},
	}
	for _, tc := range cases {
		lim, off := pageBounds(tc.limit, tc.offset)
		if lim != tc.wantLim || off != tc.wantOff {
			t.Errorf("pageBounds(%d, %d) = (%d, %d), want (%d, %d)", tc.limit, tc.offset, lim, off, tc.wantLim, tc.wantOff)
		}
	}
}

func TestClampPage(t *testing.T) {
	lim, off := clampPage(0, -5)
	if lim != 20 || off != 0 {
		t.Errorf("clampPage(0, -5) = (%d, %d), want (20, 0)", lim, off)
	}
	lim, off = clampPage(150, 10)
	if lim != 20 || off != 10 {
		t.Errorf("clampPage(150, 10) = (%d, %d), want (20, 10)", lim, off)
	}
}
