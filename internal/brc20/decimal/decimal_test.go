package decimal

import "testing"

func TestFromDecimalStringScalesCorrectly(t *testing.T) {
	a, err := FromDecimalString("10000", 18)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "10000000000000000000000"
	if a.String() != want {
		t.Errorf("String() = %s, want %s", a.String(), want)
	}
	if a.Display() != "10000.000000000000000000" {
		t.Errorf("Display() = %s", a.Display())
	}
}

func TestFromDecimalStringRejectsExcessFraction(t *testing.T) {
	if _, err := FromDecimalString("1.2345", 2); err == nil {
		t.Error("expected error for excess fractional digits")
	}
}

func TestFromDecimalStringRejectsNegative(t *testing.T) {
	if _, err := FromDecimalString("-5", 2); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestAddSubCmp(t *testing.T) {
	a, _ := FromDecimalString("100", 0)
	b, _ := FromDecimalString("40", 0)
	sum := a.Add(b)
	if sum.String() != "140" {
		t.Errorf("Add = %s, want 140", sum.String())
	}
	diff := a.Sub(b)
	if diff.String() != "60" {
		t.Errorf("Sub = %s, want 60", diff.String())
	}
	if a.Cmp(b) <= 0 {
		t.Error("expected a > b")
	}
}

func TestMin(t *testing.T) {
	a, _ := FromDecimalString("100", 0)
	b, _ := FromDecimalString("40", 0)
	if Min(a, b).String() != "40" {
		t.Errorf("Min = %s, want 40", Min(a, b).String())
	}
}

func TestMismatchedScalesPanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on mismatched scales")
		}
	}()
	a, _ := FromDecimalString("1", 0)
	b, _ := FromDecimalString("1", 2)
	_ = a.Add(b)
}
