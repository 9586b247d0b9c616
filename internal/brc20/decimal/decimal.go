// Package decimal implements exact fixed-point integers scaled by a
// per-token decimals count. Spec §9 flags the upstream "string-typed big
// numbers" pattern for re-architecture: every BRC-20 amount (max, limit,
// minted_supply, balances) must be an exact integer, never a binary float.
package decimal

import (
	"fmt"
	"math/big"
)

// MaxDecimals is the highest decimals value a BRC-20 token may declare.
const MaxDecimals = 18

// Amount is an exact integer scaled by 10^Decimals. Two Amounts are only
// comparable/combinable when they share the same Decimals; callers within
// this codebase always derive Amounts for the same ticker, which fixes the
// scale for the lifetime of that token.
type Amount struct {
	scaled   *big.Int
	decimals int
}

// Zero returns the zero amount at the given decimals.
func Zero(decimals int) Amount {
	return Amount{scaled: big.NewInt(0), decimals: decimals}
}

// FromScaledString parses an already-scaled integer string (the wire
// representation used by the operation log and balances tables).
func FromScaledString(s string, decimals int) (Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid integer amount %q", s)
	}
	if v.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount %q must not be negative", s)
	}
	return Amount{scaled: v, decimals: decimals}, nil
}

// FromDecimalString parses a human-entered decimal string (e.g. the
// "amt" field of an inscribed BRC-20 operation) into an Amount scaled by
// `decimals`. Rejects values with more fractional digits than `decimals`
// allows, and rejects non-integer/negative input.
func FromDecimalString(s string, decimals int) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("empty amount")
	}
	whole, frac, hasFrac := cutDecimalPoint(s)
	if hasFrac && len(frac) > decimals {
		return Amount{}, fmt.Errorf("amount %q has more fractional digits than decimals=%d allows", s, decimals)
	}
	for len(frac) < decimals {
		frac += "0"
	}
	digits := whole + frac
	if digits == "" {
		digits = "0"
	}
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount %q must not be negative", s)
	}
	return Amount{scaled: v, decimals: decimals}, nil
}

func cutDecimalPoint(s string) (whole, frac string, hasFrac bool) {
	for i, c := range s {
		if c == '.' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.scaled == nil || a.scaled.Sign() == 0 }

// Sign returns -1, 0, or 1.
func (a Amount) Sign() int {
	if a.scaled == nil {
		return 0
	}
	return a.scaled.Sign()
}

// Decimals returns the scale this amount is denominated in.
func (a Amount) Decimals() int { return a.decimals }

// Add returns a + b. Panics if decimals differ — a programmer error, never
// a user-input condition, since both operands always belong to one ticker.
func (a Amount) Add(b Amount) Amount {
	a.mustMatch(b)
	return Amount{scaled: new(big.Int).Add(a.scaled, b.scaled), decimals: a.decimals}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	a.mustMatch(b)
	return Amount{scaled: new(big.Int).Sub(a.scaled, b.scaled), decimals: a.decimals}
}

// Cmp returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func (a Amount) Cmp(b Amount) int {
	a.mustMatch(b)
	return a.scaled.Cmp(b.scaled)
}

// Min returns the lesser of a and b.
func Min(a, b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func (a Amount) mustMatch(b Amount) {
	if a.decimals != b.decimals {
		panic(fmt.Sprintf("decimal: mismatched scales %d vs %d", a.decimals, b.decimals))
	}
}

// String renders the amount as a scaled-integer wire string.
func (a Amount) String() string {
	if a.scaled == nil {
		return "0"
	}
	return a.scaled.String()
}

// Display renders the amount as a human decimal string (e.g. "1000.5").
func (a Amount) Display() string {
	if a.scaled == nil {
		return "0"
	}
	s := a.scaled.String()
	if a.decimals == 0 {
		return s
	}
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for len(s) <= a.decimals {
		s = "0" + s
	}
	whole := s[:len(s)-a.decimals]
	frac := s[len(s)-a.decimals:]
	out := whole + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
