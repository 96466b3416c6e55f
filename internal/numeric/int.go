package numeric

import (
	sdkmath "cosmossdk.io/math"
)

// IntMath chains checked 256-bit integer operations. The first failure sticks: later calls
// return zero and Err reports the first NumericError. All quotients truncate toward zero,
// matching the on-chain integer division the AMM contracts perform.
type IntMath struct {
	err error
}

// Err returns the first failure recorded by the chain, if any.
func (m *IntMath) Err() error {
	return m.err
}

func (m *IntMath) fail(op string, err error) sdkmath.Int {
	if m.err == nil {
		m.err = numericErr(op, err)
	}
	return sdkmath.ZeroInt()
}

func (m *IntMath) Add(a, b sdkmath.Int) sdkmath.Int {
	if m.err != nil {
		return sdkmath.ZeroInt()
	}
	r, err := a.SafeAdd(b)
	if err != nil {
		return m.fail("add", ErrOverflow)
	}
	return r
}

func (m *IntMath) Sub(a, b sdkmath.Int) sdkmath.Int {
	if m.err != nil {
		return sdkmath.ZeroInt()
	}
	r, err := a.SafeSub(b)
	if err != nil {
		return m.fail("sub", ErrOverflow)
	}
	return r
}

func (m *IntMath) Mul(a, b sdkmath.Int) sdkmath.Int {
	if m.err != nil {
		return sdkmath.ZeroInt()
	}
	r, err := a.SafeMul(b)
	if err != nil {
		return m.fail("mul", ErrOverflow)
	}
	return r
}

// Quo is truncated integer division.
func (m *IntMath) Quo(a, b sdkmath.Int) sdkmath.Int {
	if m.err != nil {
		return sdkmath.ZeroInt()
	}
	if b.IsZero() {
		return m.fail("quo", ErrDivisionByZero)
	}
	return a.Quo(b)
}

// QuoCeil divides two non-negative integers rounding up.
func (m *IntMath) QuoCeil(a, b sdkmath.Int) sdkmath.Int {
	q := m.Quo(a, b)
	if m.err != nil {
		return q
	}
	if !a.Mod(b).IsZero() {
		return m.Add(q, sdkmath.OneInt())
	}
	return q
}

// MulDiv computes a*b/c truncated.
func (m *IntMath) MulDiv(a, b, c sdkmath.Int) sdkmath.Int {
	return m.Quo(m.Mul(a, b), c)
}

// Pow10Int returns 10^n for n >= 0 as a ledger integer.
func Pow10Int(n int) sdkmath.Int {
	if n <= 0 {
		return sdkmath.OneInt()
	}
	return sdkmath.NewIntWithDecimal(1, n)
}

// AbsDiff returns |a-b|.
func AbsDiff(a, b sdkmath.Int) sdkmath.Int {
	if a.GTE(b) {
		return a.Sub(b)
	}
	return b.Sub(a)
}
