// Package numeric is the arithmetic substrate of the engine: exact decimals with an explicit
// rounding mode at every lossy call site, and checked 256-bit integers for on-chain math.
package numeric

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// Precision is the number of fractional digits kept by default divisions. It matches the
// 27-digit fixed point the ledger uses for rates.
const Precision int32 = 27

// RoundingMode selects how a lossy operation discards digits.
type RoundingMode int

const (
	// RoundDown truncates toward zero.
	RoundDown RoundingMode = iota
	// RoundHalfUp rounds to nearest, ties away from zero.
	RoundHalfUp
	// RoundHalfEven rounds to nearest, ties to the even neighbour.
	RoundHalfEven
	// RoundUp rounds away from zero.
	RoundUp
)

func (m RoundingMode) String() string {
	switch m {
	case RoundDown:
		return "down"
	case RoundHalfUp:
		return "half_up"
	case RoundHalfEven:
		return "half_even"
	case RoundUp:
		return "up"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

var (
	ErrDivisionByZero   = errors.New("division by zero")
	ErrPrecisionLoss    = errors.New("value is not an integer")
	ErrNegativeAmount   = errors.New("amount is negative")
	ErrOverflow         = errors.New("integer overflow")
	ErrUnknownRoundMode = errors.New("unknown rounding mode")
	ErrInvalidNumber    = errors.New("invalid number")
)

// NumericError reports an arithmetic failure. It is always fatal to the computation that
// produced it.
type NumericError struct {
	Op  string
	Err error
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("numeric %s: %v", e.Op, e.Err)
}

func (e *NumericError) Unwrap() error { return e.Err }

func numericErr(op string, err error) error {
	return &NumericError{Op: op, Err: err}
}

var (
	zero = decimal.Zero
	two  = decimal.NewFromInt(2)
)

// Pow10 returns 10^n as an exact decimal. n may be negative.
func Pow10(n int32) decimal.Decimal {
	return decimal.New(1, n)
}

// Parse reads an exact decimal from its string form.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return zero, numericErr("parse", fmt.Errorf("%w: %q", ErrInvalidNumber, s))
	}
	return d, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Round rounds d to the given number of fractional digits.
func Round(d decimal.Decimal, places int32, mode RoundingMode) (decimal.Decimal, error) {
	switch mode {
	case RoundDown:
		return d.RoundDown(places), nil
	case RoundUp:
		return d.RoundUp(places), nil
	case RoundHalfUp:
		return d.Round(places), nil
	case RoundHalfEven:
		return d.RoundBank(places), nil
	default:
		return zero, numericErr("round", fmt.Errorf("%w: %s", ErrUnknownRoundMode, mode))
	}
}

// Quo divides a by b keeping places fractional digits, rounding the discarded remainder
// according to mode.
func Quo(a, b decimal.Decimal, places int32, mode RoundingMode) (decimal.Decimal, error) {
	if b.IsZero() {
		return zero, numericErr("quo", ErrDivisionByZero)
	}
	q, r := a.QuoRem(b, places)
	if r.IsZero() {
		return q, nil
	}

	ulp := Pow10(-places)
	negative := a.Sign()*b.Sign() < 0
	bump := false

	switch mode {
	case RoundDown:
	case RoundUp:
		bump = true
	case RoundHalfUp, RoundHalfEven:
		// compare 2|r| against |b|*ulp
		cmp := r.Abs().Mul(two).Cmp(b.Abs().Mul(ulp))
		switch {
		case cmp > 0:
			bump = true
		case cmp == 0:
			bump = mode == RoundHalfUp || isOddAt(q, places)
		}
	default:
		return zero, numericErr("quo", fmt.Errorf("%w: %s", ErrUnknownRoundMode, mode))
	}

	if !bump {
		return q, nil
	}
	if negative {
		return q.Sub(ulp), nil
	}
	return q.Add(ulp), nil
}

// Div divides at the default precision, truncating.
func Div(a, b decimal.Decimal) (decimal.Decimal, error) {
	return Quo(a, b, Precision, RoundDown)
}

// MustDiv is Div for divisors already known to be non-zero.
func MustDiv(a, b decimal.Decimal) decimal.Decimal {
	q, err := Div(a, b)
	if err != nil {
		panic(err)
	}
	return q
}

// QuoInt divides and rounds to an integer.
func QuoInt(a, b decimal.Decimal, mode RoundingMode) (decimal.Decimal, error) {
	return Quo(a, b, 0, mode)
}

func isOddAt(q decimal.Decimal, places int32) bool {
	return q.Shift(places).BigInt().Bit(0) == 1
}

// Min returns the smaller of a and b, preferring a on ties.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if b.LessThan(a) {
		return b
	}
	return a
}

// ToAmount converts an integral, non-negative decimal into a ledger amount. Anything else
// crossing the boundary is a defect and is reported as a NumericError.
func ToAmount(d decimal.Decimal) (sdkmath.Int, error) {
	if d.IsNegative() {
		return sdkmath.ZeroInt(), numericErr("to_amount", fmt.Errorf("%w: %s", ErrNegativeAmount, d.String()))
	}
	if !d.IsInteger() {
		return sdkmath.ZeroInt(), numericErr("to_amount", fmt.Errorf("%w: %s", ErrPrecisionLoss, d.String()))
	}
	bi := d.BigInt()
	if bi.BitLen() > sdkmath.MaxBitLen {
		return sdkmath.ZeroInt(), numericErr("to_amount", ErrOverflow)
	}
	return sdkmath.NewIntFromBigInt(bi), nil
}

// AmountString formats d as an integer string in the token's smallest unit.
func AmountString(d decimal.Decimal) (string, error) {
	amt, err := ToAmount(d)
	if err != nil {
		return "", err
	}
	return amt.String(), nil
}

// FromAmount lifts a ledger integer into the decimal domain.
func FromAmount(i sdkmath.Int) decimal.Decimal {
	if i.IsNil() {
		return zero
	}
	return decimal.NewFromBigInt(new(big.Int).Set(i.BigInt()), 0)
}
