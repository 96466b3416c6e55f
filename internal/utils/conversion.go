/*
This file contains the conversions between the ledger's raw fixed-point encodings and the
decimal domain: basis-point ratios, 27-digit rates, nanosecond timestamps and human-readable
token amounts.
*/

package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/burrowland/liquidator/internal/numeric"
	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance error handling
var (
	ErrEmptyValue       = errors.New("value is empty")
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrRatioOutOfRange  = errors.New("ratio is out of range")
	ErrNegativeValue    = errors.New("value is negative")
)

var (
	ratioDenominator = decimal.NewFromInt(10_000)
	rateDenominator  = numeric.Pow10(27)
	nanosPerMilli    = decimal.NewFromInt(1_000_000)
)

// ParseRatio converts a basis-point ratio (10000 = 100%) into a fraction.
func ParseRatio(bps int64) (decimal.Decimal, error) {
	if bps < 0 {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrNegativeValue, bps)
	}
	return numeric.Div(decimal.NewFromInt(bps), ratioDenominator)
}

// ParseUnitRatio is ParseRatio for ratios that must stay within [0, 1], such as volatility
// ratios and utilization targets.
func ParseUnitRatio(bps int64) (decimal.Decimal, error) {
	if bps > 10_000 {
		return decimal.Zero, fmt.Errorf("%w: %d bps", ErrRatioOutOfRange, bps)
	}
	return ParseRatio(bps)
}

// ParseRate converts a 27-digit fixed point rate string into a decimal.
func ParseRate(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrEmptyValue
	}
	v, err := numeric.Parse(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return numeric.Div(v, rateDenominator)
}

// ParseTimestamp converts a nanosecond timestamp string into milliseconds since the epoch.
func ParseTimestamp(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrEmptyValue
	}
	v, err := numeric.Parse(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeValue, raw)
	}
	return numeric.Div(v, nanosPerMilli)
}

// TimestampToTime converts a millisecond decimal into a UTC time.
func TimestampToTime(ms decimal.Decimal) time.Time {
	return time.UnixMilli(ms.IntPart()).UTC()
}

// ParseAmount parses a non-negative integer amount string.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrEmptyValue
	}
	v, err := numeric.Parse(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeValue, raw)
	}
	return v, nil
}

// ScaleDown converts a raw token amount into whole tokens for display, e.g. 1e24 yoctoNEAR
// with 24 decimals becomes 1.
func ScaleDown(amount decimal.Decimal, decimals int) (decimal.Decimal, error) {
	if decimals < 0 || decimals > 77 {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrInvalidPrecision, decimals)
	}
	return numeric.Div(amount, numeric.Pow10(int32(decimals)))
}

// ScaleUp converts whole tokens into the raw smallest unit, rounding down.
func ScaleUp(amount decimal.Decimal, decimals int) (decimal.Decimal, error) {
	if decimals < 0 || decimals > 77 {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrInvalidPrecision, decimals)
	}
	return numeric.Round(amount.Mul(numeric.Pow10(int32(decimals))), 0, numeric.RoundDown)
}
