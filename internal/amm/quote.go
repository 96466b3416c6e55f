package amm

import (
	"fmt"

	"cosmossdk.io/math"
	"github.com/burrowland/liquidator/internal/numeric"
	"github.com/burrowland/liquidator/internal/types"
)

// pair resolves the token indexes of a quote. ok is false when either token is missing from
// the pool or both are the same token.
func (p *Pool) pair(tokenIn, tokenOut types.TokenID) (in, out int, ok bool) {
	in, out = p.IndexOf(tokenIn), p.IndexOf(tokenOut)
	if in < 0 || out < 0 || tokenIn == tokenOut {
		return -1, -1, false
	}
	return in, out, true
}

func checkAmount(amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return nil
}

// GetReturn quotes how much of tokenOut the pool pays for amountIn of tokenIn. A zero amount
// quotes zero. ok is false when the pool cannot swap the pair.
func (p *Pool) GetReturn(tokenIn types.TokenID, amountIn math.Int, tokenOut types.TokenID) (math.Int, bool, error) {
	if err := checkAmount(amountIn); err != nil {
		return math.ZeroInt(), false, err
	}
	if amountIn.IsZero() {
		return math.ZeroInt(), true, nil
	}
	in, out, ok := p.pair(tokenIn, tokenOut)
	if !ok {
		return math.ZeroInt(), false, nil
	}
	if p.Stable() {
		amount, err := p.stableReturn(in, out, amountIn)
		if err != nil {
			return math.ZeroInt(), false, fmt.Errorf("pool %d: %w", p.ID, err)
		}
		return amount, true, nil
	}

	var m numeric.IntMath
	amountWithFee := m.Mul(amountIn, math.NewIntFromUint64(uint64(FeeDivisor-p.TotalFee)))
	denominator := m.Add(m.Mul(feeDivisor, p.Amounts[in]), amountWithFee)
	amount := m.MulDiv(amountWithFee, p.Amounts[out], denominator)
	if err := m.Err(); err != nil {
		return math.ZeroInt(), false, fmt.Errorf("pool %d: %w", p.ID, err)
	}
	return amount, true, nil
}

// GetInverseReturn quotes how much of tokenIn the pool needs to pay out amountOut of
// tokenOut. The result rounds up, so GetReturn of it is at least amountOut. ok is false when
// the pool cannot swap the pair or cannot pay amountOut.
func (p *Pool) GetInverseReturn(tokenOut types.TokenID, amountOut math.Int, tokenIn types.TokenID) (math.Int, bool, error) {
	if err := checkAmount(amountOut); err != nil {
		return math.ZeroInt(), false, err
	}
	if amountOut.IsZero() {
		return math.ZeroInt(), true, nil
	}
	in, out, ok := p.pair(tokenIn, tokenOut)
	if !ok {
		return math.ZeroInt(), false, nil
	}
	if p.Stable() {
		amount, ok, err := p.stableInverseReturn(in, out, amountOut)
		if err != nil {
			return math.ZeroInt(), false, fmt.Errorf("pool %d: %w", p.ID, err)
		}
		return amount, ok, nil
	}

	balanceOut := p.Amounts[out]
	if amountOut.GTE(balanceOut) {
		return math.ZeroInt(), false, nil
	}
	var m numeric.IntMath
	numerator := m.Mul(m.Mul(feeDivisor, p.Amounts[in]), amountOut)
	denominator := m.Mul(math.NewIntFromUint64(uint64(FeeDivisor-p.TotalFee)), m.Sub(balanceOut, amountOut))
	amount := m.QuoCeil(numerator, denominator)
	if err := m.Err(); err != nil {
		return math.ZeroInt(), false, fmt.Errorf("pool %d: %w", p.ID, err)
	}
	return amount, true, nil
}
