// Package risk values lending accounts the way the lending contract does: shares are converted
// through the pool exchange rate with the contract's rounding, priced with the oracle, and
// weighted by each asset's volatility ratio. From the weighted sums it derives the health
// factor and the liquidation discount.
package risk

import (
	"errors"
	"fmt"

	"github.com/burrowland/liquidator/internal/numeric"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownAsset = errors.New("position references an unknown asset")
	ErrUnpriced     = errors.New("account has unpriced positions")
)

// HealthSentinel is the health factor of an account without debt.
var HealthSentinel = decimal.NewFromInt(1_000_000_000)

var two = decimal.NewFromInt(2)

// ValueAccount converts every position of account and derives its risk scalars. An unpriced
// position is not an error: it makes its side's sums unknown and leaves HealthDefined false.
func ValueAccount(account types.Account, assets types.Assets, prices types.PriceData) (types.ValuedAccount, error) {
	collateral, err := valuePositions(account.Collateral, types.PositionCollateral, assets, prices)
	if err != nil {
		return types.ValuedAccount{}, fmt.Errorf("account %s: %w", account.AccountID, err)
	}
	borrowed, err := valuePositions(account.Borrowed, types.PositionBorrowed, assets, prices)
	if err != nil {
		return types.ValuedAccount{}, fmt.Errorf("account %s: %w", account.AccountID, err)
	}
	supplied, err := valuePositions(account.Supplied, types.PositionSupplied, assets, prices)
	if err != nil {
		return types.ValuedAccount{}, fmt.Errorf("account %s: %w", account.AccountID, err)
	}

	va := types.ValuedAccount{
		AccountID:             account.AccountID,
		Collateral:            collateral,
		Borrowed:              borrowed,
		Supplied:              supplied,
		CollateralSum:         pricedSum(collateral),
		BorrowedSum:           pricedSum(borrowed),
		AdjustedCollateralSum: adjustedSum(collateral),
		AdjustedBorrowedSum:   adjustedSum(borrowed),
	}

	if va.AdjustedCollateralSum.Valid && va.AdjustedBorrowedSum.Valid {
		h, err := RecomputeHealth(va.AdjustedCollateralSum.Decimal, va.AdjustedBorrowedSum.Decimal)
		if err != nil {
			return types.ValuedAccount{}, fmt.Errorf("account %s: %w", account.AccountID, err)
		}
		va.AdjustedDebt = h.AdjustedDebt
		va.HealthFactor = h.HealthFactor
		va.Discount = h.Discount
		va.HealthDefined = true
	}
	return va, nil
}

// Health is the set of scalars derived from the two adjusted sums.
type Health struct {
	AdjustedDebt decimal.Decimal
	HealthFactor decimal.Decimal
	Discount     decimal.Decimal
}

// RecomputeHealth derives adjusted debt, health factor and discount from the adjusted sums.
func RecomputeHealth(adjustedCollateral, adjustedBorrowed decimal.Decimal) (Health, error) {
	h := Health{
		AdjustedDebt: adjustedBorrowed.Sub(adjustedCollateral),
		HealthFactor: HealthSentinel,
		Discount:     decimal.Zero,
	}
	if !adjustedBorrowed.IsPositive() {
		return h, nil
	}

	hf, err := numeric.Div(adjustedCollateral, adjustedBorrowed)
	if err != nil {
		return Health{}, err
	}
	h.HealthFactor = hf

	if h.AdjustedDebt.IsPositive() {
		ratio, err := numeric.Div(h.AdjustedDebt, adjustedBorrowed)
		if err != nil {
			return Health{}, err
		}
		h.Discount = numeric.MustDiv(ratio, two)
	}
	return h, nil
}

func valuePositions(positions []types.Position, kind types.PositionKind, assets types.Assets, prices types.PriceData) ([]types.ValuedPosition, error) {
	out := make([]types.ValuedPosition, 0, len(positions))
	for _, p := range positions {
		vp, err := ValuePosition(p, kind, assets, prices)
		if err != nil {
			return nil, err
		}
		out = append(out, vp)
	}
	return out, nil
}

// ValuePosition converts one position. Supplied-side balances round down and debt rounds up,
// so the account is never credited more than the contract would credit it.
func ValuePosition(p types.Position, kind types.PositionKind, assets types.Assets, prices types.PriceData) (types.ValuedPosition, error) {
	asset, ok := assets[p.TokenID]
	if !ok {
		return types.ValuedPosition{}, fmt.Errorf("%w: %s", ErrUnknownAsset, p.TokenID)
	}

	pool := asset.Borrowed
	mode := numeric.RoundUp
	if kind.SuppliedSide() {
		pool = asset.Supplied
		mode = numeric.RoundDown
	}

	balance := decimal.Zero
	if pool.Shares.IsPositive() {
		var err error
		balance, err = numeric.QuoInt(pool.Balance.Mul(p.Shares), pool.Shares, mode)
		if err != nil {
			return types.ValuedPosition{}, err
		}
	}

	extra := asset.Config.ExtraDecimals
	tokenBalance, err := numeric.QuoInt(balance, numeric.Pow10(extra), mode)
	if err != nil {
		return types.ValuedPosition{}, err
	}

	vp := types.ValuedPosition{
		TokenID:               p.TokenID,
		Kind:                  kind,
		Shares:                p.Shares,
		Balance:               balance,
		TokenBalance:          tokenBalance,
		PricedBalance:         numeric.Unknown(),
		AdjustedPricedBalance: numeric.Unknown(),
		VolatilityRatio:       asset.Config.VolatilityRatio,
		ExtraDecimals:         extra,
	}

	quote, ok := prices.Quote(p.TokenID)
	if !ok {
		return vp, nil
	}
	priced, err := PriceAmount(balance, quote, extra)
	if err != nil {
		return types.ValuedPosition{}, err
	}
	adjusted, err := Adjust(priced, asset.Config.VolatilityRatio, kind)
	if err != nil {
		return types.ValuedPosition{}, err
	}
	vp.Price = &quote
	vp.PricedBalance = numeric.Known(priced)
	vp.AdjustedPricedBalance = numeric.Known(adjusted)
	return vp, nil
}

// PriceAmount values a ledger-internal balance: balance * multiplier / 10^(decimals+extra).
func PriceAmount(balance decimal.Decimal, quote types.PriceQuote, extraDecimals int32) (decimal.Decimal, error) {
	return numeric.Div(balance.Mul(quote.Multiplier), numeric.Pow10(quote.Decimals+extraDecimals))
}

// AmountForPrice is the inverse of PriceAmount, rounded down to a ledger amount.
func AmountForPrice(priced decimal.Decimal, quote types.PriceQuote, extraDecimals int32) (decimal.Decimal, error) {
	return numeric.QuoInt(priced.Mul(numeric.Pow10(quote.Decimals+extraDecimals)), quote.Multiplier, numeric.RoundDown)
}

// Adjust applies the volatility weight: collateral counts for less, debt for more.
func Adjust(priced, volatilityRatio decimal.Decimal, kind types.PositionKind) (decimal.Decimal, error) {
	if kind.SuppliedSide() {
		return priced.Mul(volatilityRatio), nil
	}
	return numeric.Div(priced, volatilityRatio)
}

func pricedSum(positions []types.ValuedPosition) decimal.NullDecimal {
	values := make([]decimal.NullDecimal, len(positions))
	for i, p := range positions {
		values[i] = p.PricedBalance
	}
	return numeric.SumNullable(values...)
}

func adjustedSum(positions []types.ValuedPosition) decimal.NullDecimal {
	values := make([]decimal.NullDecimal, len(positions))
	for i, p := range positions {
		values[i] = p.AdjustedPricedBalance
	}
	return numeric.SumNullable(values...)
}
