// Package liquidation computes how much of an under-water account to liquidate. The
// computation is a fold over the account's collateral and debt positions: each step seizes
// discounted collateral against repaid debt until the account reaches the target health, a
// side runs out, or the budget is spent.
package liquidation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/burrowland/liquidator/internal/numeric"
	"github.com/burrowland/liquidator/internal/risk"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance error handling
var (
	ErrHealthUndefined   = errors.New("account health is undefined")
	ErrUnpricedPosition  = errors.New("position has no price")
	ErrInvalidParameters = errors.New("invalid liquidation parameters")
)

var (
	one = decimal.NewFromInt(1)
	two = decimal.NewFromInt(2)
	bps = decimal.NewFromInt(10_000)
)

// TokenAmount is an accumulated ledger amount for one token.
type TokenAmount struct {
	TokenID types.TokenID
	Amount  decimal.Decimal // Ledger-internal units
	Priced  decimal.Decimal
}

// Step records one iteration of the fold.
type Step struct {
	CollateralToken types.TokenID
	BorrowedToken   types.TokenID
	RepaidPriced    decimal.Decimal
	SeizedPriced    decimal.Decimal
	Profit          decimal.Decimal
	HealthAfter     decimal.Decimal
}

// Plan is the result of ComputeLiquidation.
type Plan struct {
	AccountID             string
	Actions               []types.Action
	Liquidation           types.LiquidateAction
	Seized                []TokenAmount // After the safety factor
	Repaid                []TokenAmount // After the safety factor
	Steps                 []Step
	TotalPricedAmount     decimal.Decimal
	TotalPricedProfit     decimal.Decimal
	OrigDiscount          decimal.Decimal
	OrigHealth            decimal.Decimal
	Discount              decimal.Decimal
	Health                decimal.Decimal
	AdjustedCollateralSum decimal.Decimal
	AdjustedBorrowedSum   decimal.Decimal
}

// Empty reports whether the fold found nothing to liquidate.
func (p Plan) Empty() bool {
	return len(p.Steps) == 0
}

// sidePosition is the part of a valued position the fold needs.
type sidePosition struct {
	tokenID    types.TokenID
	volatility decimal.Decimal
	extra      int32
	quote      types.PriceQuote
}

// foldState is the complete loop state. step returns a new value; nothing is shared with the
// previous state.
type foldState struct {
	adjColl       decimal.Decimal
	adjBorr       decimal.Decimal
	health        risk.Health
	collRemaining []decimal.Decimal
	debtRemaining []decimal.Decimal
	ci, bi        int
	total         decimal.Decimal
	profit        decimal.Decimal
	seized        []TokenAmount
	repaid        []TokenAmount
	steps         []Step
	done          bool
}

func (s foldState) clone() foldState {
	c := s
	c.collRemaining = append([]decimal.Decimal(nil), s.collRemaining...)
	c.debtRemaining = append([]decimal.Decimal(nil), s.debtRemaining...)
	c.seized = append([]TokenAmount(nil), s.seized...)
	c.repaid = append([]TokenAmount(nil), s.repaid...)
	c.steps = append([]Step(nil), s.steps...)
	return c
}

func validateParameters(p types.EngineParameters) error {
	switch {
	case !p.MaxLiquidationAmount.IsPositive():
		return fmt.Errorf("%w: max liquidation amount must be positive", ErrInvalidParameters)
	case !p.MaxHealthFactor.IsPositive():
		return fmt.Errorf("%w: max health factor must be positive", ErrInvalidParameters)
	case p.MinPricedBalance.IsNegative():
		return fmt.Errorf("%w: min priced balance must not be negative", ErrInvalidParameters)
	case p.MaxWithdrawCount < 0:
		return fmt.Errorf("%w: max withdraw count must not be negative", ErrInvalidParameters)
	case p.SeizeSafetyBps <= 0 || p.SeizeSafetyBps > 10_000 || p.RepaySafetyBps <= 0 || p.RepaySafetyBps > 10_000:
		return fmt.Errorf("%w: safety factors must be in (0, 10000] bps", ErrInvalidParameters)
	case p.BorrowPadding < 0:
		return fmt.Errorf("%w: borrow padding must not be negative", ErrInvalidParameters)
	}
	return nil
}

// ComputeLiquidation folds over account's positions and returns the liquidation plan. An
// account with nothing to liquidate yields an empty plan and no error.
func ComputeLiquidation(account types.ValuedAccount, params types.EngineParameters) (Plan, error) {
	if err := validateParameters(params); err != nil {
		return Plan{}, err
	}
	if !account.HealthDefined {
		return Plan{}, fmt.Errorf("%w: %s", ErrHealthUndefined, account.AccountID)
	}

	collateral, collPriced, err := sortedSide(account.Collateral)
	if err != nil {
		return Plan{}, fmt.Errorf("account %s collateral: %w", account.AccountID, err)
	}
	borrowed, debtPriced, err := sortedSide(account.Borrowed)
	if err != nil {
		return Plan{}, fmt.Errorf("account %s borrowed: %w", account.AccountID, err)
	}

	state := foldState{
		adjColl:       account.AdjustedCollateralSum.Decimal,
		adjBorr:       account.AdjustedBorrowedSum.Decimal,
		health:        risk.Health{AdjustedDebt: account.AdjustedDebt, HealthFactor: account.HealthFactor, Discount: account.Discount},
		collRemaining: collPriced,
		debtRemaining: debtPriced,
		total:         decimal.Zero,
		profit:        decimal.Zero,
	}

	for !state.done &&
		state.ci < len(collateral) &&
		state.bi < len(borrowed) &&
		state.health.HealthFactor.LessThan(params.MaxHealthFactor) &&
		state.total.LessThan(params.MaxLiquidationAmount) {
		state, err = step(state, collateral, borrowed, params)
		if err != nil {
			return Plan{}, fmt.Errorf("account %s: %w", account.AccountID, err)
		}
	}

	return buildPlan(account, state, params)
}

// sortedSide orders positions by volatility ratio, highest first. Seizing high-ratio
// collateral and repaying high-ratio debt moves the adjusted sums least per dollar.
func sortedSide(positions []types.ValuedPosition) ([]sidePosition, []decimal.Decimal, error) {
	sorted := make([]types.ValuedPosition, len(positions))
	copy(sorted, positions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].VolatilityRatio.GreaterThan(sorted[j].VolatilityRatio)
	})

	side := make([]sidePosition, len(sorted))
	priced := make([]decimal.Decimal, len(sorted))
	for i, p := range sorted {
		if !p.Priced() {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnpricedPosition, p.TokenID)
		}
		if !p.VolatilityRatio.IsPositive() {
			return nil, nil, &numeric.NumericError{Op: "liquidation", Err: numeric.ErrDivisionByZero}
		}
		side[i] = sidePosition{
			tokenID:    p.TokenID,
			volatility: p.VolatilityRatio,
			extra:      p.ExtraDecimals,
			quote:      *p.Price,
		}
		priced[i] = p.PricedBalance.Decimal
	}
	return side, priced, nil
}

// step performs one iteration of the fold.
func step(prev foldState, collateral, borrowed []sidePosition, params types.EngineParameters) (foldState, error) {
	s := prev.clone()

	if s.collRemaining[s.ci].LessThan(params.MinPricedBalance) {
		s.ci++
		return s, nil
	}
	if s.debtRemaining[s.bi].LessThan(params.MinPricedBalance) {
		s.bi++
		return s, nil
	}

	coll := collateral[s.ci]
	debt := borrowed[s.bi]

	discountMul := one.Sub(s.health.Discount)
	if !discountMul.IsPositive() {
		return prev, &numeric.NumericError{Op: "liquidation discount", Err: numeric.ErrDivisionByZero}
	}

	maxPricedAmount := numeric.Min(
		numeric.Min(s.collRemaining[s.ci].Mul(discountMul), s.debtRemaining[s.bi]),
		params.MaxLiquidationAmount.Sub(s.total),
	)

	// Repaying X of debt removes X/debtVol from the adjusted debt and seizes X/discountMul of
	// collateral, removing X*collVol/discountMul from the adjusted collateral. Health reaches
	// the target h when adjColl - X*collVol/dm = h*(adjBorr - X/debtVol).
	// Targeting h = 1 would leave the final step above the MaxHealthFactor ceiling.
	h := params.MaxHealthFactor
	invDebtVol, err := numeric.Div(one, debt.volatility)
	if err != nil {
		return prev, err
	}
	collPerDebt, err := numeric.Div(coll.volatility, discountMul)
	if err != nil {
		return prev, err
	}
	denom := h.Mul(invDebtVol).Sub(collPerDebt)

	healthBound := maxPricedAmount.Mul(two)
	healthBinding := false
	if denom.IsPositive() {
		healthBound, err = numeric.Div(h.Mul(s.adjBorr).Sub(s.adjColl), denom)
		if err != nil {
			return prev, err
		}
		healthBinding = healthBound.LessThanOrEqual(maxPricedAmount)
	}

	pricedAmount := numeric.Min(healthBound, maxPricedAmount)
	if !pricedAmount.IsPositive() {
		// No progress is possible on this pair; drop the side that limits it.
		if s.collRemaining[s.ci].Mul(discountMul).LessThanOrEqual(s.debtRemaining[s.bi]) {
			s.ci++
		} else {
			s.bi++
		}
		return s, nil
	}

	collateralPriced, err := numeric.Div(pricedAmount, discountMul)
	if err != nil {
		return prev, err
	}
	profit := collateralPriced.Sub(pricedAmount)

	collateralAmount, err := risk.AmountForPrice(collateralPriced, coll.quote, coll.extra)
	if err != nil {
		return prev, err
	}
	borrowedAmount, err := risk.AmountForPrice(pricedAmount, debt.quote, debt.extra)
	if err != nil {
		return prev, err
	}

	adjustedCollateral := collateralPriced.Mul(coll.volatility)
	adjustedBorrowed, err := numeric.Div(pricedAmount, debt.volatility)
	if err != nil {
		return prev, err
	}

	s.total = s.total.Add(pricedAmount)
	s.profit = s.profit.Add(profit)
	s.seized = accumulate(s.seized, coll.tokenID, collateralAmount, collateralPriced)
	s.repaid = accumulate(s.repaid, debt.tokenID, borrowedAmount, pricedAmount)
	s.collRemaining[s.ci] = s.collRemaining[s.ci].Sub(collateralPriced)
	s.debtRemaining[s.bi] = s.debtRemaining[s.bi].Sub(pricedAmount)
	s.adjColl = s.adjColl.Sub(adjustedCollateral)
	s.adjBorr = s.adjBorr.Sub(adjustedBorrowed)

	s.health, err = risk.RecomputeHealth(s.adjColl, s.adjBorr)
	if err != nil {
		return prev, err
	}
	s.steps = append(s.steps, Step{
		CollateralToken: coll.tokenID,
		BorrowedToken:   debt.tokenID,
		RepaidPriced:    pricedAmount,
		SeizedPriced:    collateralPriced,
		Profit:          profit,
		HealthAfter:     s.health.HealthFactor,
	})
	// Reaching the target ends the fold even when rounding leaves health a hair below it.
	s.done = healthBinding
	return s, nil
}

// accumulate adds amount to the last entry when it is the same token, else starts a new one.
func accumulate(entries []TokenAmount, token types.TokenID, amount, priced decimal.Decimal) []TokenAmount {
	if n := len(entries); n > 0 && entries[n-1].TokenID == token {
		entries[n-1].Amount = entries[n-1].Amount.Add(amount)
		entries[n-1].Priced = entries[n-1].Priced.Add(priced)
		return entries
	}
	return append(entries, TokenAmount{TokenID: token, Amount: amount, Priced: priced})
}
