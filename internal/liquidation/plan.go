package liquidation

import (
	"errors"
	"fmt"

	"github.com/burrowland/liquidator/internal/numeric"
	"github.com/burrowland/liquidator/internal/risk"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/shopspring/decimal"
)

// Policy rejection reasons.
var (
	ErrEmptyPlan         = errors.New("nothing to liquidate")
	ErrProfitTooLow      = errors.New("profit below minimum")
	ErrDiscountTooLow    = errors.New("discount below minimum")
	ErrHealthNotImproved = errors.New("health does not improve")
)

// buildPlan applies the safety factors to the fold's ledgers and emits the action list:
// a Borrow per repaid token, the Liquidate action, then at most MaxWithdrawCount withdrawals.
func buildPlan(account types.ValuedAccount, s foldState, params types.EngineParameters) (Plan, error) {
	plan := Plan{
		AccountID:             account.AccountID,
		Steps:                 s.steps,
		TotalPricedAmount:     s.total,
		TotalPricedProfit:     s.profit,
		OrigDiscount:          account.Discount,
		OrigHealth:            account.HealthFactor,
		Discount:              s.health.Discount,
		Health:                s.health.HealthFactor,
		AdjustedCollateralSum: s.adjColl,
		AdjustedBorrowedSum:   s.adjBorr,
	}
	if len(s.steps) == 0 {
		return plan, nil
	}

	seized, err := applySafety(s.seized, params.SeizeSafetyBps)
	if err != nil {
		return Plan{}, err
	}
	repaid, err := applySafety(s.repaid, params.RepaySafetyBps)
	if err != nil {
		return Plan{}, err
	}
	plan.Seized = seized
	plan.Repaid = repaid

	liq := types.LiquidateAction{
		AccountID: account.AccountID,
		InAssets:  make([]types.AssetAmount, 0, len(repaid)),
		OutAssets: make([]types.AssetAmount, 0, len(seized)),
	}
	for _, r := range repaid {
		amount, err := numeric.AmountString(r.Amount)
		if err != nil {
			return Plan{}, fmt.Errorf("repay %s: %w", r.TokenID, err)
		}
		liq.InAssets = append(liq.InAssets, types.AssetAmount{TokenID: r.TokenID, Amount: amount})
	}
	for _, c := range seized {
		amount, err := numeric.AmountString(c.Amount)
		if err != nil {
			return Plan{}, fmt.Errorf("seize %s: %w", c.TokenID, err)
		}
		liq.OutAssets = append(liq.OutAssets, types.AssetAmount{TokenID: c.TokenID, Amount: amount})
	}
	plan.Liquidation = liq

	padding := decimal.NewFromInt(params.BorrowPadding)
	actions := make([]types.Action, 0, len(repaid)+1+params.MaxWithdrawCount)
	for _, r := range repaid {
		amount, err := numeric.AmountString(r.Amount.Add(padding))
		if err != nil {
			return Plan{}, fmt.Errorf("borrow %s: %w", r.TokenID, err)
		}
		actions = append(actions, types.Action{Borrow: &types.AssetAmount{TokenID: r.TokenID, Amount: amount}})
	}
	actions = append(actions, types.Action{Liquidate: &liq})
	for i, out := range liq.OutAssets {
		if i >= params.MaxWithdrawCount {
			break
		}
		actions = append(actions, types.Action{Withdraw: &types.AssetAmount{TokenID: out.TokenID, MaxAmount: out.Amount}})
	}
	plan.Actions = actions
	return plan, nil
}

func applySafety(entries []TokenAmount, safetyBps int64) ([]TokenAmount, error) {
	factor := decimal.NewFromInt(safetyBps)
	out := make([]TokenAmount, len(entries))
	for i, e := range entries {
		amount, err := numeric.QuoInt(e.Amount.Mul(factor), bps, numeric.RoundDown)
		if err != nil {
			return nil, err
		}
		out[i] = TokenAmount{TokenID: e.TokenID, Amount: amount, Priced: e.Priced}
	}
	return out, nil
}

// Evaluate applies the caller policy to a plan. A nil error means the plan is worth
// submitting.
func Evaluate(plan Plan, params types.EngineParameters) error {
	switch {
	case plan.Empty():
		return ErrEmptyPlan
	case plan.TotalPricedProfit.LessThanOrEqual(params.MinProfit):
		return fmt.Errorf("%w: %s <= %s", ErrProfitTooLow, plan.TotalPricedProfit.StringFixed(3), params.MinProfit)
	case plan.OrigDiscount.LessThanOrEqual(params.MinDiscount):
		return fmt.Errorf("%w: %s <= %s", ErrDiscountTooLow, plan.OrigDiscount.StringFixed(4), params.MinDiscount)
	case plan.OrigHealth.GreaterThanOrEqual(plan.Health):
		return fmt.Errorf("%w: %s -> %s", ErrHealthNotImproved, plan.OrigHealth.StringFixed(4), plan.Health.StringFixed(4))
	}
	return nil
}

// ExecuteMsg wraps the plan's actions in the lending contract's Execute message.
func (p Plan) ExecuteMsg() types.ExecuteMsg {
	return types.ExecuteMsg{Execute: types.ExecuteActions{Actions: p.Actions}}
}

// ApplyPlan returns the account as it would look after the plan's steps: seized collateral
// and repaid debt are removed at their priced values and the risk scalars recomputed.
func ApplyPlan(account types.ValuedAccount, plan Plan) (types.ValuedAccount, error) {
	post := account
	post.Collateral = append([]types.ValuedPosition(nil), account.Collateral...)
	post.Borrowed = append([]types.ValuedPosition(nil), account.Borrowed...)

	for _, st := range plan.Steps {
		if err := reducePosition(post.Collateral, st.CollateralToken, st.SeizedPriced); err != nil {
			return types.ValuedAccount{}, err
		}
		if err := reducePosition(post.Borrowed, st.BorrowedToken, st.RepaidPriced); err != nil {
			return types.ValuedAccount{}, err
		}
	}

	post.CollateralSum = sumOf(post.Collateral, false)
	post.BorrowedSum = sumOf(post.Borrowed, false)
	post.AdjustedCollateralSum = sumOf(post.Collateral, true)
	post.AdjustedBorrowedSum = sumOf(post.Borrowed, true)
	if !post.AdjustedCollateralSum.Valid || !post.AdjustedBorrowedSum.Valid {
		return types.ValuedAccount{}, fmt.Errorf("%w: %s", ErrHealthUndefined, account.AccountID)
	}
	h, err := risk.RecomputeHealth(post.AdjustedCollateralSum.Decimal, post.AdjustedBorrowedSum.Decimal)
	if err != nil {
		return types.ValuedAccount{}, err
	}
	post.AdjustedDebt = h.AdjustedDebt
	post.HealthFactor = h.HealthFactor
	post.Discount = h.Discount
	post.HealthDefined = true
	return post, nil
}

func reducePosition(positions []types.ValuedPosition, token types.TokenID, priced decimal.Decimal) error {
	for i, p := range positions {
		if p.TokenID != token {
			continue
		}
		if !p.Priced() {
			return fmt.Errorf("%w: %s", ErrUnpricedPosition, token)
		}
		remaining := p.PricedBalance.Decimal.Sub(priced)
		adjusted, err := risk.Adjust(remaining, p.VolatilityRatio, p.Kind)
		if err != nil {
			return err
		}
		positions[i].PricedBalance = numeric.Known(remaining)
		positions[i].AdjustedPricedBalance = numeric.Known(adjusted)
		return nil
	}
	return fmt.Errorf("%w: %s is not a position of the account", ErrInvalidParameters, token)
}

func sumOf(positions []types.ValuedPosition, adjusted bool) decimal.NullDecimal {
	values := make([]decimal.NullDecimal, len(positions))
	for i, p := range positions {
		if adjusted {
			values[i] = p.AdjustedPricedBalance
		} else {
			values[i] = p.PricedBalance
		}
	}
	return numeric.SumNullable(values...)
}
