// Package planner plans the agent's own-account rebalance: after liquidations the agent is
// left with seized collateral and borrowed debt, and each step moves it one action closer
// to holding only wrapped NEAR.
package planner

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/burrowland/liquidator/internal/executor"
	"github.com/burrowland/liquidator/internal/logger"
	"github.com/burrowland/liquidator/internal/numeric"
	"github.com/burrowland/liquidator/internal/router"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidParameters = errors.New("rebalance parameters contain invalid values")
	ErrInvalidContracts  = errors.New("contract ids are missing")
)

// BuyInputCeiling bounds the wrapped NEAR a buy may spend (10^32 yocto).
var BuyInputCeiling = sdkmath.NewIntWithDecimal(1, 32)

// StepKind is the kind of rebalance step.
type StepKind string

const (
	StepRepay           StepKind = "repay"             // Repay debt from a supplied balance of the same token
	StepWithdrawAndSell StepKind = "withdraw_and_sell" // Withdraw a supplied balance and sell it for wrapped NEAR
	StepBuyAndDeposit   StepKind = "buy_and_deposit"   // Buy a borrowed token with wrapped NEAR and deposit it
	StepDone            StepKind = "done"
)

// Step is the next rebalance step.
type Step struct {
	Kind          StepKind
	TokenID       types.TokenID   // Token sold or bought
	Actions       []types.Action  // Lending actions executed directly
	SwapAmount    sdkmath.Int     // Token-native amount to sell or buy
	PricedBalance decimal.Decimal // Priced value of the position that triggered the step
}

// Done reports whether the account needs no more rebalancing.
func (s Step) Done() bool {
	return s.Kind == StepDone
}

// Contracts names the contracts a rebalance step talks to.
type Contracts struct {
	Lending  string
	Exchange string
	WrapNear string
}

func validateParameters(params types.EngineParameters) error {
	if params.MinRepayAmount.IsNegative() || params.MinSwapAmount.IsNegative() {
		return fmt.Errorf("%w: minimum amounts must not be negative", ErrInvalidParameters)
	}
	if params.MaxSlippage.IsNegative() || params.MaxSlippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: max slippage must be in [0, 1)", ErrInvalidParameters)
	}
	return nil
}

func pricedAbove(p types.ValuedPosition, floor decimal.Decimal) bool {
	return p.PricedBalance.Valid && p.PricedBalance.Decimal.GreaterThan(floor)
}

// PlanRebalance returns the next step for the agent's own account, trying in order:
//  1. repay every debt that has a supplied balance of the same token, all in one step;
//  2. withdraw the first supplied balance and sell it;
//  3. buy the first borrowed token and deposit it.
//
// Positions without a price are never acted on.
func PlanRebalance(account types.ValuedAccount, params types.EngineParameters) (Step, error) {
	planLogger := logger.GetForComponent("rebalance_planner")

	if err := validateParameters(params); err != nil {
		planLogger.Error().Err(err).Msg("Parameter validation failed")
		return Step{}, err
	}

	// ===== REPAY FROM SUPPLIED =====
	var repays []types.Action
	for _, b := range account.Borrowed {
		if !pricedAbove(b, params.MinRepayAmount) {
			continue
		}
		for _, s := range account.Supplied {
			if s.TokenID != b.TokenID || !pricedAbove(s, params.MinRepayAmount) {
				continue
			}
			maxAmount, err := numeric.AmountString(s.Balance)
			if err != nil {
				return Step{}, fmt.Errorf("repay %s: %w", b.TokenID, err)
			}
			repays = append(repays, types.Action{Repay: &types.AssetAmount{TokenID: b.TokenID, MaxAmount: maxAmount}})
			planLogger.Info().
				Str("token", b.TokenID).
				Str("debt", b.Balance.String()).
				Str("supplied", s.Balance.String()).
				Msg("Repaying debt from supplied balance")
			break
		}
	}
	if len(repays) > 0 {
		return Step{Kind: StepRepay, Actions: repays}, nil
	}

	// ===== WITHDRAW AND SELL =====
	for _, s := range account.Supplied {
		if !pricedAbove(s, params.MinSwapAmount) {
			continue
		}
		step, err := tokenStep(StepWithdrawAndSell, s)
		if err != nil {
			return Step{}, err
		}
		amount, err := numeric.AmountString(s.Balance)
		if err != nil {
			return Step{}, fmt.Errorf("withdraw %s: %w", s.TokenID, err)
		}
		step.Actions = []types.Action{{Withdraw: &types.AssetAmount{TokenID: s.TokenID, Amount: amount}}}
		logStep(planLogger, step)
		return step, nil
	}

	// ===== BUY AND DEPOSIT =====
	for _, b := range account.Borrowed {
		if !pricedAbove(b, params.MinSwapAmount) {
			continue
		}
		step, err := tokenStep(StepBuyAndDeposit, b)
		if err != nil {
			return Step{}, err
		}
		logStep(planLogger, step)
		return step, nil
	}

	planLogger.Info().Str("account", account.AccountID).Msg("Nothing left to rebalance")
	return Step{Kind: StepDone}, nil
}

func tokenStep(kind StepKind, p types.ValuedPosition) (Step, error) {
	amount, err := numeric.ToAmount(p.TokenBalance)
	if err != nil {
		return Step{}, fmt.Errorf("%s %s: %w", kind, p.TokenID, err)
	}
	return Step{
		Kind:          kind,
		TokenID:       p.TokenID,
		SwapAmount:    amount,
		PricedBalance: p.PricedBalance.Decimal,
	}, nil
}

func logStep(l zerolog.Logger, step Step) {
	l.Info().
		Str("kind", string(step.Kind)).
		Str("token", step.TokenID).
		Str("amount", step.SwapAmount.String()).
		Str("priced", step.PricedBalance.StringFixed(2)).
		Msg("Planned rebalance step")
}

// Calls turns a step into the contract calls that carry it out, in submission order.
// Swaps route through graph; wrapped NEAR itself is never swapped.
func (s Step) Calls(graph *router.Graph, contracts Contracts, maxSlippage decimal.Decimal) ([]types.FunctionCall, error) {
	if contracts.Lending == "" || contracts.Exchange == "" || contracts.WrapNear == "" {
		return nil, ErrInvalidContracts
	}

	switch s.Kind {
	case StepDone:
		return nil, nil

	case StepRepay:
		call, err := executor.ExecuteCall(contracts.Lending, s.Actions)
		if err != nil {
			return nil, err
		}
		return []types.FunctionCall{call}, nil

	case StepWithdrawAndSell:
		withdraw, err := executor.ExecuteCall(contracts.Lending, s.Actions)
		if err != nil {
			return nil, err
		}
		calls := []types.FunctionCall{withdraw}
		if s.TokenID == contracts.WrapNear {
			return calls, nil
		}
		plan, err := graph.FindBestReturn(s.TokenID, contracts.WrapNear, s.SwapAmount)
		if err != nil {
			return nil, fmt.Errorf("sell %s: %w", s.TokenID, err)
		}
		swap, err := router.SwapCall(plan, contracts.Exchange, maxSlippage)
		if err != nil {
			return nil, fmt.Errorf("sell %s: %w", s.TokenID, err)
		}
		return append(calls, swap), nil

	case StepBuyAndDeposit:
		var calls []types.FunctionCall
		if s.TokenID != contracts.WrapNear {
			plan, err := graph.FindBestInverseReturn(contracts.WrapNear, s.TokenID, BuyInputCeiling, s.SwapAmount)
			if err != nil {
				return nil, fmt.Errorf("buy %s: %w", s.TokenID, err)
			}
			swap, err := router.SwapCall(plan, contracts.Exchange, maxSlippage)
			if err != nil {
				return nil, fmt.Errorf("buy %s: %w", s.TokenID, err)
			}
			calls = append(calls, swap)
		}
		deposit, err := executor.DepositCall(s.TokenID, contracts.Lending, s.SwapAmount.String())
		if err != nil {
			return nil, err
		}
		return append(calls, deposit), nil
	}
	return nil, fmt.Errorf("unknown rebalance step %q", s.Kind)
}
