/*

This file contains the default parameters for the liquidator.

Each value mirrors what the lending contract itself tolerates: the fold targets a health factor
just below the contract's own bound, and the safety factors absorb the share rounding that can
happen between the snapshot and the block the transaction lands in.

*/

package config

import (
	"github.com/burrowland/liquidator/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	DEFAULT_PARAMETERS_CONFIG_NAME    = "default"
	DEFAULT_PARAMETERS_CONFIG_VERSION = 1
)

// DefaultEngineParameters provides a baseline set of parameters for the liquidation and
// rebalance cycles. These values are used if no active parameters are found in the database
// and no environment override is set.
var DefaultEngineParameters = types.EngineParameters{
	// --- Liquidation engine ---
	MaxLiquidationAmount: decimal.NewFromInt(20000), // Repay at most $20k of debt per plan.
	// Rationale: Large plans need large borrows and move the swap market on the way out.
	// Several smaller liquidations of the same account are cheaper than one that fails.

	MaxWithdrawCount: 0, // Leave seized collateral supplied by default.
	// Rationale: Seized collateral keeps the agent's own account healthy. The rebalance
	// loop withdraws and sells it when it is no longer needed.

	MinPricedBalance: decimal.RequireFromString("0.01"), // One cent dust floor.
	// Rationale: Positions below a cent cannot pay for the gas of touching them.

	MaxHealthFactor: decimal.RequireFromString("0.995"), // Stop just under 100% health.
	// Rationale: The contract rejects a liquidation that leaves the account healthier than it
	// allows. Aiming at 99.5% keeps rounding drift on the accepted side.

	BorrowPadding: 1000, // Borrow 1000 extra units of each repaid token.
	// Rationale: Covers the debt shares rounding up between the snapshot and execution.

	SeizeSafetyBps: 9989, // Seize 99.89% of the computed collateral.
	RepaySafetyBps: 9990, // Repay 99.90% of the computed debt.
	// Rationale: Seizing slightly less than the discount allows, relative to the repay, keeps
	// the contract's discount check satisfied when balances drift by a share.

	// --- Caller policy ---
	MinProfit: decimal.NewFromInt(1), // Only liquidate for at least $1 of profit.
	// Rationale: Below a dollar the gas of the liquidation and the follow-up swaps eats the gain.

	MinDiscount: decimal.RequireFromString("0.025"), // Only liquidate at 2.5% discount or more.
	// Rationale: Shallow discounts are competed away and leave no margin for price movement.

	// --- Rebalance / swaps ---
	MinSwapAmount: decimal.RequireFromString("0.1"), // Ignore positions under $0.10.
	// Rationale: Swaps below ten cents lose more to fees and rounding than they recover.

	MinRepayAmount: decimal.RequireFromString("0.5"), // Repay when both sides exceed $0.50.
	// Rationale: Repaying from a matching deposit is free of swap costs, so a lower bar than
	// liquidation profit is fine.

	MaxSlippage: decimal.RequireFromString("0.25"), // Accept up to 25% below the quote.
	// Rationale: Rebalancing right after a liquidation trades against moving pools. A failed
	// swap leaves the agent exposed, which costs more than slippage.

	MaxRebalanceIterations: 20, // Stop the rebalance loop after 20 actions.
	// Rationale: Each pass either repays, sells or buys one position. Twenty is far above what
	// any realistic account needs and stops a loop on a pool that never fills.
}

// LoadEngineParameters overlays the threshold environment variables on base.
func LoadEngineParameters(base types.EngineParameters) (types.EngineParameters, error) {
	p := base
	var err error

	if p.MinProfit, err = getEnvAsDecimal("MIN_PROFIT", p.MinProfit); err != nil {
		return p, err
	}
	if p.MinDiscount, err = getEnvAsDecimal("MIN_DISCOUNT", p.MinDiscount); err != nil {
		return p, err
	}
	if p.MinSwapAmount, err = getEnvAsDecimal("MIN_SWAP_AMOUNT", p.MinSwapAmount); err != nil {
		return p, err
	}
	if p.MinRepayAmount, err = getEnvAsDecimal("MIN_REPAY_AMOUNT", p.MinRepayAmount); err != nil {
		return p, err
	}
	if p.MaxSlippage, err = getEnvAsDecimal("MAX_SLIPPAGE", p.MaxSlippage); err != nil {
		return p, err
	}
	if p.MaxLiquidationAmount, err = getEnvAsDecimal("MAX_LIQUIDATION_AMOUNT", p.MaxLiquidationAmount); err != nil {
		return p, err
	}
	if p.MaxWithdrawCount, err = getEnvAsInt("MAX_WITHDRAW_COUNT", p.MaxWithdrawCount); err != nil {
		return p, err
	}
	if p.MaxRebalanceIterations, err = getEnvAsInt("MAX_REBALANCE_ITERATIONS", p.MaxRebalanceIterations); err != nil {
		return p, err
	}

	log.Debug().
		Str("min_profit", p.MinProfit.String()).
		Str("min_discount", p.MinDiscount.String()).
		Str("max_slippage", p.MaxSlippage.String()).
		Str("max_liquidation_amount", p.MaxLiquidationAmount.String()).
		Msg("Engine parameters loaded.")

	return p, nil
}
