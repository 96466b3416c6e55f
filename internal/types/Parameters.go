/*

This file contains the tunable parameters of the engine. They are handed to the liquidation
engine, the router and the rebalance planner explicitly; nothing inside those packages reads
process-wide configuration.

*/

package types

import (
	"github.com/shopspring/decimal"
)

// EngineParameters holds every threshold used by a liquidation or rebalance cycle.
// USD-denominated values are in the oracle's priced unit.
type EngineParameters struct {
	// --- Liquidation engine ---
	MaxLiquidationAmount decimal.Decimal `json:"max_liquidation_amount"` // Cap on priced debt repaid per plan
	MaxWithdrawCount     int             `json:"max_withdraw_count"`     // Withdraw actions appended to a plan
	MinPricedBalance     decimal.Decimal `json:"min_priced_balance"`     // Dust floor for the position cursors
	MaxHealthFactor      decimal.Decimal `json:"max_health_factor"`      // Target the fold stops at
	BorrowPadding        int64           `json:"borrow_padding"`         // Added to each Borrow amount
	SeizeSafetyBps       int64           `json:"seize_safety_bps"`       // Seized amounts are scaled by bps/10000
	RepaySafetyBps       int64           `json:"repay_safety_bps"`       // Repaid amounts are scaled by bps/10000

	// --- Caller policy ---
	MinProfit   decimal.Decimal `json:"min_profit"`
	MinDiscount decimal.Decimal `json:"min_discount"`

	// --- Rebalance / swaps ---
	MinSwapAmount          decimal.Decimal `json:"min_swap_amount"`
	MinRepayAmount         decimal.Decimal `json:"min_repay_amount"`
	MaxSlippage            decimal.Decimal `json:"max_slippage"` // Fraction, 0.25 = 25%
	MaxRebalanceIterations int             `json:"max_rebalance_iterations"`
}
