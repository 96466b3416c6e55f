/*

This file contains the shapes of everything the agent hands to the ledger write interface:
lending actions, exchange swap actions and the contract calls that carry them. All amounts
are integer strings in the token's smallest unit.

*/

package types

import (
	"time"
)

// AssetAmount is a token amount inside a lending action. Withdraw and Repay use MaxAmount,
// everything else uses Amount.
type AssetAmount struct {
	TokenID   TokenID `json:"token_id"`
	Amount    string  `json:"amount,omitempty"`
	MaxAmount string  `json:"max_amount,omitempty"`
}

// LiquidateAction repays InAssets of AccountID's debt and seizes OutAssets of its collateral.
type LiquidateAction struct {
	AccountID string        `json:"account_id"`
	InAssets  []AssetAmount `json:"in_assets"`
	OutAssets []AssetAmount `json:"out_assets"`
}

// Action is one externally tagged lending action; exactly one field is set.
type Action struct {
	Borrow    *AssetAmount     `json:"Borrow,omitempty"`
	Repay     *AssetAmount     `json:"Repay,omitempty"`
	Withdraw  *AssetAmount     `json:"Withdraw,omitempty"`
	Liquidate *LiquidateAction `json:"Liquidate,omitempty"`
}

// Kind names the populated variant, for logs.
func (a Action) Kind() string {
	switch {
	case a.Borrow != nil:
		return "Borrow"
	case a.Repay != nil:
		return "Repay"
	case a.Withdraw != nil:
		return "Withdraw"
	case a.Liquidate != nil:
		return "Liquidate"
	default:
		return "Empty"
	}
}

// ExecuteActions is the body of an Execute message.
type ExecuteActions struct {
	Actions []Action `json:"actions"`
}

// ExecuteMsg is the message the lending contract accepts from an oracle call or a direct
// execute call: {"Execute": {"actions": [...]}}.
type ExecuteMsg struct {
	Execute ExecuteActions `json:"Execute"`
}

// SwapAction is one hop of an exchange swap.
type SwapAction struct {
	PoolID       PoolID  `json:"pool_id"`
	TokenIn      TokenID `json:"token_in"`
	TokenOut     TokenID `json:"token_out"`
	AmountIn     string  `json:"amount_in,omitempty"`
	MinAmountOut string  `json:"min_amount_out"`
}

// SwapMsg is the transfer-call message that triggers a swap on the exchange.
type SwapMsg struct {
	Actions []SwapAction `json:"actions"`
}

// FunctionCall is a single contract call for the ledger write interface.
type FunctionCall struct {
	ContractID string      `json:"contract_id"`
	MethodName string      `json:"method_name"`
	Args       interface{} `json:"args"`
	Gas        string      `json:"gas"`
	Deposit    string      `json:"deposit"` // yoctoNEAR
}

// TransactionResult contains the outcome of a submitted (or simulated) call.
type TransactionResult struct {
	TxHash       string    `json:"tx_hash"`
	Success      bool      `json:"success"`
	DryRun       bool      `json:"dry_run"`
	ErrorMessage string    `json:"error_message,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}
