package router

import (
	"encoding/json"
	"fmt"

	"github.com/burrowland/liquidator/internal/numeric"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/shopspring/decimal"
)

const (
	// SwapGas is attached to every swap transfer call: 300 Tgas.
	SwapGas = "300000000000000"
	// OneYocto is the deposit fungible token transfers require.
	OneYocto = "1"
)

// SwapActions turns a route into exchange swap actions. Only the hop that delivers the
// plan's output token carries a minimum output, AmountOut scaled by (1 - maxSlippage) and
// rounded down; intermediate hops accept any amount.
func SwapActions(plan SwapPlan, maxSlippage decimal.Decimal) ([]types.SwapAction, error) {
	if !plan.HasRoute() {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, plan.Describe())
	}
	if maxSlippage.IsNegative() || maxSlippage.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("max slippage %s outside [0, 1]", maxSlippage)
	}

	minOut, err := numeric.AmountString(
		numeric.FromAmount(plan.AmountOut).Mul(decimal.NewFromInt(1).Sub(maxSlippage)).Floor(),
	)
	if err != nil {
		return nil, err
	}

	actions := make([]types.SwapAction, len(plan.Pools))
	tokenIn := plan.InTokenAccountID
	for i, pool := range plan.Pools {
		tokenOut := plan.SwapPath[i+1]
		action := types.SwapAction{
			PoolID:       pool.ID,
			TokenIn:      tokenIn,
			TokenOut:     tokenOut,
			MinAmountOut: "0",
		}
		if tokenOut == plan.OutTokenAccountID {
			action.MinAmountOut = minOut
		}
		actions[i] = action
		tokenIn = tokenOut
	}
	return actions, nil
}

// TransferArgs are the arguments of ft_transfer_call.
type TransferArgs struct {
	ReceiverID string `json:"receiver_id"`
	Amount     string `json:"amount"`
	Msg        string `json:"msg"`
}

// SwapCall builds the input token's ft_transfer_call that sends plan.AmountIn to the
// exchange with the swap actions as its message.
func SwapCall(plan SwapPlan, exchangeID string, maxSlippage decimal.Decimal) (types.FunctionCall, error) {
	actions, err := SwapActions(plan, maxSlippage)
	if err != nil {
		return types.FunctionCall{}, err
	}
	msg, err := json.Marshal(types.SwapMsg{Actions: actions})
	if err != nil {
		return types.FunctionCall{}, fmt.Errorf("failed to encode swap message: %w", err)
	}
	amount, err := numeric.AmountString(numeric.FromAmount(plan.AmountIn))
	if err != nil {
		return types.FunctionCall{}, err
	}
	return types.FunctionCall{
		ContractID: plan.InTokenAccountID,
		MethodName: "ft_transfer_call",
		Args: TransferArgs{
			ReceiverID: exchangeID,
			Amount:     amount,
			Msg:        string(msg),
		},
		Gas:     SwapGas,
		Deposit: OneYocto,
	}, nil
}
