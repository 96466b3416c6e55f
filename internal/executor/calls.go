package executor

import (
	"encoding/json"
	"fmt"

	"github.com/burrowland/liquidator/internal/types"
)

const (
	// DefaultGas is attached to every call: 300 Tgas.
	DefaultGas = "300000000000000"
	// OneYocto is the deposit that marks a call as signed by a full access key.
	OneYocto = "1"
)

// OracleCallArgs are the arguments of the price oracle's oracle_call. The oracle forwards
// its fresh prices together with Msg to ReceiverID.
type OracleCallArgs struct {
	ReceiverID string `json:"receiver_id"`
	Msg        string `json:"msg"`
}

// TransferCallArgs are the arguments of a fungible token's ft_transfer_call.
type TransferCallArgs struct {
	ReceiverID string `json:"receiver_id"`
	Amount     string `json:"amount"`
	Msg        string `json:"msg"`
}

// OracleCall wraps msg in an oracle_call so the lending contract executes it against
// current prices. Liquidations must go through the oracle.
func OracleCall(oracleID, lendingID string, msg types.ExecuteMsg) (types.FunctionCall, error) {
	if len(msg.Execute.Actions) == 0 {
		return types.FunctionCall{}, fmt.Errorf("%w: no actions", ErrInvalidCall)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return types.FunctionCall{}, fmt.Errorf("failed to encode execute message: %w", err)
	}
	return types.FunctionCall{
		ContractID: oracleID,
		MethodName: "oracle_call",
		Args:       OracleCallArgs{ReceiverID: lendingID, Msg: string(body)},
		Gas:        DefaultGas,
		Deposit:    OneYocto,
	}, nil
}

// ExecuteCall runs actions directly on the lending contract. Only actions that need no
// prices (Repay, Withdraw of non-collateral) may go this way.
func ExecuteCall(lendingID string, actions []types.Action) (types.FunctionCall, error) {
	if len(actions) == 0 {
		return types.FunctionCall{}, fmt.Errorf("%w: no actions", ErrInvalidCall)
	}
	return types.FunctionCall{
		ContractID: lendingID,
		MethodName: "execute",
		Args:       types.ExecuteActions{Actions: actions},
		Gas:        DefaultGas,
		Deposit:    OneYocto,
	}, nil
}

// DepositCall transfers amount of token to the lending contract, which credits it to the
// sender's supplied balance.
func DepositCall(tokenID, lendingID, amount string) (types.FunctionCall, error) {
	if amount == "" || amount == "0" {
		return types.FunctionCall{}, fmt.Errorf("%w: empty deposit of %s", ErrInvalidCall, tokenID)
	}
	return types.FunctionCall{
		ContractID: tokenID,
		MethodName: "ft_transfer_call",
		Args:       TransferCallArgs{ReceiverID: lendingID, Amount: amount, Msg: ""},
		Gas:        DefaultGas,
		Deposit:    OneYocto,
	}, nil
}
