package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/burrowland/liquidator/internal/logger"
	"github.com/burrowland/liquidator/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNoSigner          = errors.New("live mode requires a signer")
	ErrInvalidCall       = errors.New("contract call is invalid")
	ErrTransactionFailed = errors.New("transaction execution failed")
)

// LiveExecutor submits calls through a Signer.
type LiveExecutor struct {
	signer Signer
}

// NewLive creates a live executor.
func NewLive(signer Signer) *LiveExecutor {
	return &LiveExecutor{signer: signer}
}

func (l *LiveExecutor) DryRun() bool { return false }

// Submit signs and sends call. A signer failure is returned as a failed result joined
// with ErrTransactionFailed; the executor never retries.
func (l *LiveExecutor) Submit(ctx context.Context, call types.FunctionCall) (types.TransactionResult, error) {
	log := logger.GetForComponent("executor")

	if err := validateCall(call); err != nil {
		log.Error().Err(err).Msg("Submit: call validation failed")
		return types.TransactionResult{}, err
	}

	log.Info().
		Str("signer", l.signer.AccountID()).
		Str("contract", call.ContractID).
		Str("method", call.MethodName).
		Msg("Submit: signing and sending transaction")

	result := types.TransactionResult{SubmittedAt: time.Now().UTC()}
	hash, err := l.signer.SignAndSend(ctx, call)
	if err != nil {
		result.ErrorMessage = err.Error()
		log.Error().Err(err).Str("method", call.MethodName).Msg("Submit: transaction failed")
		return result, errors.Join(ErrTransactionFailed, err)
	}

	result.TxHash = hash
	result.Success = true
	log.Info().Str("txHash", hash).Msg("Submit: transaction completed successfully")
	return result, nil
}

func validateCall(call types.FunctionCall) error {
	switch {
	case call.ContractID == "":
		return fmt.Errorf("%w: contract id is empty", ErrInvalidCall)
	case call.MethodName == "":
		return fmt.Errorf("%w: method name is empty", ErrInvalidCall)
	case call.Gas == "" || call.Gas == "0":
		return fmt.Errorf("%w: %s.%s has no gas", ErrInvalidCall, call.ContractID, call.MethodName)
	case call.Deposit == "":
		return fmt.Errorf("%w: %s.%s has no deposit", ErrInvalidCall, call.ContractID, call.MethodName)
	}
	return nil
}
