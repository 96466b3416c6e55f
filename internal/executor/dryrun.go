package executor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/burrowland/liquidator/internal/logger"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/google/uuid"
)

// DryRunExecutor records calls instead of submitting them.
type DryRunExecutor struct {
	mu    sync.Mutex
	calls []types.FunctionCall
}

// NewDryRun creates an empty dry-run executor.
func NewDryRun() *DryRunExecutor {
	return &DryRunExecutor{}
}

func (d *DryRunExecutor) DryRun() bool { return true }

// Submit validates and records call and returns a successful result with a synthetic hash.
func (d *DryRunExecutor) Submit(ctx context.Context, call types.FunctionCall) (types.TransactionResult, error) {
	if err := ctx.Err(); err != nil {
		return types.TransactionResult{}, err
	}
	if err := validateCall(call); err != nil {
		return types.TransactionResult{}, err
	}

	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()

	args, _ := json.Marshal(call.Args)
	log := logger.GetForComponent("executor")
	log.Info().
		Str("contract", call.ContractID).
		Str("method", call.MethodName).
		RawJSON("args", args).
		Msg("DRY RUN: call not submitted")

	return types.TransactionResult{
		TxHash:      "dryrun-" + uuid.NewString(),
		Success:     true,
		DryRun:      true,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

// Calls returns a copy of the recorded calls in submission order.
func (d *DryRunExecutor) Calls() []types.FunctionCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]types.FunctionCall(nil), d.calls...)
}

// Reset forgets the recorded calls.
func (d *DryRunExecutor) Reset() {
	d.mu.Lock()
	d.calls = nil
	d.mu.Unlock()
}
