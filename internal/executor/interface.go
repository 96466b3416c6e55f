package executor

import (
	"context"

	"github.com/burrowland/liquidator/internal/types"
)

// Executor defines the ledger write interface.
// The engine only shapes calls; an Executor decides whether they reach the chain, so the
// agent can run the same cycle live or as a dry run.
type Executor interface {
	// Submit sends one contract call and waits for its outcome.
	Submit(ctx context.Context, call types.FunctionCall) (types.TransactionResult, error)

	// DryRun reports whether calls are only recorded.
	DryRun() bool
}

// Signer signs a call with the agent's key and broadcasts it, returning the transaction hash.
// Key management lives outside this module.
type Signer interface {
	SignAndSend(ctx context.Context, call types.FunctionCall) (string, error)
	AccountID() string
}

// New returns a live executor when live is set and a signer is available, else a dry run.
func New(live bool, signer Signer) (Executor, error) {
	if !live {
		return NewDryRun(), nil
	}
	if signer == nil {
		return nil, ErrNoSigner
	}
	return NewLive(signer), nil
}
