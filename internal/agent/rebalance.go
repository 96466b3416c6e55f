package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/burrowland/liquidator/internal/amm"
	"github.com/burrowland/liquidator/internal/planner"
	"github.com/burrowland/liquidator/internal/risk"
	"github.com/burrowland/liquidator/internal/router"
	"github.com/burrowland/liquidator/internal/types"

	"github.com/rs/zerolog"
)

// ErrIterationCap is recorded when the rebalance loop stops before the account is settled.
var ErrIterationCap = errors.New("rebalance iteration cap reached")

// ownAccount reads and values the agent's account.
func (a *Agent) ownAccount(ctx context.Context) (types.ValuedAccount, error) {
	snap, err := a.source.LoadAccountSnapshot(ctx, a.accountID)
	if err != nil {
		return types.ValuedAccount{}, fmt.Errorf("failed to load own account: %w", err)
	}
	if len(snap.Errors) > 0 {
		return types.ValuedAccount{}, snap.Errors[0]
	}
	if len(snap.Accounts) == 0 {
		return types.ValuedAccount{}, fmt.Errorf("own account %s was not returned", a.accountID)
	}
	return risk.ValueAccount(snap.Accounts[0], snap.Assets, snap.Prices)
}

// Graph reads the exchange's pools and builds a routing graph over them. Pools the pricing
// engine rejects are logged and left out.
func (a *Agent) Graph(ctx context.Context) (*router.Graph, error) {
	return a.graph(ctx, a.logger)
}

func (a *Agent) graph(ctx context.Context, l zerolog.Logger) (*router.Graph, error) {
	raws, err := a.source.GetPools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pools: %w", err)
	}
	if a.cache != nil {
		if err := a.cache.SetPools(ctx, raws); err != nil {
			l.Warn().Err(err).Msg("Failed to cache pools")
		}
	}

	pools, rejected := amm.NewPools(raws, a.stableDecimals)
	for _, r := range rejected {
		l.Warn().Uint64("poolID", uint64(r.PoolID)).Err(r.Err).Msg("Pool rejected")
	}
	l.Info().Int("pools", len(pools)).Int("rejected", len(rejected)).Msg("Routing graph built")
	return router.NewGraph(pools), nil
}

// needsSwap reports whether a step trades on the exchange.
func (a *Agent) needsSwap(step planner.Step) bool {
	switch step.Kind {
	case planner.StepWithdrawAndSell, planner.StepBuyAndDeposit:
		return step.TokenID != a.contracts.WrapNear
	}
	return false
}

// Rebalance converts the agent's own positions back to wrapped NEAR one step at a time:
// repaying debt from deposits, selling supplied tokens and buying borrowed ones. The account
// is re-read after every step. A dry run stops after the first step since nothing changes.
func (a *Agent) Rebalance(ctx context.Context) (types.CycleSnapshot, error) {
	snapshot, cycleLogger := a.newCycle(ctx, types.CycleRebalance)
	snapshot.AccountID = a.accountID
	snapshot.Outcome = types.OutcomeIdle
	cycleLogger.Info().Int("cycleNumber", snapshot.CycleNumber).Msg("--- Starting Rebalance Cycle ---")

	contracts := planner.Contracts{
		Lending:  a.contracts.Lending,
		Exchange: a.contracts.Exchange,
		WrapNear: a.contracts.WrapNear,
	}

	settled := false
	for i := 0; i < a.params.MaxRebalanceIterations && !settled; i++ {
		stepLogger := cycleLogger.With().Int("iteration", i).Logger()

		account, err := a.ownAccount(ctx)
		if err != nil {
			stepLogger.Error().Err(err).Msg("Rebalance aborted: Failed to read own account.")
			fail(&snapshot, err)
			a.finish(ctx, &snapshot, cycleLogger)
			return snapshot, err
		}
		if account.HealthDefined {
			if i == 0 {
				snapshot.HealthBefore = account.HealthFactor
			}
			snapshot.HealthAfter = account.HealthFactor
		}

		step, err := planner.PlanRebalance(account, a.params)
		if err != nil {
			stepLogger.Error().Err(err).Msg("Rebalance aborted: Failed to plan step.")
			fail(&snapshot, err)
			a.finish(ctx, &snapshot, cycleLogger)
			return snapshot, err
		}
		if step.Done() {
			settled = true
			break
		}

		var graph *router.Graph
		if a.needsSwap(step) {
			graph, err = a.graph(ctx, stepLogger)
			if err != nil {
				stepLogger.Error().Err(err).Msg("Rebalance aborted: Failed to build routing graph.")
				fail(&snapshot, err)
				a.finish(ctx, &snapshot, cycleLogger)
				return snapshot, err
			}
		}

		calls, err := step.Calls(graph, contracts, a.params.MaxSlippage)
		if err != nil {
			stepLogger.Error().Err(err).Str("kind", string(step.Kind)).Msg("Rebalance aborted: Failed to build step calls.")
			fail(&snapshot, err)
			a.finish(ctx, &snapshot, cycleLogger)
			return snapshot, err
		}

		snapshot.Actions = append(snapshot.Actions, step.Actions...)
		dryRun := false
		for _, call := range calls {
			result, err := a.executor.Submit(ctx, call)
			if err != nil {
				stepLogger.Error().Err(err).Str("method", call.MethodName).Msg("Rebalance transaction failed.")
				fail(&snapshot, err)
				a.finish(ctx, &snapshot, cycleLogger)
				return snapshot, err
			}
			snapshot.TransactionHashes = append(snapshot.TransactionHashes, result.TxHash)
			dryRun = dryRun || result.DryRun
		}
		stepLogger.Info().Str("kind", string(step.Kind)).Str("token", step.TokenID).Int("calls", len(calls)).Msg("Rebalance step submitted")

		if dryRun {
			snapshot.Outcome = types.OutcomeSkipped
			break
		}
		snapshot.Outcome = types.OutcomeExecuted
	}

	if !settled && snapshot.Outcome == types.OutcomeExecuted {
		cycleLogger.Warn().Int("iterations", a.params.MaxRebalanceIterations).Msg("Rebalance stopped before the account settled")
		snapshot.Errors = append(snapshot.Errors, ErrIterationCap.Error())
	}

	a.finish(ctx, &snapshot, cycleLogger)
	return snapshot, nil
}
