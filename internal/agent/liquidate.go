package agent

import (
	"context"
	"fmt"

	"github.com/burrowland/liquidator/internal/executor"
	"github.com/burrowland/liquidator/internal/liquidation"
	"github.com/burrowland/liquidator/internal/metrics"
	"github.com/burrowland/liquidator/internal/risk"
	"github.com/burrowland/liquidator/internal/types"

	"github.com/rs/zerolog"
)

// ScanResult is the valued market of one cycle.
type ScanResult struct {
	Ranked       []types.ValuedAccount // Least healthy first
	Liquidatable []types.ValuedAccount // Largest discount first
	Excluded     []risk.Exclusion
	FetchFailed  int
}

// Scanned is the number of accounts read, valued or not.
func (s ScanResult) Scanned() int {
	return len(s.Ranked) + len(s.Excluded) + s.FetchFailed
}

// Failed is the number of accounts that could not be read or valued.
func (s ScanResult) Failed() int {
	return len(s.Excluded) + s.FetchFailed
}

// Scan reads every account, ranks them by health and selects those worth liquidating. The
// ranking is pushed to the cache when one is configured.
func (a *Agent) Scan(ctx context.Context) (ScanResult, error) {
	return a.scan(ctx, a.logger)
}

func (a *Agent) scan(ctx context.Context, l zerolog.Logger) (ScanResult, error) {
	snap, err := a.source.LoadSnapshot(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to load market snapshot: %w", err)
	}
	for _, e := range snap.Errors {
		l.Warn().Str("accountID", e.AccountID).Err(e.Err).Msg("Account could not be read")
	}

	valued, excluded := risk.ValueAccounts(snap.Accounts, snap.Assets, snap.Prices)
	if n := risk.CountUnpriced(excluded); n > 0 {
		l.Warn().Int("unpriced", n).Msg("Accounts with unpriced positions were skipped")
	}

	result := ScanResult{
		Ranked:       risk.RankByHealth(valued),
		Liquidatable: risk.SelectLiquidatable(valued, a.params.MinDiscount),
		Excluded:     excluded,
		FetchFailed:  len(snap.Errors),
	}

	if a.cache != nil {
		if err := a.cache.SetRanking(ctx, risk.Summaries(result.Ranked)); err != nil {
			l.Warn().Err(err).Msg("Failed to cache account ranking")
		}
	}

	metrics.AccountsScanned.Set(float64(result.Scanned()))
	metrics.LiquidatableAccounts.Set(float64(len(result.Liquidatable)))

	a.logRanking(l, result)
	return result, nil
}

func (a *Agent) logRanking(l zerolog.Logger, result ScanResult) {
	for i, acc := range result.Ranked {
		if i >= RankingLogSize {
			break
		}
		l.Info().
			Str("accountID", acc.AccountID).
			Str("health", acc.HealthFactor.StringFixed(4)).
			Str("borrowedUSD", acc.BorrowedSum.Decimal.StringFixed(2)).
			Msg("Ranked account")
	}
	if a.showWhales {
		for _, acc := range risk.TopBorrowers(result.Ranked, WhaleCount) {
			l.Info().
				Str("accountID", acc.AccountID).
				Str("health", acc.HealthFactor.StringFixed(4)).
				Str("borrowedUSD", acc.BorrowedSum.Decimal.StringFixed(2)).
				Msg("Whale")
		}
	}
	l.Info().
		Int("ranked", len(result.Ranked)).
		Int("excluded", len(result.Excluded)).
		Int("liquidatable", len(result.Liquidatable)).
		Msg("Scan complete")
}

// BestPlan returns the first liquidatable account's plan that passes the policy, in
// discount order. ok is false when none does.
func (a *Agent) BestPlan(candidates []types.ValuedAccount) (liquidation.Plan, bool) {
	return a.bestPlan(candidates, a.logger)
}

func (a *Agent) bestPlan(candidates []types.ValuedAccount, l zerolog.Logger) (liquidation.Plan, bool) {
	for _, acc := range candidates {
		plan, err := liquidation.ComputeLiquidation(acc, a.params)
		if err != nil {
			l.Warn().Err(err).Str("accountID", acc.AccountID).Msg("Could not compute liquidation")
			continue
		}
		if err := liquidation.Evaluate(plan, a.params); err != nil {
			l.Debug().Err(err).Str("accountID", acc.AccountID).Msg("Plan rejected")
			continue
		}
		return plan, true
	}
	return liquidation.Plan{}, false
}

// RunCycle executes one liquidation cycle: scan, choose the best plan and submit it through
// the oracle. The cycle is recorded whatever its outcome; the error reports a failed fetch
// or submission.
func (a *Agent) RunCycle(ctx context.Context) (types.CycleSnapshot, error) {
	snapshot, cycleLogger := a.newCycle(ctx, types.CycleLiquidation)
	cycleLogger.Info().Int("cycleNumber", snapshot.CycleNumber).Msg("--- Starting Liquidation Cycle ---")

	// --- Step 1: Scan ---
	cycleLogger.Info().Msg("Step 1: Scanning accounts...")
	scan, err := a.scan(ctx, cycleLogger)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: Failed to scan accounts.")
		fail(&snapshot, err)
		a.finish(ctx, &snapshot, cycleLogger)
		return snapshot, err
	}
	snapshot.AccountsScanned = scan.Scanned()
	snapshot.AccountsFailed = scan.Failed()
	snapshot.LiquidatableCount = len(scan.Liquidatable)

	// --- Step 2: Planning ---
	cycleLogger.Info().Int("candidates", len(scan.Liquidatable)).Msg("Step 2: Planning liquidations...")
	plan, ok := a.bestPlan(scan.Liquidatable, cycleLogger)
	if !ok {
		cycleLogger.Info().Msg("No liquidation passed the policy.")
		snapshot.Outcome = types.OutcomeIdle
		a.finish(ctx, &snapshot, cycleLogger)
		return snapshot, nil
	}
	metrics.PlanProfit.Observe(plan.TotalPricedProfit.InexactFloat64())

	snapshot.AccountID = plan.AccountID
	snapshot.Actions = plan.Actions
	snapshot.ProfitUSD = plan.TotalPricedProfit
	snapshot.DiscountBefore = plan.OrigDiscount
	snapshot.HealthBefore = plan.OrigHealth
	snapshot.HealthAfter = plan.Health

	cycleLogger.Info().
		Str("accountID", plan.AccountID).
		Str("profitUSD", plan.TotalPricedProfit.StringFixed(2)).
		Str("discount", plan.OrigDiscount.StringFixed(4)).
		Str("healthBefore", plan.OrigHealth.StringFixed(4)).
		Str("healthAfter", plan.Health.StringFixed(4)).
		Msg("Step 2: Liquidation plan selected.")

	// --- Step 3: Execution ---
	cycleLogger.Info().Msg("Step 3: Submitting liquidation...")
	call, err := executor.OracleCall(a.contracts.Oracle, a.contracts.Lending, plan.ExecuteMsg())
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: Failed to build oracle call.")
		fail(&snapshot, err)
		a.finish(ctx, &snapshot, cycleLogger)
		return snapshot, err
	}
	result, err := a.executor.Submit(ctx, call)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Liquidation transaction failed.")
		fail(&snapshot, err)
		a.finish(ctx, &snapshot, cycleLogger)
		return snapshot, err
	}
	snapshot.TransactionHashes = append(snapshot.TransactionHashes, result.TxHash)

	if result.DryRun {
		snapshot.Outcome = types.OutcomeSkipped
	} else {
		snapshot.Outcome = types.OutcomeExecuted
	}
	cycleLogger.Info().Str("txHash", result.TxHash).Bool("dryRun", result.DryRun).Msg("Step 3: Liquidation submitted.")

	a.finish(ctx, &snapshot, cycleLogger)
	return snapshot, nil
}

func observeCycle(snapshot types.CycleSnapshot) {
	metrics.ObserveCycle(string(snapshot.Kind), string(snapshot.Outcome))
}
