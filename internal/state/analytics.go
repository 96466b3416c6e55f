package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/burrowland/liquidator/internal/types"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ProfitSummary represents aggregated liquidation results
type ProfitSummary struct {
	TotalProfitUSD     decimal.Decimal `json:"total_profit_usd"`
	TotalCycles        int             `json:"total_cycles"`
	ExecutedCycles     int             `json:"executed_cycles"`
	FailedCycles       int             `json:"failed_cycles"`
	LiquidatedAccounts int             `json:"liquidated_accounts"`
	AvgDurationMs      decimal.Decimal `json:"avg_duration_ms"`
}

const selectSnapshotColumns = `
	SELECT
		snapshot_id, cycle_number, cycle_id, kind, outcome, snapshot_timestamp, duration_ms, params_id,
		accounts_scanned, accounts_failed, liquidatable_count,
		account_id, actions, profit_usd, discount_before, health_before, health_after,
		transaction_hashes, dry_run, errors
	FROM cycle_snapshots`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (types.CycleSnapshot, error) {
	var (
		cycle       types.CycleSnapshot
		kind        string
		outcome     string
		paramsID    sql.NullInt64
		accountID   sql.NullString
		actionsJSON []byte
	)
	err := row.Scan(
		&cycle.SnapshotID, &cycle.CycleNumber, &cycle.CycleID, &kind, &outcome, &cycle.Timestamp, &cycle.Duration, &paramsID,
		&cycle.AccountsScanned, &cycle.AccountsFailed, &cycle.LiquidatableCount,
		&accountID, &actionsJSON, &cycle.ProfitUSD, &cycle.DiscountBefore, &cycle.HealthBefore, &cycle.HealthAfter,
		pq.Array(&cycle.TransactionHashes), &cycle.DryRun, pq.Array(&cycle.Errors), // Use pq.Array for PostgreSQL array
	)
	if err != nil {
		return types.CycleSnapshot{}, err
	}

	cycle.Kind = types.CycleKind(kind)
	cycle.Outcome = types.CycleOutcome(outcome)
	if paramsID.Valid {
		id := paramsID.Int64
		cycle.ParamsID = &id
	}
	cycle.AccountID = accountID.String
	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &cycle.Actions); err != nil {
			return types.CycleSnapshot{}, fmt.Errorf("failed to unmarshal actions: %w", err)
		}
	}
	return cycle, nil
}

// GetRecentCycles retrieves the most recent cycle snapshots, newest first. An empty kind
// returns both loops.
func GetRecentCycles(ctx context.Context, limit int, kind types.CycleKind) ([]types.CycleSnapshot, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	if limit <= 0 || limit > 100 {
		limit = 10 // Default limit
	}

	query := selectSnapshotColumns + `
		WHERE ($2::text = '' OR kind = $2::text)
		ORDER BY snapshot_timestamp DESC, snapshot_id DESC
		LIMIT $1`

	rows, err := DB.QueryContext(ctx, query, limit, string(kind))
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent cycles")
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]types.CycleSnapshot, 0, limit)
	for rows.Next() {
		cycle, err := scanSnapshot(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan cycle row")
			continue // Skip this row and continue with others
		}
		cycles = append(cycles, cycle)
	}

	if err := rows.Err(); err != nil {
		log.Error().Err(err).Msg("Error occurred during row iteration")
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	log.Debug().Int("count", len(cycles)).Int("limit", limit).Msg("Retrieved recent cycles")
	return cycles, nil
}

// GetLatestCycle returns the newest cycle snapshot or ErrNotFound.
func GetLatestCycle(ctx context.Context) (*types.CycleSnapshot, error) {
	cycles, err := GetRecentCycles(ctx, 1, "")
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return nil, fmt.Errorf("%w: no cycles recorded", ErrNotFound)
	}
	return &cycles[0], nil
}

// GetCycleByID retrieves a specific cycle by its ID
func GetCycleByID(ctx context.Context, snapshotID int64) (*types.CycleSnapshot, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	query := selectSnapshotColumns + `
		WHERE snapshot_id = $1`

	cycle, err := scanSnapshot(DB.QueryRowContext(ctx, query, snapshotID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: cycle with ID %d", ErrNotFound, snapshotID)
		}
		log.Error().Err(err).Int64("snapshot_id", snapshotID).Msg("Failed to query cycle by ID")
		return nil, fmt.Errorf("failed to query cycle by ID: %w", err)
	}

	log.Debug().Int64("snapshot_id", snapshotID).Int("cycle_number", cycle.CycleNumber).Msg("Retrieved cycle by ID")
	return &cycle, nil
}

// GetProfitSummary aggregates the liquidation cycles.
func GetProfitSummary(ctx context.Context) (*ProfitSummary, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT
			COALESCE(SUM(profit_usd) FILTER (WHERE outcome = 'executed'), 0) AS total_profit,
			COUNT(*) AS total_cycles,
			COUNT(*) FILTER (WHERE outcome = 'executed') AS executed_cycles,
			COUNT(*) FILTER (WHERE outcome = 'failed') AS failed_cycles,
			COUNT(DISTINCT account_id) FILTER (WHERE outcome = 'executed') AS liquidated_accounts,
			COALESCE(AVG(duration_ms), 0) AS avg_duration_ms
		FROM cycle_snapshots
		WHERE kind = 'liquidation'
	`

	summary := &ProfitSummary{}
	err := DB.QueryRowContext(ctx, query).Scan(
		&summary.TotalProfitUSD,
		&summary.TotalCycles,
		&summary.ExecutedCycles,
		&summary.FailedCycles,
		&summary.LiquidatedAccounts,
		&summary.AvgDurationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get profit summary: %w", err)
	}

	log.Debug().
		Str("totalProfit", summary.TotalProfitUSD.String()).
		Int("totalCycles", summary.TotalCycles).
		Msg("Retrieved profit summary")
	return summary, nil
}
