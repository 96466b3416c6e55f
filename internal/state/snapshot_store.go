// ./internal/state/snapshot_store.go
package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/burrowland/liquidator/internal/types"
	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"
)

const insertSnapshotSQL = `
	INSERT INTO cycle_snapshots (
		cycle_number, cycle_id, kind, outcome, snapshot_timestamp, duration_ms, params_id,
		accounts_scanned, accounts_failed, liquidatable_count,
		account_id, actions, profit_usd, discount_before, health_before, health_after,
		transaction_hashes, dry_run, errors
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	RETURNING snapshot_id;
`

// SaveCycleSnapshot saves a complete cycle snapshot to the database.
func SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error) {
	if DB == nil {
		return 0, ErrNotInitialized
	}

	// Marshal all JSONB fields
	actionsJSON, err := json.Marshal(snapshot.Actions)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal actions: %w", err)
	}

	var snapshotID int64
	err = DB.QueryRowContext(ctx,
		insertSnapshotSQL,
		snapshot.CycleNumber, snapshot.CycleID, string(snapshot.Kind), string(snapshot.Outcome),
		snapshot.Timestamp, snapshot.Duration, snapshot.ParamsID,
		snapshot.AccountsScanned, snapshot.AccountsFailed, snapshot.LiquidatableCount,
		snapshot.AccountID, actionsJSON, snapshot.ProfitUSD, snapshot.DiscountBefore,
		snapshot.HealthBefore, snapshot.HealthAfter,
		pq.Array(snapshot.TransactionHashes), snapshot.DryRun, pq.Array(snapshot.Errors),
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save cycle snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Str("kind", string(snapshot.Kind)).
		Str("outcome", string(snapshot.Outcome)).
		Msg("Cycle snapshot saved to database")

	return snapshotID, nil
}
