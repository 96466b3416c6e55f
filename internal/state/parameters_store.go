// ./internal/state/parameters_store.go
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/burrowland/liquidator/internal/types"
	"github.com/rs/zerolog/log"
)

// StoredParameters is one versioned row of engine_parameters.
type StoredParameters struct {
	ParamsID    int64                  `json:"params_id"`
	Version     int                    `json:"version"`
	ConfigName  string                 `json:"config_name"`
	IsActive    bool                   `json:"is_active"`
	ActivatedAt time.Time              `json:"activated_at"`
	Parameters  types.EngineParameters `json:"parameters"`
}

// SaveParameters saves a new version of engine parameters. With makeActive the previous
// active version of configName is deactivated in the same transaction.
func SaveParameters(ctx context.Context, params types.EngineParameters, configName string, version int, makeActive bool) (paramsID int64, err error) {
	if DB == nil {
		return 0, ErrNotInitialized
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal parameters: %w", err)
	}

	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE engine_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		if _, err = tx.ExecContext(ctx, stmtDeactivate, configName); err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	stmt := `
		INSERT INTO engine_parameters (version, config_name, is_active, activated_at, created_at, parameters)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING params_id;`

	currentTime := time.Now().UTC()
	err = tx.QueryRowContext(ctx, stmt, version, configName, makeActive, currentTime, currentTime, paramsJSON).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert engine parameters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved engine parameters")
	return paramsID, nil
}

// LoadActiveParameters loads the currently active parameters of configName. ErrNotFound is
// returned when none is active.
func LoadActiveParameters(ctx context.Context, configName string) (*StoredParameters, error) {
	if DB == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT params_id, version, config_name, is_active, activated_at, parameters
		FROM engine_parameters
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;`

	var (
		stored     StoredParameters
		paramsJSON []byte
	)
	err := DB.QueryRowContext(ctx, query, configName).Scan(
		&stored.ParamsID, &stored.Version, &stored.ConfigName, &stored.IsActive, &stored.ActivatedAt, &paramsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no active engine parameters for config '%s'", ErrNotFound, configName)
		}
		return nil, fmt.Errorf("failed to scan active engine parameters for config '%s': %w", configName, err)
	}
	if err := json.Unmarshal(paramsJSON, &stored.Parameters); err != nil {
		return nil, fmt.Errorf("failed to unmarshal engine parameters %d: %w", stored.ParamsID, err)
	}

	log.Info().Str("config", configName).Int64("params_id", stored.ParamsID).Msg("Loaded active engine parameters")
	return &stored, nil
}

// GetNextParametersVersion returns one more than the highest stored version of configName.
func GetNextParametersVersion(ctx context.Context, configName string) (int, error) {
	if DB == nil {
		return 0, ErrNotInitialized
	}

	var maxVersion sql.NullInt64
	query := `SELECT MAX(version) FROM engine_parameters WHERE config_name = $1;`
	if err := DB.QueryRowContext(ctx, query, configName).Scan(&maxVersion); err != nil {
		return 0, fmt.Errorf("failed to get latest parameters version for config '%s': %w", configName, err)
	}
	if !maxVersion.Valid {
		return 1, nil
	}
	return int(maxVersion.Int64) + 1, nil
}
