package state

import (
	"context"

	"github.com/burrowland/liquidator/internal/types"
)

// Store hands the package's functions to components that take their persistence as a
// dependency. It uses the global DB.
type Store struct{}

func (Store) Ping(ctx context.Context) error {
	return TestDBConnection(ctx)
}

func (Store) IncrementCycleNumber(ctx context.Context) (int, error) {
	return IncrementCycleNumber(ctx)
}

func (Store) SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error) {
	return SaveCycleSnapshot(ctx, snapshot)
}

func (Store) GetRecentCycles(ctx context.Context, limit int, kind types.CycleKind) ([]types.CycleSnapshot, error) {
	return GetRecentCycles(ctx, limit, kind)
}

func (Store) GetLatestCycle(ctx context.Context) (*types.CycleSnapshot, error) {
	return GetLatestCycle(ctx)
}

func (Store) GetCycleByID(ctx context.Context, snapshotID int64) (*types.CycleSnapshot, error) {
	return GetCycleByID(ctx, snapshotID)
}

func (Store) LoadActiveParameters(ctx context.Context, configName string) (*StoredParameters, error) {
	return LoadActiveParameters(ctx, configName)
}

func (Store) GetProfitSummary(ctx context.Context) (*ProfitSummary, error) {
	return GetProfitSummary(ctx)
}
