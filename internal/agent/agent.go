// Package agent runs the liquidation and rebalance cycles: it reads the market, ranks the
// accounts, picks a plan and hands the resulting calls to an executor.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/burrowland/liquidator/internal/datafetcher"
	"github.com/burrowland/liquidator/internal/executor"
	"github.com/burrowland/liquidator/internal/logger"
	"github.com/burrowland/liquidator/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// RankingLogSize is how many of the least healthy accounts a scan logs.
	RankingLogSize = 20
	// WhaleCount is how many of the largest borrowers a scan logs when whales are shown.
	WhaleCount = 20
)

// ErrInvalidConfig is returned by New for a configuration missing a required dependency.
var ErrInvalidConfig = errors.New("invalid agent configuration")

// Source reads the ledger state a cycle runs on.
type Source interface {
	LoadSnapshot(ctx context.Context) (datafetcher.Snapshot, error)
	LoadAccountSnapshot(ctx context.Context, accountIDs ...string) (datafetcher.Snapshot, error)
	GetPools(ctx context.Context) ([]types.RawPool, error)
}

// Recorder persists cycle history.
type Recorder interface {
	IncrementCycleNumber(ctx context.Context) (int, error)
	SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error)
}

// Cache receives the latest ranking and pool list for the API.
type Cache interface {
	SetRanking(ctx context.Context, accounts []types.AccountSummary) error
	SetPools(ctx context.Context, pools []types.RawPool) error
}

// Contracts are the accounts the agent calls.
type Contracts struct {
	Lending  string
	Oracle   string
	Exchange string
	WrapNear string
}

// Agent is the liquidation bot with all its dependencies.
type Agent struct {
	// Core dependencies
	logger   zerolog.Logger
	source   Source
	executor executor.Executor
	recorder Recorder
	cache    Cache

	// Configuration
	params         types.EngineParameters
	paramsID       *int64
	contracts      Contracts
	accountID      string
	stableDecimals map[types.TokenID]int
	showWhales     bool

	// Runtime state
	cycleCount int
}

// Config holds the configuration for creating a new Agent. Recorder and Cache are optional.
type Config struct {
	Source         Source
	Executor       executor.Executor
	Recorder       Recorder
	Cache          Cache
	Params         types.EngineParameters
	ParamsID       *int64
	Contracts      Contracts
	AccountID      string
	StableDecimals map[types.TokenID]int
	ShowWhales     bool
}

// New creates an agent from cfg.
func New(cfg Config) (*Agent, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	a := &Agent{
		logger:         logger.GetForComponent("agent_core"),
		source:         cfg.Source,
		executor:       cfg.Executor,
		recorder:       cfg.Recorder,
		cache:          cfg.Cache,
		params:         cfg.Params,
		paramsID:       cfg.ParamsID,
		contracts:      cfg.Contracts,
		accountID:      cfg.AccountID,
		stableDecimals: cfg.StableDecimals,
		showWhales:     cfg.ShowWhales,
	}

	a.logger.Info().
		Str("accountID", a.accountID).
		Str("lending", a.contracts.Lending).
		Bool("dryRun", a.executor.DryRun()).
		Msg("Agent created")

	return a, nil
}

func validateConfig(cfg Config) error {
	if cfg.Source == nil {
		return fmt.Errorf("source cannot be nil")
	}
	if cfg.Executor == nil {
		return fmt.Errorf("executor cannot be nil")
	}
	if cfg.Contracts.Lending == "" || cfg.Contracts.Oracle == "" {
		return fmt.Errorf("lending and oracle contracts are required")
	}
	if cfg.Contracts.Exchange == "" || cfg.Contracts.WrapNear == "" {
		return fmt.Errorf("exchange and wrapped NEAR contracts are required")
	}
	if cfg.AccountID == "" {
		return fmt.Errorf("account id cannot be empty")
	}
	if cfg.Params.MaxRebalanceIterations <= 0 {
		return fmt.Errorf("max rebalance iterations must be positive")
	}
	return nil
}

// RunLoop runs a liquidation cycle right away and then every interval until ctx is done.
// A cycle that submitted a liquidation is followed by a rebalance of the agent's account.
func (a *Agent) RunLoop(ctx context.Context, interval time.Duration) {
	a.logger.Info().
		Dur("interval", interval).
		Msg("Starting agent main loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("Agent loop stopped due to context cancellation")
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Agent) tick(ctx context.Context) {
	a.cycleCount++
	a.logger.Info().Int("cycle", a.cycleCount).Msg("Initiating liquidation cycle")
	snapshot, err := a.RunCycle(ctx)
	if err != nil {
		a.logger.Error().Err(err).Int("cycle", a.cycleCount).Msg("Liquidation cycle failed")
		return
	}
	a.logger.Info().Int("cycle", a.cycleCount).Str("outcome", string(snapshot.Outcome)).Msg("Liquidation cycle completed")

	if snapshot.Outcome != types.OutcomeExecuted {
		return
	}
	if _, err := a.Rebalance(ctx); err != nil {
		a.logger.Error().Err(err).Msg("Rebalance after liquidation failed")
	}
}

// newCycle starts a snapshot and its logger.
func (a *Agent) newCycle(ctx context.Context, kind types.CycleKind) (types.CycleSnapshot, zerolog.Logger) {
	cycleID := uuid.New().String()
	cycleLogger := a.logger.With().Str("cycle_id", cycleID).Str("kind", string(kind)).Logger()

	snapshot := types.CycleSnapshot{
		CycleNumber:       a.getCycleNumber(ctx),
		CycleID:           cycleID,
		Kind:              kind,
		Timestamp:         time.Now().UTC(),
		ParamsID:          a.paramsID,
		Actions:           make([]types.Action, 0),
		TransactionHashes: make([]string, 0),
		DryRun:            a.executor.DryRun(),
		Errors:            make([]string, 0),
	}
	return snapshot, cycleLogger
}

// getCycleNumber increments the persistent cycle counter, falling back to a time-based
// number when there is no recorder or it fails.
func (a *Agent) getCycleNumber(ctx context.Context) int {
	if a.recorder == nil {
		return int(time.Now().Unix() % 1000000)
	}
	cycleNumber, err := a.recorder.IncrementCycleNumber(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to get cycle number from database, using fallback")
		return int(time.Now().Unix() % 1000000)
	}
	return cycleNumber
}

// finish stamps the duration, records metrics and saves the snapshot.
func (a *Agent) finish(ctx context.Context, snapshot *types.CycleSnapshot, cycleLogger zerolog.Logger) {
	snapshot.Duration = time.Since(snapshot.Timestamp).Milliseconds()
	observeCycle(*snapshot)

	if a.recorder != nil {
		id, err := a.recorder.SaveCycleSnapshot(ctx, *snapshot)
		if err != nil {
			cycleLogger.Error().Err(err).Msg("Failed to save cycle snapshot")
		} else {
			snapshot.SnapshotID = id
		}
	}

	cycleLogger.Info().
		Int("cycleNumber", snapshot.CycleNumber).
		Str("outcome", string(snapshot.Outcome)).
		Int64("durationMs", snapshot.Duration).
		Msg("--- Cycle Finished ---")
}

// fail marks the snapshot failed with err.
func fail(snapshot *types.CycleSnapshot, err error) {
	snapshot.Outcome = types.OutcomeFailed
	snapshot.Errors = append(snapshot.Errors, err.Error())
}
