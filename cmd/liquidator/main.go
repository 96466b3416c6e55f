package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/burrowland/liquidator/internal/agent"
	"github.com/burrowland/liquidator/internal/cache"
	"github.com/burrowland/liquidator/internal/config"
	"github.com/burrowland/liquidator/internal/datafetcher"
	"github.com/burrowland/liquidator/internal/executor"
	"github.com/burrowland/liquidator/internal/logger"
	"github.com/burrowland/liquidator/internal/state"
	"github.com/burrowland/liquidator/internal/types"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// signer broadcasts live transactions. Key management is not part of this binary; builds
// that link a key store set it before main runs.
var signer executor.Signer

// app holds the dependencies shared by every command.
type app struct {
	params   types.EngineParameters
	paramsID *int64
	fetcher  *datafetcher.Fetcher
	cache    *cache.RedisCache
	store    *state.Store
	executor executor.Executor
	agent    *agent.Agent
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	c := &cobra.Command{
		Use:           "liquidator",
		Short:         "Liquidates unhealthy Burrow accounts and rebalances the proceeds on Ref Finance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.AddCommand(
		runCommand(),
		scanCommand(),
		rebalanceCommand(),
		quoteCommand(),
	)
	return c
}

// setup loads the configuration and connects everything a command needs. The returned
// function releases the connections.
func setup(ctx context.Context) (*app, func(), error) {
	// --- 1. Configuration ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}
	if err := config.LoadConfig(); err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if config.LogFile != "" {
		fileWriter, err := logger.FileWriter(config.LogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.Initialize(config.LogLevel, fileWriter)
	} else {
		logger.Initialize(config.LogLevel)
	}
	log.Info().Str("network", config.NearEnv).Str("mode", config.LiquidatorMode).Msg("Liquidator starting...")

	a := &app{}
	closers := []func(){}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- 2. Database (optional) ---
	dbCfg, withDB, err := config.LoadDBConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	if withDB {
		if err := state.InitDB(dbCfg); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		closers = append(closers, state.CloseDB)
		if err := state.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
		a.store = &state.Store{}
	} else {
		log.Warn().Msg("DB_NAME not set. Cycle history will not be persisted.")
	}

	// --- 3. Parameters ---
	base, paramsID, err := loadParameters(ctx, withDB)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	a.params, err = config.LoadEngineParameters(base)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("invalid parameter override: %w", err)
	}
	a.paramsID = paramsID

	// --- 4. Cache (optional) ---
	if config.RedisAddr != "" {
		c, err := cache.NewRedisCache(ctx, config.RedisAddr)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable. Continuing without cache.")
		} else {
			a.cache = c
			closers = append(closers, func() { _ = c.Close() })
		}
	}

	// --- 5. Chain access ---
	client := datafetcher.NewClient(config.NodeURL, config.RPCRequestsPerSecond)
	a.fetcher = datafetcher.NewFetcher(client, datafetcher.Contracts{
		Lending:  config.BurrowContractID,
		Oracle:   config.OracleContractID,
		Exchange: config.RefContractID,
	})

	if config.IsLive() {
		log.Warn().Msg("Initializing in LIVE mode. Real transactions will be broadcast.")
	}
	a.executor, err = executor.New(config.IsLive(), signer)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create executor: %w", err)
	}

	// --- 6. Agent ---
	cfg := agent.Config{
		Source:   a.fetcher,
		Executor: a.executor,
		Params:   a.params,
		ParamsID: a.paramsID,
		Contracts: agent.Contracts{
			Lending:  config.BurrowContractID,
			Oracle:   config.OracleContractID,
			Exchange: config.RefContractID,
			WrapNear: config.WrapNearID,
		},
		AccountID:      config.AccountID,
		StableDecimals: config.StableTokenDecimals,
		ShowWhales:     config.ShowWhales,
	}
	if a.store != nil {
		cfg.Recorder = a.store
	}
	if a.cache != nil {
		cfg.Cache = a.cache
	}
	a.agent, err = agent.New(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return a, cleanup, nil
}

// loadParameters returns the active parameter set, saving the defaults on first start.
func loadParameters(ctx context.Context, withDB bool) (types.EngineParameters, *int64, error) {
	if !withDB {
		return config.DefaultEngineParameters, nil, nil
	}

	stored, err := state.LoadActiveParameters(ctx, config.DEFAULT_PARAMETERS_CONFIG_NAME)
	if err == nil {
		log.Info().Int("version", stored.Version).Msg("Engine parameters loaded successfully.")
		return stored.Parameters, &stored.ParamsID, nil
	}
	if !errors.Is(err, state.ErrNotFound) {
		return types.EngineParameters{}, nil, fmt.Errorf("failed to load engine parameters: %w", err)
	}

	log.Warn().Msg("No active engine parameters, saving defaults.")
	defaults := config.DefaultEngineParameters
	id, err := state.SaveParameters(ctx, defaults, config.DEFAULT_PARAMETERS_CONFIG_NAME, config.DEFAULT_PARAMETERS_CONFIG_VERSION, true)
	if err != nil {
		return types.EngineParameters{}, nil, fmt.Errorf("failed to save initial default parameters: %w", err)
	}
	return defaults, &id, nil
}
