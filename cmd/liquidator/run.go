package main

import (
	"time"

	"github.com/burrowland/liquidator/internal/config"
	"github.com/burrowland/liquidator/internal/types"
	"github.com/burrowland/liquidator/internal/web"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	LOOP_INTERVAL = time.Minute
)

func runCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Runs the liquidation loop and serves the HTTP API",
		RunE:  runFunc,
	}
	flags := c.Flags()
	flags.Bool("once", false, "run a single liquidation cycle and exit")
	flags.Duration("interval", LOOP_INTERVAL, "time between liquidation cycles")
	return c
}

func runFunc(c *cobra.Command, args []string) error {
	once, err := c.Flags().GetBool("once")
	if err != nil {
		return err
	}
	interval, err := c.Flags().GetDuration("interval")
	if err != nil {
		return err
	}

	ctx := c.Context()
	a, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if once {
		snapshot, err := a.agent.RunCycle(ctx)
		if err != nil {
			return err
		}
		if snapshot.Outcome == types.OutcomeExecuted {
			if _, err := a.agent.Rebalance(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	// --- Start Web Server ---
	if config.WebPort != "" {
		var store web.Store
		if a.store != nil {
			store = a.store
		}
		var snapshots web.Snapshots
		if a.cache != nil {
			snapshots = a.cache
		}
		webServer := web.NewWebServer(config.WebPort, store, snapshots, config.DEFAULT_PARAMETERS_CONFIG_NAME)
		go func() {
			log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting HTTP API")
			if err := webServer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("Web server failed")
			}
		}()
	}

	log.Info().Str("interval", interval.String()).Msg("Starting liquidation loop")
	a.agent.RunLoop(ctx, interval)
	return nil
}
