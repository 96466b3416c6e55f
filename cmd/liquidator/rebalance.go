package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func rebalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rebalance",
		Short: "Converts the agent's own positions back to wrapped NEAR",
		RunE:  rebalanceFunc,
	}
}

func rebalanceFunc(c *cobra.Command, args []string) error {
	ctx := c.Context()
	a, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	snapshot, err := a.agent.Rebalance(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.OutOrStdout(), "Rebalance %s: %d actions, %d transactions\n",
		snapshot.Outcome, len(snapshot.Actions), len(snapshot.TransactionHashes))
	return nil
}
