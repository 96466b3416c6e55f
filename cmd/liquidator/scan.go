package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func scanCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "scan",
		Short: "Prints the accounts ranked by health and the best liquidation, without submitting",
		RunE:  scanFunc,
	}
	c.Flags().Int("top", 20, "number of ranked accounts to print")
	return c
}

func scanFunc(c *cobra.Command, args []string) error {
	top, err := c.Flags().GetInt("top")
	if err != nil {
		return err
	}

	ctx := c.Context()
	a, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := a.agent.Scan(ctx)
	if err != nil {
		return err
	}

	out := c.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tHEALTH\tDISCOUNT\tCOLLATERAL USD\tBORROWED USD")
	for i, acc := range result.Ranked {
		if i >= top {
			break
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			acc.AccountID,
			acc.HealthFactor.StringFixed(4),
			acc.Discount.StringFixed(4),
			acc.CollateralSum.Decimal.StringFixed(2),
			acc.BorrowedSum.Decimal.StringFixed(2),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d accounts scanned, %d failed, %d liquidatable\n",
		result.Scanned(), result.Failed(), len(result.Liquidatable))

	plan, ok := a.agent.BestPlan(result.Liquidatable)
	if !ok {
		fmt.Fprintln(out, "No liquidation passes the policy.")
		return nil
	}
	fmt.Fprintf(out, "Best liquidation: %s, profit $%s, health %s -> %s\n",
		plan.AccountID,
		plan.TotalPricedProfit.StringFixed(2),
		plan.OrigHealth.StringFixed(4),
		plan.Health.StringFixed(4),
	)
	return nil
}
