package main

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/burrowland/liquidator/internal/planner"
	"github.com/burrowland/liquidator/internal/router"

	"github.com/spf13/cobra"
)

func quoteCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "quote",
		Short: "Finds the best swap route on the exchange",
		RunE:  quoteFunc,
	}
	flags := c.Flags()
	flags.String("in", "", "input token account id")
	flags.String("out", "", "output token account id")
	flags.String("amount", "", "amount in the token's smallest unit: input, or output with --inverse")
	flags.Bool("inverse", false, "quote the input needed for an exact output amount")
	_ = c.MarkFlagRequired("in")
	_ = c.MarkFlagRequired("out")
	_ = c.MarkFlagRequired("amount")
	return c
}

func quoteFunc(c *cobra.Command, args []string) error {
	flags := c.Flags()
	in, err := flags.GetString("in")
	if err != nil {
		return err
	}
	out, err := flags.GetString("out")
	if err != nil {
		return err
	}
	amountStr, err := flags.GetString("amount")
	if err != nil {
		return err
	}
	inverse, err := flags.GetBool("inverse")
	if err != nil {
		return err
	}
	amount, ok := sdkmath.NewIntFromString(amountStr)
	if !ok || !amount.IsPositive() {
		return errors.New("amount must be a positive integer")
	}

	ctx := c.Context()
	a, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	graph, err := a.agent.Graph(ctx)
	if err != nil {
		return err
	}

	var plan router.SwapPlan
	if inverse {
		plan, err = graph.FindBestInverseReturn(in, out, planner.BuyInputCeiling, amount)
	} else {
		plan, err = graph.FindBestReturn(in, out, amount)
	}
	if err != nil {
		return err
	}

	w := c.OutOrStdout()
	fmt.Fprintf(w, "Route: %s\n", plan.Describe())
	fmt.Fprintf(w, "Amount in:  %s %s\n", plan.AmountIn, plan.InTokenAccountID)
	fmt.Fprintf(w, "Amount out: %s %s\n", plan.AmountOut, plan.OutTokenAccountID)
	if inverse {
		fmt.Fprintf(w, "Requested:  %s %s\n", plan.ExpectedAmountOut, plan.OutTokenAccountID)
	}
	return nil
}
