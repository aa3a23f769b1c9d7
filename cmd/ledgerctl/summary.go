package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledgerbot/internal/command"
	"ledgerbot/internal/core"
)

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary [YYYY/M]",
		Short: "Print the budget summary of a month",
		Long:  `Print the budget summary of the given month, or of the current month when omitted.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.openService(cmd.Context()); err != nil {
				return err
			}
			p := core.PeriodOf(a.service.Now())
			if len(args) == 1 {
				q := command.ParseBudgetQuery(command.KeywordQuery + " " + args[0])
				if q.Scope != command.ExplicitMonth {
					return fmt.Errorf("invalid month %q: want YYYY/M", args[0])
				}
				p = q.Period
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.service.SummaryReply(cmd.Context(), p))
			return nil
		},
	}
}
