package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mikeywangzq/cpp-code-review/internal/rules"
	"github.com/mikeywangzq/cpp-code-review/internal/taint"
)

func newRulesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:                   "rules",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "List the available rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			disabled := make(map[string]bool, len(a.cfg.DisabledRules))
			for _, id := range a.cfg.DisabledRules {
				disabled[id] = true
			}

			all := append(rules.All(), taint.NewRule())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tDESCRIPTION")
			for _, r := range all {
				status := "enabled"
				if disabled[r.ID()] {
					status = "disabled"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID(), r.Name(), status, r.Description())
			}
			return w.Flush()
		},
	}
}
