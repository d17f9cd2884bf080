package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikeywangzq/cpp-code-review/internal/fixer"
)

func newRollbackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:                   "rollback [paths]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Restore files from the .backup copies left by fix",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			// 1. 查找备份
			engine := fixer.NewEngine(fixer.WithLogger(a.logger.Named("fixer")))
			n, err := engine.DiscoverBackups(pathsOrCurrent(args))
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(out, "No backups found.")
				return nil
			}

			// 2. 恢复
			if err := engine.Rollback(); err != nil {
				return err
			}
			fmt.Fprintf(out, "↩️  Restored %d file(s)\n", n)
			return nil
		},
	}
}
