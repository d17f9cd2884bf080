package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikeywangzq/cpp-code-review/internal/fixer"
)

// FixOptions fix 命令参数
type FixOptions struct {
	MinSeverity string
	Interactive bool
	NoBackup    bool
	DryRun      bool
}

func newFixCmd(a *app) *cobra.Command {
	var opts FixOptions

	cmd := &cobra.Command{
		Use:                   "fix [paths]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Scan and automatically fix findings",
		Long: `Scan the given paths and apply the available automatic fixes.
	Every modified file is backed up as <file>.backup unless --no-backup is set;
	use "cpp-agent rollback" to restore them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFix(cmd, a, &opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.MinSeverity, "min-severity", "", "only fix findings at or above this severity (overrides fix.min_severity)")
	cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "confirm every fix before applying it")
	cmd.Flags().BoolVar(&opts.NoBackup, "no-backup", false, "do not create .backup files")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the fixes as a diff without modifying files")
	return cmd
}

func runFix(cmd *cobra.Command, a *app, opts *FixOptions, args []string) error {
	out := cmd.OutOrStdout()

	// 1. 命令行参数覆盖配置
	if opts.MinSeverity != "" {
		a.cfg.Fix.MinSeverity = opts.MinSeverity
	}
	if opts.Interactive {
		a.cfg.Fix.Interactive = true
	}
	if opts.NoBackup {
		disabled := false
		a.cfg.Fix.Backup = &disabled
	}
	minSeverity, err := a.cfg.FixMinSeverity()
	if err != nil {
		return err
	}

	// 2. 扫描
	s, err := a.newScanner()
	if err != nil {
		return err
	}
	result, err := s.Scan(cmd.Context(), pathsOrCurrent(args))
	if err != nil {
		return err
	}
	if len(result.Findings) == 0 {
		fmt.Fprintln(out, "✅ No issues found, nothing to fix.")
		return nil
	}

	// 3. 应用修复
	engineOpts := []fixer.Option{
		fixer.WithLogger(a.logger.Named("fixer")),
		fixer.WithBackup(a.cfg.Fix.BackupEnabled()),
	}
	if a.cfg.Fix.Interactive {
		engineOpts = append(engineOpts, fixer.WithInteractive(fixer.NewPromptConfirmer(cmd.InOrStdin(), out)))
	}
	if opts.DryRun {
		engineOpts = append(engineOpts, fixer.WithDryRun(out))
	}
	engine := fixer.NewEngine(engineOpts...)
	res := engine.FixAll(result.Findings, minSeverity)

	// 4. 汇总
	printFixResult(cmd, res, opts.DryRun, len(engine.Backups()))

	if !res.Success {
		return newExitError(exitFailure, fmt.Errorf("%d fix(es) failed", res.FailedCount))
	}
	return nil
}

func printFixResult(cmd *cobra.Command, res fixer.FixResult, dryRun bool, backups int) {
	out := cmd.OutOrStdout()

	title := "🔧 Fix summary"
	if dryRun {
		title += " (dry run)"
	}
	fmt.Fprintf(out, "\n%s: %s\n", title, res.Message)
	for _, f := range res.ModifiedFiles {
		fmt.Fprintf(out, "  ✏️  %s\n", f)
	}
	if backups > 0 {
		fmt.Fprintf(out, "💾 %d backup(s) created, run \"cpp-agent rollback\" to restore\n", backups)
	}
}
