package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikeywangzq/cpp-code-review/internal/report"
	"github.com/mikeywangzq/cpp-code-review/internal/watch"
)

// WatchOptions watch 命令参数
type WatchOptions struct {
	Debounce time.Duration
	NoColor  bool
}

func newWatchCmd(a *app) *cobra.Command {
	var opts WatchOptions

	cmd := &cobra.Command{
		Use:                   "watch [dir]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Re-scan C/C++ files whenever they change",
		Args:                  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runWatch(cmd, a, &opts, dir)
		},
	}

	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "wait this long after the last change before scanning")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "disable colored text output")
	return cmd
}

func runWatch(cmd *cobra.Command, a *app, opts *WatchOptions, dir string) error {
	out := cmd.OutOrStdout()

	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	s, err := a.newScanner()
	if err != nil {
		return err
	}
	renderer := report.NewManager(report.WithFormat(report.FormatText), report.WithTextColor(colorEnabled(out, opts.NoColor)))

	handler := func(ctx context.Context, files []string) error {
		fmt.Fprintf(out, "\n🔄 %d file(s) changed, re-scanning...\n", len(files))
		result, err := s.Scan(ctx, files)
		if err != nil {
			return err
		}
		return renderer.Render(out, result)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := watch.New(dir, handler,
		watch.WithLogger(a.logger.Named("watch")),
		watch.WithDebounce(opts.Debounce),
		watch.WithExcludeDirs(a.cfg.ExcludeDirs),
	)
	fmt.Fprintf(out, "👀 Watching %s (Ctrl+C to stop)\n", dir)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
