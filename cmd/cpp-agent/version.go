package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mikeywangzq/cpp-code-review/internal/report"
)

// 构建时通过 -ldflags 注入
var (
	BuildTime = "unknown"
	Commit    = "unknown"
)

// newVersionCmd 打印版本信息
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "version",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s v%s\n", report.ToolName, report.ToolVersion)
			fmt.Fprintf(out, "Commit: %s\n", Commit)
			fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
			fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
		},
	}
}
