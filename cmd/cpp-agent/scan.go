package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mikeywangzq/cpp-code-review/internal/git"
	"github.com/mikeywangzq/cpp-code-review/internal/report"
	"github.com/mikeywangzq/cpp-code-review/internal/scanner"
)

// ScanOptions scan 命令参数
type ScanOptions struct {
	Format           string
	OutputDir        string
	HTML             bool
	HTMLOutput       string
	Std              string
	Incremental      string
	Ref              string
	ChangedLinesOnly bool
	AI               bool
	NoColor          bool
	PRComment        bool
}

func newScanCmd(a *app) *cobra.Command {
	var opts ScanOptions

	cmd := &cobra.Command{
		Use:                   "scan [paths]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Scan C/C++ files or directories and report findings",
		Example: `  cpp-agent scan src/
  cpp-agent scan --format sarif --output-dir reports .
  cpp-agent scan --incremental branch --ref main --changed-lines-only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, a, &opts, args)
		},
	}
	bindScanFlags(cmd.Flags(), &opts)
	return cmd
}

func bindScanFlags(fs *pflag.FlagSet, opts *ScanOptions) {
	fs.StringVarP(&opts.Format, "format", "f", string(report.FormatText), "report format: text, json, sarif, html or all")
	fs.StringVarP(&opts.OutputDir, "output-dir", "o", "", "write report files to this directory instead of stdout")
	fs.BoolVar(&opts.HTML, "html", false, "also write an HTML report")
	fs.StringVar(&opts.HTMLOutput, "html-output", "", "HTML report path (overrides html_output_file)")
	fs.StringVar(&opts.Std, "std", "", "language standard, e.g. c++17 or c11 (overrides cpp_standard)")
	fs.StringVar(&opts.Incremental, "incremental", "", "only scan changed files: workspace, staged, branch, commit or pr")
	fs.StringVar(&opts.Ref, "ref", "", "branch or commit used by --incremental")
	fs.BoolVar(&opts.ChangedLinesOnly, "changed-lines-only", false, "with --incremental, only report findings on changed lines")
	fs.BoolVar(&opts.AI, "ai", false, "append AI enhanced suggestions")
	fs.BoolVar(&opts.NoColor, "no-color", false, "disable colored text output")
	fs.BoolVar(&opts.PRComment, "pr-comment", false, "print a pull request comment when running in CI")
}

func runScan(cmd *cobra.Command, a *app, opts *ScanOptions, args []string) error {
	out := cmd.OutOrStdout()

	// 1. 命令行参数覆盖配置
	applyScanOverrides(a, opts)

	format, err := report.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	if opts.ChangedLinesOnly && opts.Incremental == "" {
		return fmt.Errorf("--changed-lines-only requires --incremental")
	}

	// 2. 确定扫描范围
	paths := pathsOrCurrent(args)
	var scanOpts []scanner.Option
	if opts.Incremental != "" {
		changes, err := incrementalChanges(a, opts, paths)
		if err != nil {
			return err
		}
		if len(changes.Files) == 0 {
			fmt.Fprintln(out, "No changed C/C++ files to review.")
			return nil
		}
		paths = changes.Files
		if opts.ChangedLinesOnly {
			scanOpts = append(scanOpts, scanner.WithLineFilter(changes.Contains))
		}
	}

	e, err := a.newEnhancer()
	if err != nil {
		return err
	}
	if e != nil {
		scanOpts = append(scanOpts, scanner.WithEnhancer(e))
	}

	// 3. 扫描
	s, err := a.newScanner(scanOpts...)
	if err != nil {
		return err
	}
	result, err := s.Scan(cmd.Context(), paths)
	if err != nil {
		return err
	}

	// 4. 输出报告
	if err := writeReports(out, a, opts, format, result); err != nil {
		return err
	}

	// 5. CI 中的 PR 评论
	if opts.PRComment {
		if err := writePRComment(out, result); err != nil {
			return err
		}
	}

	if n := result.CriticalCount(); n > 0 {
		return newExitError(exitCritical, fmt.Errorf("%d critical issue(s) found", n))
	}
	return nil
}

func applyScanOverrides(a *app, opts *ScanOptions) {
	if opts.Std != "" {
		a.cfg.CppStandard = opts.Std
	}
	if opts.HTML {
		a.cfg.HTMLOutput = true
	}
	if opts.HTMLOutput != "" {
		a.cfg.HTMLOutput = true
		a.cfg.HTMLOutputFile = opts.HTMLOutput
	}
	if opts.AI {
		a.cfg.EnableAISuggestions = true
	}
}

// incrementalChanges 从第一个路径所在的仓库收集变更
func incrementalChanges(a *app, opts *ScanOptions, paths []string) (*git.Changes, error) {
	mode, err := git.ParseMode(opts.Incremental)
	if err != nil {
		return nil, err
	}
	repo, err := git.Open(paths[0], a.logger.Named("git"))
	if err != nil {
		return nil, err
	}
	changes, err := repo.Changes(mode, opts.Ref)
	if err != nil {
		return nil, fmt.Errorf("collect %s changes: %w", mode, err)
	}
	a.logger.Info("incremental scan", "mode", mode, "files", len(changes.Files))
	return changes, nil
}

func writeReports(out io.Writer, a *app, opts *ScanOptions, format report.Format, result *report.ScanResult) error {
	toStdout := opts.OutputDir == "" && format != report.FormatAll && format != report.FormatHTML

	if toStdout {
		m := report.NewManager(
			report.WithFormat(format),
			report.WithTextColor(colorEnabled(out, opts.NoColor)),
			report.WithTextVerbose(a.cfg.Verbose),
		)
		if err := m.Render(out, result); err != nil {
			return err
		}
	} else {
		outputDir := opts.OutputDir
		if outputDir == "" {
			outputDir = "."
		}
		m := report.NewManager(report.WithFormat(format), report.WithOutputDir(outputDir))
		files, err := m.Generate(result)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintf(out, "📄 Report written: %s\n", f)
		}
	}

	// 已经生成过 HTML 时不重复
	if a.cfg.HTMLOutput && format != report.FormatHTML && format != report.FormatAll {
		path, err := writeHTMLReport(a.cfg.HTMLOutputFile, opts.OutputDir, result)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "📄 HTML report written: %s\n", path)
	}
	return nil
}

// writeHTMLReport 相对路径放在 outputDir 下
func writeHTMLReport(file, outputDir string, result *report.ScanResult) (string, error) {
	if !filepath.IsAbs(file) && outputDir != "" {
		file = filepath.Join(outputDir, file)
	}
	m := report.NewManager(
		report.WithFormat(report.FormatHTML),
		report.WithOutputDir(filepath.Dir(file)),
		report.WithFilename(filepath.Base(file)),
	)
	files, err := m.Generate(result)
	if err != nil {
		return "", err
	}
	return files[0], nil
}

func writePRComment(out io.Writer, result *report.ScanResult) error {
	env, ok := git.DetectPREnvironment(os.Getenv)
	if !ok {
		return nil
	}

	var buf bytes.Buffer
	if err := report.NewManager(report.WithFormat(report.FormatText)).Render(&buf, result); err != nil {
		return err
	}
	fmt.Fprintln(out, git.PRComment(buf.String(), env))
	return nil
}

// colorEnabled 只有输出到终端时才着色，NO_COLOR 和 TERM=dumb 由 color.NoColor 处理
func colorEnabled(out io.Writer, disabled bool) bool {
	if disabled || color.NoColor {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
