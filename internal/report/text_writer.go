package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

var severityAttrs = map[core.Severity][]color.Attribute{
	core.SeverityCritical:   {color.Bold, color.FgRed},
	core.SeverityHigh:       {color.FgRed},
	core.SeverityMedium:     {color.FgYellow},
	core.SeverityLow:        {color.FgCyan},
	core.SeveritySuggestion: {color.FgGreen},
}

// TextWriter 文本格式报告写入器
type TextWriter struct {
	writer    io.Writer
	verbose   bool
	showColor bool
}

// NewTextWriter 创建新的文本写入器
func NewTextWriter(writer io.Writer, options ...TextOption) *TextWriter {
	w := &TextWriter{
		writer: writer,
	}

	for _, opt := range options {
		opt(w)
	}

	return w
}

// TextOption 文本选项
type TextOption func(*TextWriter)

// WithVerbose 输出扫描统计和规则耗时
func WithVerbose() TextOption {
	return func(w *TextWriter) {
		w.verbose = true
	}
}

// WithColor 启用彩色输出，不再检查终端，由调用方决定
func WithColor() TextOption {
	return func(w *TextWriter) {
		w.showColor = true
	}
}

// Write 生成并写入文本报告
func (w *TextWriter) Write(result *ScanResult) error {
	w.writeHeader()
	w.writeSummary(result)

	if w.verbose {
		w.writeStatistics(result)
	}

	if len(result.Findings) == 0 {
		fmt.Fprintf(w.writer, "✓ No issues found! Your code looks good.\n")
		return nil
	}

	w.writeFindings(result)
	return nil
}

// writeHeader 写入报告标题
func (w *TextWriter) writeHeader() {
	fmt.Fprintf(w.writer, "\n")
	fmt.Fprintf(w.writer, "╔══════════════════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(w.writer, "║         C++ Code Review Report - Analysis Complete                   ║\n")
	fmt.Fprintf(w.writer, "╚══════════════════════════════════════════════════════════════════════╝\n")
	fmt.Fprintf(w.writer, "\n")
}

// writeSummary 写入按级别的统计
func (w *TextWriter) writeSummary(result *ScanResult) {
	counts := result.CountBySeverity()

	fmt.Fprintf(w.writer, "Summary:\n")
	fmt.Fprintf(w.writer, "  Total issues found: %d\n", len(result.Findings))
	fmt.Fprintf(w.writer, "  - Critical: %d\n", counts[core.SeverityCritical])
	fmt.Fprintf(w.writer, "  - High: %d\n", counts[core.SeverityHigh])
	fmt.Fprintf(w.writer, "  - Medium: %d\n", counts[core.SeverityMedium])
	fmt.Fprintf(w.writer, "  - Low: %d\n", counts[core.SeverityLow])
	fmt.Fprintf(w.writer, "  - Suggestions: %d\n", counts[core.SeveritySuggestion])
	fmt.Fprintf(w.writer, "\n")
}

// writeStatistics 写入扫描统计
func (w *TextWriter) writeStatistics(result *ScanResult) {
	fmt.Fprintf(w.writer, "Scan Statistics:\n")
	fmt.Fprintf(w.writer, "  Run ID: %s\n", result.ID)
	fmt.Fprintf(w.writer, "  Files scanned: %d\n", result.FilesScanned)
	fmt.Fprintf(w.writer, "  Files with issues: %d\n", result.FilesWithFindings())
	fmt.Fprintf(w.writer, "  Duration: %s\n", result.Duration)
	fmt.Fprintf(w.writer, "  Rules used: %d\n", len(result.RulesUsed))

	if len(result.RuleTimings) > 0 {
		// 使用 tabwriter 对齐规则耗时
		tw := tabwriter.NewWriter(w.writer, 0, 8, 2, ' ', 0)
		for _, t := range result.RuleTimings {
			fmt.Fprintf(tw, "    %s\t%s\n", t.RuleID, t.Duration)
		}
		tw.Flush()
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(w.writer, "  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(w.writer, "    - %s\n", e)
		}
	}
	fmt.Fprintf(w.writer, "\n")
}

// writeFindings 按收集顺序写入问题详情
func (w *TextWriter) writeFindings(result *ScanResult) {
	fmt.Fprintf(w.writer, "Detailed Issues:\n")
	fmt.Fprintf(w.writer, "%s\n", strings.Repeat("═", 71))

	for i, f := range result.Findings {
		fmt.Fprintf(w.writer, "\n[Issue #%d]\n", i+1)
		fmt.Fprintf(w.writer, "Location: %s\n", f.Location())
		fmt.Fprintf(w.writer, "Severity: %s\n", w.colorize(f.Severity))
		fmt.Fprintf(w.writer, "Rule ID: %s\n", f.RuleID)
		fmt.Fprintf(w.writer, "Description: %s\n", f.Description)

		if f.CodeSnippet != "" {
			fmt.Fprintf(w.writer, "Code:\n")
			fmt.Fprintf(w.writer, "  %s\n", f.CodeSnippet)
		}

		if f.Suggestion != "" {
			fmt.Fprintf(w.writer, "Suggestion: %s\n", f.Suggestion)
		}

		fmt.Fprintf(w.writer, "%s\n", strings.Repeat("─", 71))
	}

	fmt.Fprintf(w.writer, "\nAnalysis complete. Please review and fix the issues above.\n")
}

func (w *TextWriter) colorize(sev core.Severity) string {
	if !w.showColor {
		return sev.String()
	}
	c := color.New(severityAttrs[sev]...)
	c.EnableColor()
	return c.Sprint(sev.String())
}
