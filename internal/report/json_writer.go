package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// JSONReport JSON 格式报告
type JSONReport struct {
	ID          string         `json:"id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Tool        ToolInfo       `json:"tool"`
	Summary     Summary        `json:"summary"`
	Findings    []core.Finding `json:"findings"`
	Statistics  Statistics     `json:"statistics"`
}

// ToolInfo 工具信息
type ToolInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Summary 问题统计摘要
type Summary struct {
	Total         int            `json:"total"`
	Critical      int            `json:"critical"`
	BySeverity    map[string]int `json:"by_severity"`
	ByRule        map[string]int `json:"by_rule"`
	FilesScanned  int            `json:"files_scanned"`
	FilesAffected int            `json:"files_affected"`
}

// Statistics 扫描统计
type Statistics struct {
	Duration    string           `json:"scan_duration"`
	RulesUsed   []RuleInfo       `json:"rules_used"`
	RuleTimings map[string]int64 `json:"rule_timings_ms,omitempty"`
	Errors      []string         `json:"errors,omitempty"`
}

// JSONWriter JSON 报告写入器
type JSONWriter struct {
	writer io.Writer
	pretty bool
}

// NewJSONWriter 创建新的 JSON 写入器
func NewJSONWriter(writer io.Writer, options ...JSONOption) *JSONWriter {
	w := &JSONWriter{
		writer: writer,
	}

	for _, opt := range options {
		opt(w)
	}

	return w
}

// JSONOption JSON 选项
type JSONOption func(*JSONWriter)

// WithPrettyJSON 启用美化 JSON 输出
func WithPrettyJSON() JSONOption {
	return func(w *JSONWriter) {
		w.pretty = true
	}
}

// Write 生成并写入报告
func (w *JSONWriter) Write(result *ScanResult) error {
	report := w.generateReport(result)

	var data []byte
	var err error

	if w.pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON report: %w", err)
	}

	_, err = w.writer.Write(append(data, '\n'))
	return err
}

// generateReport 生成报告数据
func (w *JSONWriter) generateReport(result *ScanResult) *JSONReport {
	report := &JSONReport{
		ID:          result.ID,
		GeneratedAt: time.Now(),
		Tool: ToolInfo{
			Name:        ToolName,
			Version:     ToolVersion,
			Description: "C/C++ static code review with taint analysis and auto-fix",
		},
		Summary: Summary{
			Total:         len(result.Findings),
			BySeverity:    make(map[string]int),
			ByRule:        make(map[string]int),
			FilesScanned:  result.FilesScanned,
			FilesAffected: result.FilesWithFindings(),
		},
		Findings: make([]core.Finding, len(result.Findings)),
		Statistics: Statistics{
			Duration:  result.Duration.String(),
			RulesUsed: result.RulesUsed,
			Errors:    result.Errors,
		},
	}

	for _, f := range result.Findings {
		report.Summary.BySeverity[f.Severity.String()]++
		report.Summary.ByRule[f.RuleID]++
		if f.Severity == core.SeverityCritical {
			report.Summary.Critical++
		}
	}

	// 按严重性排序，同级保持收集顺序
	copy(report.Findings, result.Findings)
	sort.SliceStable(report.Findings, func(i, j int) bool {
		return report.Findings[i].Severity > report.Findings[j].Severity
	})

	if len(result.RuleTimings) > 0 {
		report.Statistics.RuleTimings = make(map[string]int64, len(result.RuleTimings))
		for _, t := range result.RuleTimings {
			report.Statistics.RuleTimings[t.RuleID] = t.Duration.Milliseconds()
		}
	}

	return report
}
