package report

import (
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// SARIFWriter SARIF 格式报告写入器
type SARIFWriter struct {
	writer io.Writer
	pretty bool
}

// NewSARIFWriter 创建新的 SARIF 写入器
func NewSARIFWriter(writer io.Writer, options ...SARIFOption) *SARIFWriter {
	w := &SARIFWriter{
		writer: writer,
	}

	for _, opt := range options {
		opt(w)
	}

	return w
}

// SARIFOption SARIF 选项
type SARIFOption func(*SARIFWriter)

// WithPrettySARIF 启用美化 JSON 输出
func WithPrettySARIF() SARIFOption {
	return func(w *SARIFWriter) {
		w.pretty = true
	}
}

// Write 生成并写入 SARIF 报告
func (w *SARIFWriter) Write(result *ScanResult) error {
	report, err := w.generateSARIFReport(result)
	if err != nil {
		return err
	}

	if w.pretty {
		err = report.PrettyWrite(w.writer)
	} else {
		err = report.Write(w.writer)
	}
	if err != nil {
		return fmt.Errorf("failed to write SARIF report: %w", err)
	}
	return nil
}

// generateSARIFReport 生成 SARIF 2.1.0 报告
func (w *SARIFWriter) generateSARIFReport(result *ScanResult) (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(ToolName, ToolURI)
	version := result.Version
	run.Tool.Driver.Version = &version
	id := result.ID
	run.AutomationDetails = &sarif.RunAutomationDetails{ID: &id}

	// 第1步：规则定义，默认级别取该规则发现的最高级别
	highest := make(map[string]core.Severity)
	for _, f := range result.Findings {
		if sev, ok := highest[f.RuleID]; !ok || f.Severity > sev {
			highest[f.RuleID] = f.Severity
		}
	}
	declared := make(map[string]bool)
	for _, info := range result.RulesUsed {
		w.addRule(run, info.ID, info.Name, info.Description, highest)
		declared[info.ID] = true
	}

	// 第2步：结果
	for _, f := range result.Findings {
		if !declared[f.RuleID] {
			w.addRule(run, f.RuleID, f.RuleID, f.RuleID, highest)
			declared[f.RuleID] = true
		}

		region := sarif.NewRegion().WithStartLine(f.Line)
		if f.Column > 0 {
			region = region.WithStartColumn(f.Column)
		}
		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(f.File)).
				WithRegion(region),
		)

		message := f.Description
		if f.Suggestion != "" {
			message += "\n\n" + f.Suggestion
		}
		res := sarif.NewRuleResult(f.RuleID).
			WithMessage(sarif.NewTextMessage(message)).
			WithLevel(SARIFLevel(f.Severity)).
			WithLocations([]*sarif.Location{location})
		run.AddResult(res)
	}

	report.AddRun(run)
	return report, nil
}

func (w *SARIFWriter) addRule(run *sarif.Run, id, name, description string, highest map[string]core.Severity) {
	rule := run.AddRule(id).
		WithName(name).
		WithDescription(description)
	if sev, ok := highest[id]; ok {
		rule.WithDefaultConfiguration(&sarif.ReportingConfiguration{
			Level: SARIFLevel(sev),
		})
	}
}

// SARIFLevel 映射严重性到 SARIF 级别
func SARIFLevel(sev core.Severity) string {
	switch sev {
	case core.SeverityCritical, core.SeverityHigh:
		return "error"
	case core.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}
