package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var htmlTemplate = template.Must(template.New("report.html.tmpl").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	ParseFS(templateFS, "templates/report.html.tmpl"))

var severityLabels = map[core.Severity][2]string{
	core.SeverityCritical:   {"严重 (Critical)", "严重"},
	core.SeverityHigh:       {"高 (High)", "高"},
	core.SeverityMedium:     {"中 (Medium)", "中"},
	core.SeverityLow:        {"低 (Low)", "低"},
	core.SeveritySuggestion: {"建议 (Suggestion)", "建议"},
}

// severityCard 统计卡片
type severityCard struct {
	Severity string
	Label    string
	Short    string
	Count    int
}

// htmlData 模板数据
type htmlData struct {
	ID           string
	Tool         string
	Version      string
	GeneratedAt  string
	FilesScanned int
	Total        int
	Cards        []severityCard
	Findings     []core.Finding
}

// HTMLWriter HTML 报告写入器，所有文本由模板转义
type HTMLWriter struct {
	writer io.Writer
}

// NewHTMLWriter 创建 HTML 写入器
func NewHTMLWriter(writer io.Writer) *HTMLWriter {
	return &HTMLWriter{writer: writer}
}

// Write 生成并写入 HTML 报告
func (w *HTMLWriter) Write(result *ScanResult) error {
	counts := result.CountBySeverity()
	data := htmlData{
		ID:           result.ID,
		Tool:         result.Tool,
		Version:      result.Version,
		GeneratedAt:  time.Now().Format("2006-01-02 15:04:05"),
		FilesScanned: result.FilesScanned,
		Total:        len(result.Findings),
		Findings:     result.Findings,
	}
	for _, sev := range core.AllSeverities() {
		labels := severityLabels[sev]
		data.Cards = append(data.Cards, severityCard{
			Severity: sev.String(),
			Label:    labels[0],
			Short:    labels[1],
			Count:    counts[sev],
		})
	}

	if err := htmlTemplate.Execute(w.writer, data); err != nil {
		return fmt.Errorf("failed to render HTML report: %w", err)
	}
	return nil
}
