package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format 报告格式类型
type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatSARIF Format = "sarif"
	FormatHTML  Format = "html"
	FormatAll   Format = "all"
)

var formatExtensions = map[Format]string{
	FormatJSON:  "json",
	FormatText:  "txt",
	FormatSARIF: "sarif",
	FormatHTML:  "html",
}

// Writer 报告写入器接口
type Writer interface {
	Write(result *ScanResult) error
}

// Manager 报告管理器
type Manager struct {
	format    Format
	outputDir string
	timestamp bool
	filename  string
	color     bool
	verbose   bool
}

// ManagerOption 管理器选项
type ManagerOption func(*Manager)

// WithFormat 设置报告格式
func WithFormat(format Format) ManagerOption {
	return func(m *Manager) {
		m.format = format
	}
}

// WithOutputDir 设置输出目录
func WithOutputDir(dir string) ManagerOption {
	return func(m *Manager) {
		m.outputDir = dir
	}
}

// WithTimestamp 添加时间戳到文件名
func WithTimestamp() ManagerOption {
	return func(m *Manager) {
		m.timestamp = true
	}
}

// WithFilename 设置自定义文件名
func WithFilename(filename string) ManagerOption {
	return func(m *Manager) {
		m.filename = filename
	}
}

// WithTextColor 控制台文本输出使用颜色，终端检测见 cmd 层
func WithTextColor(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.color = enabled
	}
}

// WithTextVerbose 文本输出包含扫描统计
func WithTextVerbose(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.verbose = enabled
	}
}

// NewManager 创建新的报告管理器
func NewManager(options ...ManagerOption) *Manager {
	m := &Manager{
		format:    FormatText,
		outputDir: ".",
	}

	for _, opt := range options {
		opt(m)
	}

	return m
}

// Format 当前格式
func (m *Manager) Format() Format {
	return m.format
}

// CreateWriter 创建报告写入器
func (m *Manager) CreateWriter(format Format, writer io.Writer) (Writer, error) {
	return m.createWriter(format, writer, m.color)
}

func (m *Manager) createWriter(format Format, writer io.Writer, color bool) (Writer, error) {
	switch format {
	case FormatJSON:
		return NewJSONWriter(writer, WithPrettyJSON()), nil
	case FormatText:
		var opts []TextOption
		if color {
			opts = append(opts, WithColor())
		}
		if m.verbose {
			opts = append(opts, WithVerbose())
		}
		return NewTextWriter(writer, opts...), nil
	case FormatSARIF:
		return NewSARIFWriter(writer, WithPrettySARIF()), nil
	case FormatHTML:
		return NewHTMLWriter(writer), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Render 把单一格式写到 w，用于控制台输出
func (m *Manager) Render(w io.Writer, result *ScanResult) error {
	if m.format == FormatAll {
		return fmt.Errorf("format %s cannot be rendered to a single stream", m.format)
	}
	writer, err := m.CreateWriter(m.format, w)
	if err != nil {
		return err
	}
	return writer.Write(result)
}

// Generate 生成报告文件，返回写入的路径
func (m *Manager) Generate(result *ScanResult) ([]string, error) {
	var outputFiles []string

	switch m.format {
	case FormatAll:
		formats := []Format{FormatJSON, FormatText, FormatSARIF, FormatHTML}
		for _, format := range formats {
			file, err := m.generateSingleFormat(result, format)
			if err != nil {
				return nil, err
			}
			outputFiles = append(outputFiles, file)
		}
	case FormatJSON, FormatText, FormatSARIF, FormatHTML:
		file, err := m.generateSingleFormat(result, m.format)
		if err != nil {
			return nil, err
		}
		outputFiles = append(outputFiles, file)
	default:
		return nil, fmt.Errorf("unsupported format: %s", m.format)
	}

	return outputFiles, nil
}

// generateSingleFormat 生成单个格式的报告
func (m *Manager) generateSingleFormat(result *ScanResult, format Format) (string, error) {
	if err := os.MkdirAll(m.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filePath := filepath.Join(m.outputDir, m.generateFilename(format))
	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	// 写文件时不带颜色
	writer, err := m.createWriter(format, file, false)
	if err != nil {
		return "", err
	}

	if err := writer.Write(result); err != nil {
		return "", fmt.Errorf("failed to write %s report: %w", format, err)
	}

	return filePath, nil
}

// generateFilename 生成文件名
func (m *Manager) generateFilename(format Format) string {
	ext := formatExtensions[format]

	if m.filename != "" {
		if m.format != FormatAll {
			return m.filename
		}
		return strings.TrimSuffix(m.filename, filepath.Ext(m.filename)) + "." + ext
	}

	baseName := "cpp_review_report"
	if m.timestamp {
		return fmt.Sprintf("%s_%s.%s", baseName, time.Now().Format("20060102_150405"), ext)
	}

	return fmt.Sprintf("%s.%s", baseName, ext)
}

// ParseFormat 解析格式字符串
func ParseFormat(formatStr string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(formatStr)) {
	case "json":
		return FormatJSON, nil
	case "text", "txt":
		return FormatText, nil
	case "sarif":
		return FormatSARIF, nil
	case "html":
		return FormatHTML, nil
	case "all":
		return FormatAll, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", formatStr)
	}
}

// SupportedFormats 获取支持的格式列表
func SupportedFormats() []Format {
	return []Format{FormatText, FormatJSON, FormatSARIF, FormatHTML, FormatAll}
}

// FormatDescription 获取格式描述
func FormatDescription(format Format) string {
	descriptions := map[Format]string{
		FormatJSON:  "JSON format - Machine-readable output",
		FormatText:  "Text format - Human-readable console output",
		FormatSARIF: "SARIF format - Static Analysis Results Interchange Format",
		FormatHTML:  "HTML format - Interactive report with severity filters",
		FormatAll:   "All formats - Generate reports in all supported formats",
	}

	if desc, ok := descriptions[format]; ok {
		return desc
	}

	return "Unknown format"
}
