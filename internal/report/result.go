package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

const (
	// ToolName 报告中的工具名
	ToolName = "cpp-code-review"
	// ToolVersion 工具版本
	ToolVersion = "2.0.0"
	// ToolURI 工具主页
	ToolURI = "https://github.com/mikeywangzq/cpp-code-review"
)

// RuleInfo 本次扫描启用的规则
type RuleInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewRuleInfos 从规则列表生成 RuleInfo
func NewRuleInfos(rules []core.Rule) []RuleInfo {
	infos := make([]RuleInfo, len(rules))
	for i, r := range rules {
		infos[i] = RuleInfo{ID: r.ID(), Name: r.Name(), Description: r.Description()}
	}
	return infos
}

// ScanResult 一次扫描的结果
type ScanResult struct {
	ID           string            `json:"id"`
	Tool         string            `json:"tool"`
	Version      string            `json:"version"`
	StartedAt    time.Time         `json:"started_at"`
	Duration     time.Duration     `json:"duration"`
	Files        []string          `json:"files"`
	FilesScanned int               `json:"files_scanned"`
	RulesUsed    []RuleInfo        `json:"rules_used"`
	Findings     []core.Finding    `json:"findings"`
	RuleTimings  []core.RuleTiming `json:"rule_timings,omitempty"`
	Errors       []string          `json:"errors,omitempty"`
}

// NewScanResult 创建带运行 ID 的空结果
func NewScanResult() *ScanResult {
	return &ScanResult{
		ID:        uuid.NewString(),
		Tool:      ToolName,
		Version:   ToolVersion,
		StartedAt: time.Now(),
	}
}

// Finish 记录扫描耗时
func (r *ScanResult) Finish() {
	r.Duration = time.Since(r.StartedAt)
}

// CountBySeverity 按级别统计
func (r *ScanResult) CountBySeverity() map[core.Severity]int {
	counts := make(map[core.Severity]int)
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}

// CriticalCount CRITICAL 级别的数量
func (r *ScanResult) CriticalCount() int {
	return r.CountBySeverity()[core.SeverityCritical]
}

// FilesWithFindings 有问题的文件数
func (r *ScanResult) FilesWithFindings() int {
	files := make(map[string]struct{})
	for _, f := range r.Findings {
		files[f.File] = struct{}{}
	}
	return len(files)
}
