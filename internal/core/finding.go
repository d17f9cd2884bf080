package core

import "fmt"

// Finding 表示规则发现的一个问题
type Finding struct {
	File        string   `json:"file"`
	Line        int      `json:"line"`
	Column      int      `json:"column"`
	Severity    Severity `json:"severity"`
	RuleID      string   `json:"rule_id"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion"`
	CodeSnippet string   `json:"code_snippet"`
}

// Location 返回 file:line:column 形式的位置
func (f Finding) Location() string {
	return fmt.Sprintf("%s:%d:%d", f.File, f.Line, f.Column)
}

// CollectorOption 收集器配置选项
type CollectorOption func(*Collector)

// WithSeverityOverrides 按规则 ID 覆盖严重级别（来自配置文件）
func WithSeverityOverrides(overrides map[string]Severity) CollectorOption {
	return func(c *Collector) {
		c.overrides = make(map[string]Severity, len(overrides))
		for id, sev := range overrides {
			c.overrides[id] = sev
		}
	}
}

// Collector 按插入顺序保存所有 Finding，只追加不去重
type Collector struct {
	findings  []Finding
	overrides map[string]Severity
}

// NewCollector 创建收集器
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add 追加一个 Finding，严重级别覆盖在此时生效
func (c *Collector) Add(f Finding) {
	if sev, ok := c.overrides[f.RuleID]; ok {
		f.Severity = sev
	}
	c.findings = append(c.findings, f)
}

// All 返回所有 Finding 的副本
func (c *Collector) All() []Finding {
	out := make([]Finding, len(c.findings))
	copy(out, c.findings)
	return out
}

// Count 返回 Finding 总数
func (c *Collector) Count() int {
	return len(c.findings)
}

// CriticalCount 返回 CRITICAL 级别的数量
func (c *Collector) CriticalCount() int {
	n := 0
	for _, f := range c.findings {
		if f.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// CountBySeverity 按级别统计
func (c *Collector) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, len(severityNames))
	for _, f := range c.findings {
		counts[f.Severity]++
	}
	return counts
}

// Filter 返回满足条件的 Finding
func (c *Collector) Filter(keep func(Finding) bool) []Finding {
	var out []Finding
	for _, f := range c.findings {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// AppendSuggestion 在已有建议后追加内容，原有建议保留
func (c *Collector) AppendSuggestion(index int, text string) error {
	if index < 0 || index >= len(c.findings) {
		return fmt.Errorf("finding index %d out of range [0, %d)", index, len(c.findings))
	}
	if text == "" {
		return nil
	}
	f := &c.findings[index]
	if f.Suggestion == "" {
		f.Suggestion = text
	} else {
		f.Suggestion += "\n\n" + text
	}
	return nil
}
