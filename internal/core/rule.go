package core

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Rule 检测规则接口
// 规则在不同单元之间无状态，单元内的可变状态放在每次 Check 创建的 walker 中
type Rule interface {
	// ID 返回稳定的规则 ID，例如 NULL-PTR-001
	ID() string

	// Name 返回规则名称
	Name() string

	// Description 返回规则描述
	Description() string

	// Check 检查一个单元，把发现的问题写入 out
	Check(ctx *AnalysisContext, out *Collector) error
}

// BaseRule 基础规则，提供通用功能
type BaseRule struct {
	id          string
	name        string
	description string
}

// NewBaseRule 创建基础规则
func NewBaseRule(id, name, description string) BaseRule {
	return BaseRule{
		id:          id,
		name:        name,
		description: description,
	}
}

// ID 返回规则 ID
func (r BaseRule) ID() string {
	return r.id
}

// Name 返回规则名称
func (r BaseRule) Name() string {
	return r.name
}

// Description 返回规则描述
func (r BaseRule) Description() string {
	return r.description
}

// NewFinding 在节点位置创建 Finding
func (r BaseRule) NewFinding(ctx *AnalysisContext, node *sitter.Node, severity Severity, description, suggestion, snippet string) Finding {
	line, column := Position(node) // 转换为1基索引
	return Finding{
		File:        ctx.Unit.FilePath,
		Line:        line,
		Column:      column,
		Severity:    severity,
		RuleID:      r.id,
		Description: description,
		Suggestion:  suggestion,
		CodeSnippet: snippet,
	}
}

// RuleError 包装规则执行错误
type RuleError struct {
	RuleID string
	Err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// WrapError 包装规则错误
func WrapError(rule Rule, err error) error {
	return &RuleError{
		RuleID: rule.ID(),
		Err:    err,
	}
}
