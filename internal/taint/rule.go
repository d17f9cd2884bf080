package taint

import (
	"errors"
	"fmt"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// RuleID 污点分析规则 ID
const RuleID = "TAINT-ANALYSIS-001"

var ruleInfo = core.NewBaseRule(
	RuleID,
	"Data Flow Taint Analysis",
	"Tracks untrusted data from input sources to SQL, command, path and format-string sinks",
)

// Rule 把污点分析器接入规则调度器
// 每个函数定义使用同一个分析器依次分析，分析器在函数入口重置状态
type Rule struct {
	core.BaseRule
	opts []Option
}

// NewRule 创建污点分析规则
func NewRule(opts ...Option) *Rule {
	return &Rule{BaseRule: ruleInfo, opts: opts}
}

// Check 运行规则；单个函数深度超限不影响其他函数
func (r *Rule) Check(ctx *core.AnalysisContext, out *core.Collector) error {
	funcs, err := ctx.QueryNodes("(function_definition) @func")
	if err != nil {
		return fmt.Errorf("query functions: %w", err)
	}

	analyzer := NewAnalyzer(ctx, r.opts...)
	for _, fn := range funcs {
		if err := analyzer.AnalyzeFunction(fn, out); err != nil && !errors.Is(err, ErrDepthExceeded) {
			return err
		}
	}
	return nil
}
