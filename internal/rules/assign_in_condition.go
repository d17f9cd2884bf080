package rules

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// AssignInConditionRule 条件中误用赋值检测
// if/while/do/for 条件的顶层表达式是单个 '=' 赋值时报告；
// 复合赋值不匹配，双层括号 if ((a = b)) 视为有意为之
type AssignInConditionRule struct {
	core.BaseRule
}

// NewAssignInConditionRule 创建条件赋值规则
func NewAssignInConditionRule() *AssignInConditionRule {
	return &AssignInConditionRule{
		BaseRule: core.NewBaseRule(
			"ASSIGN-COND-001",
			"Assignment In Condition",
			"Detects '=' used where '==' was probably intended in if/while/for conditions",
		),
	}
}

// Check 运行规则
func (r *AssignInConditionRule) Check(ctx *core.AnalysisContext, out *core.Collector) error {
	core.Walk(ctx.Unit.Root, func(node *sitter.Node) bool {
		switch node.Type() {
		case "if_statement", "while_statement", "do_statement", "for_statement":
		default:
			return true
		}

		cond := core.ConditionExpr(node)
		if cond == nil || cond.Type() != "assignment_expression" || ctx.Operator(cond) != "=" {
			return true
		}

		at := core.OperatorNode(cond)
		if at == nil {
			at = cond
		}
		out.Add(r.NewFinding(ctx, at, core.SeverityHigh,
			"Assignment operator (=) used in conditional expression. This is likely a bug - did you mean to use comparison operator (==)?",
			"Replace '=' with '==' for comparison. If assignment was intentional, make it explicit by adding extra parentheses: if ((a = b))",
			ctx.GetSourceText(cond),
		))
		return true
	})
	return nil
}
