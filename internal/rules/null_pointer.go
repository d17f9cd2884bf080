package rules

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// NullPointerRule 空指针解引用检测 (CWE-476)
// 只识别语法上的空值：nullptr、NULL、__null 和整数 0，
// 经过括号、C 风格转换和 static_cast/reinterpret_cast 之后被 *、->、[] 解引用
type NullPointerRule struct {
	core.BaseRule
}

// NewNullPointerRule 创建空指针解引用规则
func NewNullPointerRule() *NullPointerRule {
	return &NullPointerRule{
		BaseRule: core.NewBaseRule(
			"NULL-PTR-001",
			"Null Pointer Dereference",
			"Detects dereferences of literal null pointers (CWE-476)",
		),
	}
}

// Check 运行规则
func (r *NullPointerRule) Check(ctx *core.AnalysisContext, out *core.Collector) error {
	core.Walk(ctx.Unit.Root, func(node *sitter.Node) bool {
		operand := r.dereferencedOperand(ctx, node)
		if operand == nil || !isNullLiteral(ctx, ctx.StripParenCasts(operand)) {
			return true
		}

		out.Add(r.NewFinding(ctx, node, core.SeverityCritical,
			"Dereferencing a null pointer will cause undefined behavior and likely crash",
			"Check for null before dereferencing, or use smart pointers (std::unique_ptr, std::shared_ptr) which provide better safety guarantees",
			ctx.GetSourceText(operand),
		))
		return true
	})
	return nil
}

// dereferencedOperand 返回被解引用的表达式，节点不是解引用时返回 nil
func (r *NullPointerRule) dereferencedOperand(ctx *core.AnalysisContext, node *sitter.Node) *sitter.Node {
	switch node.Type() {
	case "pointer_expression":
		if ctx.Operator(node) == "*" {
			return node.ChildByFieldName("argument")
		}
	case "field_expression":
		if core.HasToken(node, "->") {
			return node.ChildByFieldName("argument")
		}
	case "subscript_expression":
		return node.ChildByFieldName("argument")
	}
	return nil
}
