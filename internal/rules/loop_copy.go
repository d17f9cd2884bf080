package rules

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// LoopCopyRule 循环中的昂贵拷贝检测
// 范围 for 的按值绑定，或循环体内从左值按值拷贝初始化的局部变量，
// 类型为容器/字符串或字段数超过 2 的结构体时报告
type LoopCopyRule struct {
	core.BaseRule
}

// NewLoopCopyRule 创建循环拷贝规则
func NewLoopCopyRule() *LoopCopyRule {
	return &LoopCopyRule{
		BaseRule: core.NewBaseRule(
			"LOOP-COPY-001",
			"Expensive Copy In Loop",
			"Detects by-value copies of containers, strings and large structs inside loops",
		),
	}
}

// Check 运行规则
func (r *LoopCopyRule) Check(ctx *core.AnalysisContext, out *core.Collector) error {
	core.Walk(ctx.Unit.Root, func(node *sitter.Node) bool {
		switch node.Type() {
		case "for_range_loop":
			r.checkRangeBinding(ctx, node, out)
			r.checkBody(ctx, node.ChildByFieldName("body"), out)
		case "for_statement", "while_statement", "do_statement":
			r.checkBody(ctx, node.ChildByFieldName("body"), out)
		}
		return true
	})
	return nil
}

// checkRangeBinding 检查 for (T x : range) 的按值绑定
func (r *LoopCopyRule) checkRangeBinding(ctx *core.AnalysisContext, loop *sitter.Node, out *core.Collector) {
	decl := loop.ChildByFieldName("declarator")
	nameNode, pointers, reference, _ := core.DeclaratorName(decl)
	if nameNode == nil || reference || pointers > 0 {
		return
	}

	typeName := core.NormalizeTypeName(ctx.GetSourceText(loop.ChildByFieldName("type")))
	if typeName == "auto" {
		elem, ok := r.rangeElementType(ctx, loop.ChildByFieldName("right"))
		if !ok {
			return
		}
		typeName = elem
	}
	if !ctx.Types.IsExpensiveToCopy(typeName) {
		return
	}

	name := ctx.GetSourceText(nameNode)
	out.Add(r.NewFinding(ctx, nameNode, core.SeverityMedium,
		fmt.Sprintf("Range-based for loop is copying elements. Each iteration copies the entire %s.", typeName),
		fmt.Sprintf("Use const reference in range-based for loop:\n  for (const auto& %s : container) { ... }\nOr use reference if you need to modify:\n  for (auto& %s : container) { ... }", name, name),
		ctx.TrimLine(loop),
	))
}

// rangeElementType 通过范围表达式的声明类型推断元素类型
func (r *LoopCopyRule) rangeElementType(ctx *core.AnalysisContext, rangeExpr *sitter.Node) (string, bool) {
	rangeExpr = core.StripParens(rangeExpr)
	if rangeExpr == nil || rangeExpr.Type() != "identifier" {
		return "", false
	}
	info := ctx.TypeOf(rangeExpr)
	if info == nil || info.Pointers > 0 {
		return "", false
	}
	if info.Array {
		return info.Type, true
	}
	return core.ElementType(ctx.Types.Resolve(info.Type))
}

// checkBody 检查循环体内的按值拷贝，嵌套循环由外层遍历单独处理
func (r *LoopCopyRule) checkBody(ctx *core.AnalysisContext, body *sitter.Node, out *core.Collector) {
	if body == nil {
		return
	}
	core.Walk(body, func(node *sitter.Node) bool {
		switch node.Type() {
		case "for_range_loop", "for_statement", "while_statement", "do_statement", "lambda_expression":
			return false
		case "declaration":
			r.checkLocalCopy(ctx, node, out)
			return false
		}
		return true
	})
}

func (r *LoopCopyRule) checkLocalCopy(ctx *core.AnalysisContext, decl *sitter.Node, out *core.Collector) {
	typeName := ctx.Types.NormalizeType(decl.ChildByFieldName("type"))
	for i := 0; i < int(decl.ChildCount()); i++ {
		if decl.FieldNameForChild(i) != "declarator" {
			continue
		}
		d := decl.Child(i)
		if d.Type() != "init_declarator" {
			continue
		}
		nameNode, pointers, reference, array := core.DeclaratorName(d)
		if nameNode == nil || pointers > 0 || reference || array {
			continue
		}
		value := d.ChildByFieldName("value")
		if !isLvalueCopySource(ctx, value) {
			continue
		}

		varType := typeName
		if varType == "auto" {
			varType = r.lvalueType(ctx, value)
		}
		if varType == "" || !ctx.Types.IsExpensiveToCopy(varType) {
			continue
		}

		name := ctx.GetSourceText(nameNode)
		out.Add(r.NewFinding(ctx, nameNode, core.SeverityMedium,
			fmt.Sprintf("Expensive copy operation in loop: Variable '%s' of type '%s' is being copied. This can significantly impact performance in tight loops.", name, varType),
			fmt.Sprintf("Use const reference to avoid copying:\n  const %s& %s = ...;\nOr use std::move if the original value is no longer needed:\n  %s %s = std::move(...);", varType, name, varType, name),
			ctx.GetSourceText(decl),
		))
	}
}

// isLvalueCopySource 初始化表达式是否为左值（标识符、下标、成员、解引用）
func isLvalueCopySource(ctx *core.AnalysisContext, value *sitter.Node) bool {
	value = core.StripParens(value)
	if value == nil {
		return false
	}
	switch value.Type() {
	case "identifier", "subscript_expression", "field_expression":
		return true
	case "pointer_expression":
		return ctx.Operator(value) == "*"
	}
	return false
}

// lvalueType 推断 auto 拷贝源的类型
func (r *LoopCopyRule) lvalueType(ctx *core.AnalysisContext, value *sitter.Node) string {
	value = core.StripParens(value)
	switch value.Type() {
	case "identifier":
		if info := ctx.TypeOf(value); info != nil && info.Pointers == 0 && !info.Array {
			return info.Type
		}
	case "subscript_expression":
		base := core.StripParens(value.ChildByFieldName("argument"))
		if base == nil || base.Type() != "identifier" {
			return ""
		}
		info := ctx.TypeOf(base)
		if info == nil {
			return ""
		}
		if info.Array || info.Pointers == 1 {
			return info.Type
		}
		if elem, ok := core.ElementType(ctx.Types.Resolve(info.Type)); ok {
			return elem
		}
	}
	return ""
}
