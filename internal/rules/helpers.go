package rules

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// isNullLiteral 判断节点（已去除括号和转换）是否为空指针字面量
func isNullLiteral(ctx *core.AnalysisContext, node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Type() {
	case "null", "nullptr":
		return true
	case "identifier":
		switch ctx.GetSourceText(node) {
		case "NULL", "__null", "nullptr":
			return true
		}
	case "number_literal":
		text := ctx.GetSourceText(node)
		if strings.ContainsAny(text, ".eEpP") && !strings.HasPrefix(strings.ToLower(text), "0x") {
			return false
		}
		v, ok := core.ParseIntLiteral(text)
		return ok && v == 0
	}
	return false
}

// variableName 取表达式对应的变量名：标识符、成员、下标基址和解引用目标
func variableName(ctx *core.AnalysisContext, node *sitter.Node) string {
	node = ctx.StripParenCasts(node)
	if node == nil {
		return ""
	}
	switch node.Type() {
	case "identifier":
		return ctx.GetSourceText(node)
	case "field_expression":
		return ctx.GetSourceText(node.ChildByFieldName("field"))
	case "subscript_expression":
		return variableName(ctx, node.ChildByFieldName("argument"))
	case "pointer_expression":
		if ctx.Operator(node) == "*" {
			return variableName(ctx, node.ChildByFieldName("argument"))
		}
	}
	return ""
}

// identifierName 只在表达式是简单标识符时返回名称
func identifierName(ctx *core.AnalysisContext, node *sitter.Node) string {
	node = ctx.StripParenCasts(node)
	if node != nil && node.Type() == "identifier" {
		return ctx.GetSourceText(node)
	}
	return ""
}

// isPlainCall 判断调用的被调用者是普通函数名或 std:: 限定名（排除成员调用）
func isPlainCall(call *sitter.Node) bool {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return false
	}
	switch fn.Type() {
	case "identifier", "qualified_identifier":
		return true
	}
	return false
}

// typeDisplay 组合类型文本和指针层数，例如 "char *"
func typeDisplay(typeName string, pointers int) string {
	if pointers == 0 {
		return typeName
	}
	return typeName + " " + strings.Repeat("*", pointers)
}

// isSmartPointerType 类型是否已是拥有型智能指针
func isSmartPointerType(typeName string) bool {
	return strings.Contains(typeName, "unique_ptr") ||
		strings.Contains(typeName, "shared_ptr") ||
		strings.Contains(typeName, "weak_ptr")
}

// functionBodies 返回单元中所有函数体
func functionBodies(ctx *core.AnalysisContext) []*sitter.Node {
	var bodies []*sitter.Node
	core.Walk(ctx.Unit.Root, func(n *sitter.Node) bool {
		if n.Type() == "function_definition" {
			if body := n.ChildByFieldName("body"); body != nil {
				bodies = append(bodies, body)
			}
			return false
		}
		return true
	})
	return bodies
}
