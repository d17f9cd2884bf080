package rules

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// UninitializedVarRule 未初始化局部变量检测
// 只检查内建标量和指针类型；static/extern、引用、数组、auto 和类类型跳过
type UninitializedVarRule struct {
	core.BaseRule
}

// NewUninitializedVarRule 创建未初始化变量规则
func NewUninitializedVarRule() *UninitializedVarRule {
	return &UninitializedVarRule{
		BaseRule: core.NewBaseRule(
			"UNINIT-VAR-001",
			"Uninitialized Variable",
			"Detects local variables of primitive or pointer type declared without an initializer",
		),
	}
}

// Check 运行规则
func (r *UninitializedVarRule) Check(ctx *core.AnalysisContext, out *core.Collector) error {
	for _, body := range functionBodies(ctx) {
		core.Walk(body, func(node *sitter.Node) bool {
			switch node.Type() {
			case "lambda_expression", "class_specifier", "struct_specifier":
				return false
			case "declaration":
				r.checkDeclaration(ctx, node, out)
				return false
			}
			return true
		})
	}
	return nil
}

func (r *UninitializedVarRule) checkDeclaration(ctx *core.AnalysisContext, decl *sitter.Node, out *core.Collector) {
	for i := 0; i < int(decl.ChildCount()); i++ {
		if decl.FieldNameForChild(i) != "declarator" {
			continue
		}
		d := decl.Child(i)
		if d.Type() == "init_declarator" {
			continue
		}
		nameNode, _, _, _ := core.DeclaratorName(d)
		if nameNode == nil {
			continue
		}
		info := ctx.TypeOf(nameNode)
		if info == nil || info.Static || info.Extern || info.Reference || info.Array {
			continue
		}
		if info.Type == "auto" || info.Type == "" {
			continue
		}
		if info.Pointers == 0 && !ctx.Types.IsScalar(info.Type) {
			continue
		}

		name := ctx.GetSourceText(nameNode)
		typeName := typeDisplay(info.Type, info.Pointers)
		out.Add(r.NewFinding(ctx, nameNode, core.SeverityHigh,
			fmt.Sprintf("Variable '%s' of type '%s' is declared but not initialized. Using uninitialized variables leads to undefined behavior", name, typeName),
			fmt.Sprintf("Initialize the variable at declaration, e.g., '%s %s = <value>;' or use '{}' for zero-initialization: '%s %s{};'", typeName, name, typeName, name),
			ctx.GetSourceText(decl),
		))
	}
}
