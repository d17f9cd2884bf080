package rules

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// SmartPointerRule 建议用智能指针代替由 new 初始化的裸指针（仅 C++）
type SmartPointerRule struct {
	core.BaseRule
}

// NewSmartPointerRule 创建智能指针建议规则
func NewSmartPointerRule() *SmartPointerRule {
	return &SmartPointerRule{
		BaseRule: core.NewBaseRule(
			"SMART-PTR-001",
			"Smart Pointer Suggestion",
			"Suggests std::unique_ptr/std::shared_ptr for raw pointers initialized with new",
		),
	}
}

// Check 运行规则
func (r *SmartPointerRule) Check(ctx *core.AnalysisContext, out *core.Collector) error {
	if !ctx.IsCPP() {
		return nil
	}

	core.Walk(ctx.Unit.Root, func(node *sitter.Node) bool {
		if node.Type() != "init_declarator" {
			return true
		}
		value := ctx.StripParenCasts(node.ChildByFieldName("value"))
		if value == nil || value.Type() != "new_expression" {
			return true
		}
		nameNode, pointers, _, _ := core.DeclaratorName(node)
		if nameNode == nil {
			return true
		}
		info := ctx.TypeOf(nameNode)
		if info == nil || isSmartPointerType(info.Type) {
			return true
		}
		if pointers == 0 && info.Type != "auto" {
			return true
		}

		name := ctx.GetSourceText(nameNode)
		allocated := core.NormalizeTypeName(ctx.GetSourceText(value.ChildByFieldName("type")))
		if allocated == "" {
			allocated = "T"
		}
		var suggestion string
		if value.ChildByFieldName("declarator") != nil {
			// new T[n]
			suggestion = fmt.Sprintf("Replace with std::unique_ptr for exclusive ownership of the array:\n  auto %s = std::make_unique<%s[]>(n);\nOr prefer std::vector<%s> for dynamic arrays.", name, allocated, allocated)
		} else {
			suggestion = fmt.Sprintf("Replace with std::unique_ptr for exclusive ownership:\n  auto %s = std::make_unique<%s>();\nOr if the object is shared:\n  auto %s = std::make_shared<%s>();", name, allocated, name, allocated)
		}

		out.Add(r.NewFinding(ctx, nameNode, core.SeveritySuggestion,
			fmt.Sprintf("Consider using smart pointers instead of raw pointer '%s'. Smart pointers provide automatic memory management and prevent memory leaks.", name),
			suggestion,
			ctx.TrimLine(node),
		))
		return true
	})
	return nil
}
