package rules

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// smallArrayThreshold 非常量下标时提示边界检查的数组大小上限
const smallArrayThreshold = 10

// BufferOverflowRule 数组越界访问检测 (CWE-787/CWE-125)
// 数组大小来自单元内此前的声明：T a[N]、T a[] = {...}、std::array<T, N>，
// N 可以是字面量、#define 或 const 整型常量；只检查第一维
type BufferOverflowRule struct {
	core.BaseRule
}

// NewBufferOverflowRule 创建数组越界规则
func NewBufferOverflowRule() *BufferOverflowRule {
	return &BufferOverflowRule{
		BaseRule: core.NewBaseRule(
			"BUFFER-OVERFLOW-001",
			"Buffer Overflow",
			"Detects constant out-of-range array indices and unchecked indices on small arrays (CWE-787)",
		),
	}
}

// Check 运行规则
func (r *BufferOverflowRule) Check(ctx *core.AnalysisContext, out *core.Collector) error {
	core.Walk(ctx.Unit.Root, func(node *sitter.Node) bool {
		if node.Type() == "subscript_expression" {
			r.checkSubscript(ctx, node, out)
		}
		return true
	})
	return nil
}

func (r *BufferOverflowRule) checkSubscript(ctx *core.AnalysisContext, sub *sitter.Node, out *core.Collector) {
	base := core.StripParens(sub.ChildByFieldName("argument"))
	if base == nil || base.Type() != "identifier" {
		return
	}
	info := ctx.TypeOf(base)
	if info == nil || info.Pointers > 0 {
		return
	}
	if !info.Array && info.ArraySize < 0 {
		return
	}
	index := core.SubscriptIndex(sub)
	if index == nil {
		return
	}

	name := info.Name
	size := info.ArraySize
	if info.Param {
		// 数组形参退化为指针，声明的大小不可靠
		size = -1
	}
	value, constant := ctx.Types.ConstantValue(index)
	snippet := ctx.GetSourceText(sub)

	switch {
	case constant && value < 0:
		out.Add(r.NewFinding(ctx, sub, core.SeverityCritical,
			fmt.Sprintf("Buffer underflow: Array '%s' accessed with negative index %d.", name, value),
			"Use non-negative array indices:\n"+
				"  - Ensure index >= 0 before array access\n"+
				"  - Use unsigned types for array indices\n"+
				"  - Consider using std::vector with at() for bounds checking",
			snippet,
		))
	case size < 0:
		return
	case constant && value >= size:
		out.Add(r.NewFinding(ctx, sub, core.SeverityCritical,
			fmt.Sprintf("Buffer overflow: Array '%s' has size %d but accessed with index %d.", name, size, value),
			fmt.Sprintf("Ensure array index is within valid range [0, %d]:\n"+
				"  - Add bounds checking: if (index < size) { array[index] }\n"+
				"  - Use std::array or std::vector with at() for automatic bounds checking\n"+
				"  - Fix the constant index to be within valid range", size-1),
			snippet,
		))
	case !constant && size <= smallArrayThreshold:
		out.Add(r.NewFinding(ctx, sub, core.SeverityLow,
			fmt.Sprintf("Array '%s' accessed with non-constant index. Array has size %d. Consider adding bounds checking.", name, size),
			fmt.Sprintf("Add bounds checking for dynamic array access:\n"+
				"  - if (index >= 0 && index < %d) { array[index] }\n"+
				"  - Use std::array::at() or std::vector::at() for automatic bounds checking\n"+
				"  - Use assertions: assert(index >= 0 && index < size)", size),
			snippet,
		))
	}
}
