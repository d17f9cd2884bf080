package rules

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

const overflowSuggestion = "Consider these approaches:\n" +
	"  - Use larger integer types (int64_t, long long)\n" +
	"  - Check for overflow before the operation using std::numeric_limits\n" +
	"  - Use compiler builtins: __builtin_add_overflow, __builtin_mul_overflow\n" +
	"  - Use safe integer libraries (e.g., SafeInt)"

const narrowingSuggestion = "To avoid data loss:\n" +
	"  - Check the value range before converting\n" +
	"  - Use a wider destination type\n" +
	"  - Use gsl::narrow or an explicit range check that reports failures"

// intType 表达式的整数类型信息
type intType struct {
	bits    int
	literal bool  // 无后缀字面量，宽度随另一操作数
	value   int64 // literal 为 true 时有效
}

// IntegerOverflowRule 整数溢出与窄化转换检测 (CWE-190)
type IntegerOverflowRule struct {
	core.BaseRule
}

// NewIntegerOverflowRule 创建整数溢出规则
func NewIntegerOverflowRule() *IntegerOverflowRule {
	return &IntegerOverflowRule{
		BaseRule: core.NewBaseRule(
			"INTEGER-OVERFLOW-001",
			"Integer Overflow",
			"Detects arithmetic on narrow integer types and narrowing integer conversions (CWE-190)",
		),
	}
}

// Check 运行规则
func (r *IntegerOverflowRule) Check(ctx *core.AnalysisContext, out *core.Collector) error {
	core.Walk(ctx.Unit.Root, func(node *sitter.Node) bool {
		switch node.Type() {
		case "binary_expression":
			switch ctx.Operator(node) {
			case "+", "-", "*":
				r.checkArithmetic(ctx, node, ctx.Operator(node), node.ChildByFieldName("left"), node.ChildByFieldName("right"), out)
			}
		case "assignment_expression":
			switch ctx.Operator(node) {
			case "+=", "-=", "*=":
				op := strings.TrimSuffix(ctx.Operator(node), "=")
				r.checkArithmetic(ctx, node, op, node.ChildByFieldName("left"), node.ChildByFieldName("right"), out)
			}
		case "cast_expression":
			r.checkNarrowing(ctx, node, node.ChildByFieldName("type"), node.ChildByFieldName("value"), out)
		case "call_expression":
			if ctx.IsNamedCast(node) && ctx.GetCallFunctionName(node) == "static_cast" {
				args := core.CallArguments(node)
				if len(args) == 1 {
					r.checkNarrowing(ctx, node, castTargetType(node), args[0], out)
				}
			}
		}
		return true
	})
	return nil
}

func (r *IntegerOverflowRule) checkArithmetic(ctx *core.AnalysisContext, node *sitter.Node, op string, left, right *sitter.Node, out *core.Collector) {
	lt, okL := r.typeOf(ctx, left)
	rt, okR := r.typeOf(ctx, right)
	if !okL || !okR || (lt.literal && rt.literal) {
		return
	}

	widest := 0
	for _, t := range []intType{lt, rt} {
		if !t.literal && t.bits > widest {
			widest = t.bits
		}
	}

	var severity core.Severity
	var width string
	switch {
	case widest <= 8:
		severity, width = core.SeverityHigh, "8-bit"
	case widest <= 16:
		severity, width = core.SeverityHigh, "16-bit"
	case widest == 32 && op == "*":
		severity, width = core.SeverityMedium, "32-bit"
	default:
		return
	}

	out.Add(r.NewFinding(ctx, node, severity,
		fmt.Sprintf("Potential integer overflow in %s with %s integer types. Consider using larger types or overflow checking.", operationName(op), width),
		overflowSuggestion,
		ctx.GetSourceText(node),
	))
}

func (r *IntegerOverflowRule) checkNarrowing(ctx *core.AnalysisContext, node, targetType, value *sitter.Node, out *core.Collector) {
	if targetType == nil || value == nil {
		return
	}
	targetText := ctx.GetSourceText(targetType)
	if strings.Contains(targetText, "*") || strings.Contains(targetText, "&") {
		return
	}
	target, ok := ctx.Types.IntegerBits(core.NormalizeTypeName(targetText))
	if !ok {
		return
	}
	src, ok := r.typeOf(ctx, value)
	if !ok {
		return
	}

	if src.literal {
		if fitsIn(src.value, target) {
			return
		}
		if !fitsIn(src.value, 32) {
			src.bits = 64
		}
	} else if src.bits <= target {
		return
	}

	out.Add(r.NewFinding(ctx, node, core.SeverityMedium,
		fmt.Sprintf("Narrowing integer conversion from %d-bit to %d-bit type may truncate data.", src.bits, target),
		narrowingSuggestion,
		ctx.GetSourceText(node),
	))
}

// typeOf 推断表达式的整数类型，非整数或未知返回 false
func (r *IntegerOverflowRule) typeOf(ctx *core.AnalysisContext, node *sitter.Node) (intType, bool) {
	node = core.StripParens(node)
	if node == nil {
		return intType{}, false
	}

	switch node.Type() {
	case "number_literal":
		text := ctx.GetSourceText(node)
		v, ok := core.ParseIntLiteral(text)
		if !ok {
			return intType{}, false
		}
		suffix := strings.ToLower(text[len(strings.TrimRight(text, "uUlL")):])
		if strings.Contains(suffix, "l") {
			return intType{bits: 64}, true
		}
		return intType{bits: 32, literal: true, value: v}, true
	case "identifier":
		info := ctx.TypeOf(node)
		if info == nil || info.Pointers > 0 || info.Array {
			return intType{}, false
		}
		bits, ok := ctx.Types.IntegerBits(info.Type)
		return intType{bits: bits}, ok
	case "subscript_expression":
		base := core.StripParens(node.ChildByFieldName("argument"))
		if base == nil || base.Type() != "identifier" {
			return intType{}, false
		}
		info := ctx.TypeOf(base)
		if info == nil || (!info.Array && info.Pointers != 1) {
			return intType{}, false
		}
		bits, ok := ctx.Types.IntegerBits(info.Type)
		return intType{bits: bits}, ok
	case "cast_expression":
		bits, ok := ctx.Types.IntegerBits(core.NormalizeTypeName(ctx.GetSourceText(node.ChildByFieldName("type"))))
		return intType{bits: bits}, ok
	case "call_expression":
		if ctx.IsNamedCast(node) && ctx.GetCallFunctionName(node) == "static_cast" {
			if t := castTargetType(node); t != nil {
				bits, ok := ctx.Types.IntegerBits(core.NormalizeTypeName(ctx.GetSourceText(t)))
				return intType{bits: bits}, ok
			}
		}
	case "binary_expression":
		switch ctx.Operator(node) {
		case "+", "-", "*", "/", "%", "&", "|", "^", "<<", ">>":
		default:
			return intType{}, false
		}
		lt, okL := r.typeOf(ctx, node.ChildByFieldName("left"))
		rt, okR := r.typeOf(ctx, node.ChildByFieldName("right"))
		if !okL || !okR {
			return intType{}, false
		}
		// 整数提升：结果至少 32 位
		return intType{bits: max(32, lt.bits, rt.bits)}, true
	}
	return intType{}, false
}

// castTargetType 返回 static_cast<T> 的 T
func castTargetType(call *sitter.Node) *sitter.Node {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return nil
	}
	args := fn.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return nil
	}
	return args.NamedChild(0)
}

func fitsIn(v int64, bits int) bool {
	if bits >= 64 {
		return true
	}
	lo := -(int64(1) << (bits - 1))
	hi := (int64(1) << bits) - 1
	return v >= lo && v <= hi
}

func operationName(op string) string {
	switch op {
	case "+":
		return "addition"
	case "-":
		return "subtraction"
	default:
		return "multiplication"
	}
}
