package rules

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// UnsafeFunction 不安全函数的替代方案和原因
type UnsafeFunction struct {
	Alternative string
	Reason      string
}

// unsafeFunctions 不安全 C 函数表
var unsafeFunctions = map[string]UnsafeFunction{
	"strcpy":   {"std::string, strncpy, or strcpy_s", "No bounds checking - can cause buffer overflow"},
	"strcat":   {"std::string, strncat, or strcat_s", "No bounds checking - can cause buffer overflow"},
	"sprintf":  {"snprintf or std::stringstream", "No bounds checking - can cause buffer overflow"},
	"gets":     {"std::getline, fgets, or std::cin", "No bounds checking - extremely dangerous, removed in C11"},
	"scanf":    {"std::cin with width specifiers", "Can cause buffer overflow without width specifiers"},
	"vsprintf": {"vsnprintf", "No bounds checking - can cause buffer overflow"},
	"strncpy":  {"std::string or ensure null-termination", "May not null-terminate the result"},
	"strncat":  {"std::string", "Complex bounds checking required"},
}

// LookupUnsafeFunction 查询不安全函数表
func LookupUnsafeFunction(name string) (UnsafeFunction, bool) {
	fn, ok := unsafeFunctions[name]
	return fn, ok
}

// UnsafeCFunctionsRule 不安全 C 库函数调用检测
type UnsafeCFunctionsRule struct {
	core.BaseRule
}

// NewUnsafeCFunctionsRule 创建不安全函数规则
func NewUnsafeCFunctionsRule() *UnsafeCFunctionsRule {
	return &UnsafeCFunctionsRule{
		BaseRule: core.NewBaseRule(
			"UNSAFE-C-FUNC-001",
			"Unsafe C Function",
			"Detects calls to C library functions without bounds checking",
		),
	}
}

// Check 运行规则
func (r *UnsafeCFunctionsRule) Check(ctx *core.AnalysisContext, out *core.Collector) error {
	core.Walk(ctx.Unit.Root, func(node *sitter.Node) bool {
		if node.Type() != "call_expression" || !isPlainCall(node) {
			return true
		}
		name := ctx.GetCallFunctionName(node)
		info, ok := unsafeFunctions[name]
		if !ok {
			return true
		}

		out.Add(r.NewFinding(ctx, node, core.SeverityCritical,
			fmt.Sprintf("Use of unsafe C function '%s': %s", name, info.Reason),
			fmt.Sprintf("Replace '%s' with %s. In modern C++, prefer using std::string for string operations to avoid manual memory management", name, info.Alternative),
			ctx.GetSourceText(node),
		))
		return true
	})
	return nil
}
