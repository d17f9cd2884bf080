package rules

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

var allocFunctions = map[string]bool{
	"malloc": true, "calloc": true, "realloc": true, "strdup": true, "strndup": true,
}

// allocation 一次堆分配
type allocation struct {
	name   string
	node   *sitter.Node // 变量名节点
	method string       // new / malloc / ...
}

// MemoryLeakRule 内存泄漏检测 (CWE-401)
// 每个函数独立分析，不区分分支：函数内任意位置的释放、返回或转存都会清除泄漏标记
type MemoryLeakRule struct {
	core.BaseRule
}

// NewMemoryLeakRule 创建内存泄漏规则
func NewMemoryLeakRule() *MemoryLeakRule {
	return &MemoryLeakRule{
		BaseRule: core.NewBaseRule(
			"MEMORY-LEAK-001",
			"Memory Leak",
			"Detects heap allocations never released, returned or stored elsewhere (CWE-401)",
		),
	}
}

// leakWalker 单个函数体的分析状态
type leakWalker struct {
	ctx         *core.AnalysisContext
	allocations []allocation
	released    map[string]bool
}

// Check 运行规则
func (r *MemoryLeakRule) Check(ctx *core.AnalysisContext, out *core.Collector) error {
	for _, body := range functionBodies(ctx) {
		w := &leakWalker{ctx: ctx, released: make(map[string]bool)}

		// 第1步：收集分配、释放、返回和转存
		w.collect(body)

		// 第2步：报告从未被清除的分配
		reported := make(map[string]bool)
		for _, a := range w.allocations {
			if w.released[a.name] || reported[a.name] {
				continue
			}
			reported[a.name] = true
			out.Add(r.leakFinding(ctx, a))
		}
	}
	return nil
}

func (r *MemoryLeakRule) leakFinding(ctx *core.AnalysisContext, a allocation) core.Finding {
	verb := "deleted"
	release := "'delete'"
	if a.method != "new" {
		verb = "freed"
		release = "'free'"
	}
	return r.NewFinding(ctx, a.node, core.SeverityHigh,
		fmt.Sprintf("Potential memory leak: Variable '%s' is allocated with '%s' but never %s. This will cause memory leak when the variable goes out of scope.", a.name, a.method, verb),
		fmt.Sprintf("Use %s to free the memory, or better yet, use smart pointers (std::unique_ptr or std::shared_ptr) for automatic memory management. Example: auto %s = std::make_unique<T>();", release, a.name),
		ctx.TrimLine(a.node),
	)
}

func (w *leakWalker) collect(body *sitter.Node) {
	core.Walk(body, func(node *sitter.Node) bool {
		switch node.Type() {
		case "lambda_expression":
			return false
		case "init_declarator":
			w.onInit(node)
		case "assignment_expression":
			w.onAssign(node)
		case "delete_expression":
			if name := w.releasedName(node); name != "" {
				w.released[name] = true
			}
		case "call_expression":
			if isPlainCall(node) && w.ctx.GetCallFunctionName(node) == "free" {
				if args := core.CallArguments(node); len(args) > 0 {
					if name := identifierName(w.ctx, args[0]); name != "" {
						w.released[name] = true
					}
				}
			}
		case "return_statement":
			w.onReturn(node)
		}
		return true
	})
}

func (w *leakWalker) releasedName(del *sitter.Node) string {
	for i := int(del.NamedChildCount()) - 1; i >= 0; i-- {
		if name := identifierName(w.ctx, del.NamedChild(i)); name != "" {
			return name
		}
	}
	return ""
}

// allocationMethod 判断表达式是否为堆分配，返回分配方式
func (w *leakWalker) allocationMethod(value *sitter.Node) string {
	value = w.ctx.StripParenCasts(value)
	if value == nil {
		return ""
	}
	switch value.Type() {
	case "new_expression":
		return "new"
	case "call_expression":
		if !isPlainCall(value) {
			return ""
		}
		if name := w.ctx.GetCallFunctionName(value); allocFunctions[name] {
			return name
		}
	}
	return ""
}

func (w *leakWalker) onInit(init *sitter.Node) {
	value := init.ChildByFieldName("value")
	nameNode, _, _, _ := core.DeclaratorName(init)
	if nameNode == nil || value == nil {
		return
	}
	name := w.ctx.GetSourceText(nameNode)

	if method := w.allocationMethod(value); method != "" {
		if info := w.ctx.TypeOf(nameNode); info != nil && isSmartPointerType(info.Type) {
			return
		}
		w.allocations = append(w.allocations, allocation{name: name, node: nameNode, method: method})
		return
	}

	// T* q = p; 所有权转移
	if src := identifierName(w.ctx, value); src != "" && src != name {
		w.released[src] = true
	}
}

func (w *leakWalker) onAssign(assign *sitter.Node) {
	if w.ctx.Operator(assign) != "=" {
		return
	}
	left := assign.ChildByFieldName("left")
	right := assign.ChildByFieldName("right")

	if method := w.allocationMethod(right); method != "" {
		if left.Type() == "identifier" {
			w.allocations = append(w.allocations, allocation{name: w.ctx.GetSourceText(left), node: left, method: method})
		}
		return
	}

	// obj->member = p; global = p; 所有权转移
	if src := identifierName(w.ctx, right); src != "" && src != identifierName(w.ctx, left) {
		w.released[src] = true
	}
}

func (w *leakWalker) onReturn(ret *sitter.Node) {
	core.Walk(ret, func(n *sitter.Node) bool {
		if n.Type() == "identifier" {
			w.released[w.ctx.GetSourceText(n)] = true
		}
		return true
	})
}
