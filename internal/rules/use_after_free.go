package rules

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// UseAfterFreeRule 释放后使用与重复释放检测 (CWE-416/CWE-415)
// 按文档顺序遍历函数体，维护已释放指针集合；重新赋值会移出集合，
// 以 return/throw/break/continue/goto 结束的代码块中的释放不影响块之后的代码
type UseAfterFreeRule struct {
	core.BaseRule
}

// NewUseAfterFreeRule 创建释放后使用规则
func NewUseAfterFreeRule() *UseAfterFreeRule {
	return &UseAfterFreeRule{
		BaseRule: core.NewBaseRule(
			"USE-AFTER-FREE-001",
			"Use After Free",
			"Detects pointers used or released again after delete/free (CWE-416, CWE-415)",
		),
	}
}

// uafWalker 单个函数体的分析状态
type uafWalker struct {
	rule     *UseAfterFreeRule
	ctx      *core.AnalysisContext
	out      *core.Collector
	freed    map[string]int // 变量名 -> 释放所在行
	reported map[string]bool
}

// Check 运行规则
func (r *UseAfterFreeRule) Check(ctx *core.AnalysisContext, out *core.Collector) error {
	for _, body := range functionBodies(ctx) {
		w := &uafWalker{
			rule:     r,
			ctx:      ctx,
			out:      out,
			freed:    make(map[string]int),
			reported: make(map[string]bool),
		}
		w.visit(body)
	}
	return nil
}

func (w *uafWalker) visit(node *sitter.Node) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "lambda_expression":
		return
	case "compound_statement":
		w.visitBlock(node)
		return
	case "delete_expression":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if name := identifierName(w.ctx, node.NamedChild(i)); name != "" {
				w.release(node, name)
				return
			}
		}
	case "call_expression":
		if isPlainCall(node) && w.ctx.GetCallFunctionName(node) == "free" {
			if args := core.CallArguments(node); len(args) == 1 {
				if name := identifierName(w.ctx, args[0]); name != "" {
					w.release(node, name)
					return
				}
			}
		}
		w.visit(node.ChildByFieldName("function"))
		for _, arg := range core.CallArguments(node) {
			if name := identifierName(w.ctx, arg); name != "" {
				w.use(arg, name, "passed to a function")
				continue
			}
			w.visit(arg)
		}
		return
	case "assignment_expression":
		w.visit(node.ChildByFieldName("right"))
		left := node.ChildByFieldName("left")
		if name := identifierName(w.ctx, left); name != "" && w.ctx.Operator(node) == "=" {
			w.forget(name)
			return
		}
		w.visit(left)
		return
	case "init_declarator":
		w.visit(node.ChildByFieldName("value"))
		if nameNode, _, _, _ := core.DeclaratorName(node); nameNode != nil {
			w.forget(w.ctx.GetSourceText(nameNode))
		}
		return
	case "pointer_expression":
		if w.ctx.Operator(node) == "*" {
			if name := identifierName(w.ctx, node.ChildByFieldName("argument")); name != "" {
				w.use(node, name, "dereferenced")
				return
			}
		}
	case "field_expression":
		if core.HasToken(node, "->") {
			if name := identifierName(w.ctx, node.ChildByFieldName("argument")); name != "" {
				w.use(node, name, "dereferenced")
				return
			}
		}
	case "subscript_expression":
		if name := identifierName(w.ctx, node.ChildByFieldName("argument")); name != "" {
			w.use(node, name, "dereferenced")
			w.visit(core.SubscriptIndex(node))
			return
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		w.visit(node.NamedChild(i))
	}
}

// visitBlock 处理代码块；以跳转语句结束的块，其中的释放不带到块之后
func (w *uafWalker) visitBlock(block *sitter.Node) {
	before := make(map[string]int, len(w.freed))
	for k, v := range w.freed {
		before[k] = v
	}

	for i := 0; i < int(block.NamedChildCount()); i++ {
		w.visit(block.NamedChild(i))
	}

	if endsWithJump(block) {
		w.freed = before
	}
}

func endsWithJump(block *sitter.Node) bool {
	n := int(block.NamedChildCount())
	for i := n - 1; i >= 0; i-- {
		last := block.NamedChild(i)
		if last.Type() == "comment" {
			continue
		}
		switch last.Type() {
		case "return_statement", "break_statement", "continue_statement", "goto_statement", "throw_statement":
			return true
		case "expression_statement":
			return last.NamedChildCount() > 0 && last.NamedChild(0).Type() == "throw_expression"
		}
		return false
	}
	return false
}

func (w *uafWalker) release(node *sitter.Node, name string) {
	line, _ := core.Position(node)
	if prev, ok := w.freed[name]; ok {
		w.out.Add(w.rule.NewFinding(w.ctx, node, core.SeverityCritical,
			fmt.Sprintf("Double free: Pointer '%s' is released again after being released at line %d.", name, prev),
			"Release each allocation exactly once:\n"+
				"  - Set pointer to nullptr after delete: delete ptr; ptr = nullptr;\n"+
				"  - Use smart pointers that automatically manage lifetime",
			w.ctx.GetSourceText(node),
		))
	}
	w.freed[name] = line
	delete(w.reported, name)
}

func (w *uafWalker) forget(name string) {
	delete(w.freed, name)
	delete(w.reported, name)
}

func (w *uafWalker) use(node *sitter.Node, name, how string) {
	line, ok := w.freed[name]
	if !ok || w.reported[name] {
		return
	}
	w.reported[name] = true
	w.out.Add(w.rule.NewFinding(w.ctx, node, core.SeverityCritical,
		fmt.Sprintf("Use-after-free: Pointer '%s' is %s after being deleted.", name, how),
		fmt.Sprintf("Pointer was deleted at line %d. Do not use pointers after deletion:\n"+
			"  - Set pointer to nullptr after delete: delete ptr; ptr = nullptr;\n"+
			"  - Use smart pointers that automatically manage lifetime\n"+
			"  - Add a check: if (ptr != nullptr) { use ptr }", line),
		w.ctx.GetSourceText(node),
	))
}
