package taint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// DefaultMaxDepth 语法树递归深度上限
const DefaultMaxDepth = 256

// ErrDepthExceeded 递归深度超过上限，当前函数的分析被放弃
var ErrDepthExceeded = errors.New("taint analysis recursion depth exceeded")

// nodeHandler 按节点类型注册的处理函数
type nodeHandler func(a *Analyzer, node *sitter.Node, depth int)

// Option 分析器选项
type Option func(*Analyzer)

// WithMaxDepth 设置递归深度上限
func WithMaxDepth(depth int) Option {
	return func(a *Analyzer) {
		if depth > 0 {
			a.maxDepth = depth
		}
	}
}

// WithLogger 设置日志
func WithLogger(logger hclog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Analyzer 单个函数体内的污点分析器
// 状态在每次 AnalyzeFunction 开始时重置
type Analyzer struct {
	ctx      *core.AnalysisContext
	rule     core.BaseRule
	maxDepth int
	logger   hclog.Logger
	handlers map[string]nodeHandler

	sources map[string]Source   // 被污染的变量名 -> 污点源
	traces  map[string][]string // 被污染的变量名 -> 传播路径
	paths   []Path
	out     *core.Collector
}

// NewAnalyzer 创建污点分析器
func NewAnalyzer(ctx *core.AnalysisContext, opts ...Option) *Analyzer {
	a := &Analyzer{
		ctx:      ctx,
		rule:     ruleInfo,
		maxDepth: DefaultMaxDepth,
		logger:   hclog.NewNullLogger(),
		handlers: make(map[string]nodeHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.registerDefaultHandlers()
	return a
}

// AddHandler 注册节点处理函数（仅在初始化阶段调用）
func (a *Analyzer) AddHandler(nodeType string, handler nodeHandler) {
	a.handlers[nodeType] = handler
}

// Paths 返回目前记录的全部污点路径
func (a *Analyzer) Paths() []Path {
	out := make([]Path, len(a.paths))
	copy(out, a.paths)
	return out
}

// IsTainted 变量名当前是否被污染
func (a *Analyzer) IsTainted(name string) bool {
	_, ok := a.sources[name]
	return ok
}

// AnalyzeFunction 分析一个函数定义，发现写入 out
// 深度超限时返回 ErrDepthExceeded，已写入的发现保留
func (a *Analyzer) AnalyzeFunction(funcDef *sitter.Node, out *core.Collector) error {
	a.sources = make(map[string]Source)
	a.traces = make(map[string][]string)
	a.out = out

	body := funcDef.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	if a.ctx.ExtractFunctionNameFromDef(funcDef) == "main" {
		a.seedMainParameters(funcDef)
	}

	if err := a.visit(body, 0); err != nil {
		name := a.ctx.ExtractFunctionNameFromDef(funcDef)
		line, _ := core.Position(funcDef)
		a.logger.Warn("taint analysis aborted", "file", a.ctx.Unit.FilePath,
			"function", name, "line", line, "max_depth", a.maxDepth)
		return fmt.Errorf("function %s: %w", name, err)
	}
	return nil
}

// visit 深度优先遍历，先处理当前节点再递归子节点
func (a *Analyzer) visit(node *sitter.Node, depth int) error {
	if node == nil {
		return nil
	}
	if depth > a.maxDepth {
		return ErrDepthExceeded
	}

	switch node.Type() {
	case "function_definition", "lambda_expression":
		// 嵌套函数单独分析
		return nil
	}

	if handler, ok := a.handlers[node.Type()]; ok {
		handler(a, node, depth)
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		if err := a.visit(node.NamedChild(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

// registerDefaultHandlers 注册默认的节点处理函数
func (a *Analyzer) registerDefaultHandlers() {
	// 赋值与复合赋值
	a.AddHandler("assignment_expression", func(a *Analyzer, node *sitter.Node, depth int) {
		left := node.ChildByFieldName("left")
		a.assign(left, node.ChildByFieldName("right"), a.ctx.Operator(node) == "=", depth)
	})

	// 带初始化的声明
	a.AddHandler("init_declarator", func(a *Analyzer, node *sitter.Node, depth int) {
		nameNode, _, _, _ := core.DeclaratorName(node)
		if nameNode == nil {
			return
		}
		a.assign(nameNode, node.ChildByFieldName("value"), true, depth)
	})

	// 函数调用：净化、汇点、输出参数型污点源
	a.AddHandler("call_expression", func(a *Analyzer, node *sitter.Node, depth int) {
		a.call(node, depth)
	})

	// std::cin >> x >> y
	a.AddHandler("binary_expression", func(a *Analyzer, node *sitter.Node, depth int) {
		if a.ctx.Operator(node) != ">>" || !a.isStdinExtraction(node) {
			return
		}
		a.markTainted(node.ChildByFieldName("right"), a.newSource("", UserInput, node, "Tainted data from std::cin"))
	})
}

// assign 处理 lhs = rhs；strong 为 true 表示普通赋值，可以清除标识符原有的污点
func (a *Analyzer) assign(lhs, rhs *sitter.Node, strong bool, depth int) {
	name := variableName(a.ctx, lhs)
	if name == "" || rhs == nil {
		return
	}

	if src, from, ok := a.taintedSource(rhs, depth); ok {
		a.propagate(from, name, src)
		return
	}

	if call := a.ctx.StripParenCasts(rhs); call != nil && call.Type() == "call_expression" {
		fn := a.ctx.GetCallFunctionName(call)
		if kind, ok := ClassifySource(fn); ok && !IsSanitizer(fn) {
			src := a.newSource(name, kind, call, "Tainted data from "+fn)
			a.sources[name] = src
			a.traces[name] = []string{name}
			a.logger.Debug("taint source", "variable", name, "function", fn, "line", src.Line)
			return
		}
	}

	// 普通赋值覆盖整个标识符；成员和数组元素的写入不清除
	if strong && core.StripParens(lhs).Type() == "identifier" {
		a.clear(name)
	}
}

func (a *Analyzer) propagate(from, to string, src Source) {
	if from == to {
		return
	}
	trace := append(append([]string(nil), a.traces[from]...), to)
	src.VariableName = to
	a.sources[to] = src
	a.traces[to] = trace
	a.logger.Trace("taint propagated", "from", from, "to", to)
}

func (a *Analyzer) clear(name string) {
	delete(a.sources, name)
	delete(a.traces, name)
}

// call 处理调用表达式
func (a *Analyzer) call(node *sitter.Node, depth int) {
	fn := a.ctx.GetCallFunctionName(node)
	if fn == "" {
		return
	}
	args := core.CallArguments(node)

	// 第1步：净化函数清除全部实参的污点
	if IsSanitizer(fn) {
		for _, arg := range args {
			if name := variableName(a.ctx, arg); name != "" {
				a.clear(name)
			}
		}
		return
	}

	// 第2步：汇点检查
	if risk, ok := ClassifySink(fn); ok {
		a.checkSink(node, fn, risk, args, depth)
	}

	// 第3步：通过实参写入外部数据的污点源
	if spec, ok := outParamSources[strings.ToLower(fn)]; ok {
		kind, _ := ClassifySource(fn)
		first := spec.first
		if strings.EqualFold(fn, "getline") && len(args) > 0 && isAddressOf(a.ctx, args[0]) {
			// C 的 getline(&line, &n, stream)
			first = 0
		}
		for i := first; i < len(args); i++ {
			a.markTainted(args[i], a.newSource("", kind, node, "Tainted data from "+fn))
			if !spec.variadic {
				break
			}
		}
	}
}

func (a *Analyzer) checkSink(call *sitter.Node, fn string, risk Risk, args []*sitter.Node, depth int) {
	candidates := make([]int, 0, len(args))
	if risk == RiskFormatString {
		if idx := formatSinks[strings.ToLower(fn)]; idx < len(args) {
			candidates = append(candidates, idx)
		}
	} else {
		for i := range args {
			candidates = append(candidates, i)
		}
	}

	var (
		tainted []int
		first   Source
		trace   []string
	)
	for _, i := range candidates {
		src, from, ok := a.taintedSource(args[i], depth)
		if !ok {
			continue
		}
		if len(tainted) == 0 {
			first = src
			trace = append([]string(nil), a.traces[from]...)
		}
		tainted = append(tainted, i)
	}
	if len(tainted) == 0 {
		return
	}

	line, column := core.Position(call)
	sink := Sink{
		FunctionName:     fn,
		TaintedArguments: tainted,
		Line:             line,
		Column:           column,
		Risk:             risk,
		Severity:         risk.Severity(),
	}
	path := Path{Source: first, Propagation: trace, Sink: sink}
	a.paths = append(a.paths, path)
	a.report(call, path)
}

func (a *Analyzer) report(call *sitter.Node, path Path) {
	src, sink := path.Source, path.Sink
	description := fmt.Sprintf("Potential %s vulnerability: untrusted data from '%s' (line %d) flows into sensitive function '%s'",
		sink.Risk, src.VariableName, src.Line, sink.FunctionName)
	if len(path.Propagation) > 1 {
		description += fmt.Sprintf(" via %s", strings.Join(path.Propagation, " -> "))
	}
	a.out.Add(a.rule.NewFinding(a.ctx, call, sink.Severity, description, suggestionFor(path), a.ctx.GetSourceText(call)))
}

func suggestionFor(path Path) string {
	var b strings.Builder
	b.WriteString("Validate and sanitize the input data:\n")
	fmt.Fprintf(&b, "1. Validate '%s' immediately after line %d\n", path.Source.VariableName, path.Source.Line)
	b.WriteString("2. Use parameterized queries or prepared statements\n")
	b.WriteString("3. Apply the appropriate escaping function\n")
	b.WriteString("4. Enforce allowlist validation\n\n")
	b.WriteString("Example fix:\n")

	switch path.Sink.Risk {
	case RiskSQLInjection:
		b.WriteString("// Use a parameterized query\n")
		b.WriteString("sqlite3_prepare_v2(db, \"SELECT * FROM users WHERE id = ?\", -1, &stmt, nullptr);\n")
		b.WriteString("sqlite3_bind_text(stmt, 1, value.c_str(), -1, SQLITE_TRANSIENT);\n")
	case RiskCommandInjection:
		b.WriteString("// Validate the input against an allowlist\n")
		fmt.Fprintf(&b, "if (!isValidCommand(%s)) {\n", path.Source.VariableName)
		b.WriteString("    throw std::invalid_argument(\"Invalid command\");\n")
		b.WriteString("}\n")
	case RiskPathTraversal:
		b.WriteString("// Canonicalize the path and check it\n")
		fmt.Fprintf(&b, "std::filesystem::path safe_path = std::filesystem::canonical(%s);\n", path.Source.VariableName)
		b.WriteString("if (safe_path.string().rfind(\"/safe/directory/\", 0) != 0) {\n")
		b.WriteString("    throw std::invalid_argument(\"Invalid path\");\n")
		b.WriteString("}\n")
	case RiskFormatString:
		b.WriteString("// Never use untrusted data as the format string\n")
		fmt.Fprintf(&b, "printf(\"%%s\", %s);\n", path.Source.VariableName)
	}
	return b.String()
}

// markTainted 把可命名的表达式标记为污染
func (a *Analyzer) markTainted(node *sitter.Node, src Source) {
	name := variableName(a.ctx, node)
	if name == "" {
		return
	}
	src.VariableName = name
	a.sources[name] = src
	a.traces[name] = []string{name}
	a.logger.Debug("taint source", "variable", name, "line", src.Line)
}

func (a *Analyzer) newSource(name string, kind SourceKind, at *sitter.Node, description string) Source {
	line, column := core.Position(at)
	return Source{
		VariableName: name,
		Kind:         kind,
		Line:         line,
		Column:       column,
		Description:  description,
	}
}

// seedMainParameters main 的 argv/envp 在入口即被污染
func (a *Analyzer) seedMainParameters(funcDef *sitter.Node) {
	for _, param := range core.FunctionParameters(funcDef) {
		nameNode, _, _, _ := core.DeclaratorName(param.ChildByFieldName("declarator"))
		if nameNode == nil {
			continue
		}
		switch name := a.ctx.GetSourceText(nameNode); name {
		case "argv":
			a.markTainted(nameNode, a.newSource(name, UserInput, nameNode, "Tainted data from command line argument argv"))
		case "envp":
			a.markTainted(nameNode, a.newSource(name, Environment, nameNode, "Tainted data from environment envp"))
		}
	}
}

// isStdinExtraction 判断 >> 链最左端是否为 cin / std::cin
func (a *Analyzer) isStdinExtraction(node *sitter.Node) bool {
	left := node
	for left != nil && left.Type() == "binary_expression" && a.ctx.Operator(left) == ">>" {
		left = left.ChildByFieldName("left")
	}
	if left == nil {
		return false
	}
	switch a.ctx.GetSourceText(left) {
	case "cin", "std::cin", "wcin", "std::wcin":
		return true
	}
	return false
}

// taintedSource 判断表达式是否被污染，返回污点源和被污染的变量名
func (a *Analyzer) taintedSource(node *sitter.Node, depth int) (Source, string, bool) {
	if node == nil || depth > a.maxDepth {
		return Source{}, "", false
	}

	switch node.Type() {
	case "identifier", "field_expression", "subscript_expression", "pointer_expression":
		if name := variableName(a.ctx, node); name != "" {
			if src, ok := a.sources[name]; ok {
				return src, name, true
			}
		}
		return Source{}, "", false
	case "binary_expression":
		if src, name, ok := a.taintedSource(node.ChildByFieldName("left"), depth+1); ok {
			return src, name, true
		}
		return a.taintedSource(node.ChildByFieldName("right"), depth+1)
	case "conditional_expression":
		if src, name, ok := a.taintedSource(node.ChildByFieldName("consequence"), depth+1); ok {
			return src, name, true
		}
		return a.taintedSource(node.ChildByFieldName("alternative"), depth+1)
	case "parenthesized_expression":
		if node.NamedChildCount() > 0 {
			return a.taintedSource(node.NamedChild(0), depth+1)
		}
	case "cast_expression":
		return a.taintedSource(node.ChildByFieldName("value"), depth+1)
	case "argument_list", "initializer_list":
		// T x(y) / T x{y}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if src, name, ok := a.taintedSource(node.NamedChild(i), depth+1); ok {
				return src, name, true
			}
		}
	case "call_expression":
		if a.ctx.IsNamedCast(node) {
			if args := core.CallArguments(node); len(args) == 1 {
				return a.taintedSource(args[0], depth+1)
			}
			return Source{}, "", false
		}
		fn := node.ChildByFieldName("function")
		if fn != nil && fn.Type() == "field_expression" {
			switch a.ctx.GetSourceText(fn.ChildByFieldName("field")) {
			case "c_str", "data", "str":
				return a.taintedSource(fn.ChildByFieldName("argument"), depth+1)
			}
		}
	}
	return Source{}, "", false
}

// variableName 取表达式对应的变量名：标识符、成员名、下标基址、解引用目标
// 函数调用结果无法命名，返回空串
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
		// *p 与 &x 都落到被指向的变量上
		return variableName(ctx, node.ChildByFieldName("argument"))
	}
	return ""
}

func isAddressOf(ctx *core.AnalysisContext, node *sitter.Node) bool {
	node = core.StripParens(node)
	return node != nil && node.Type() == "pointer_expression" && ctx.Operator(node) == "&"
}
