package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

// 支持的语言
const (
	LanguageC   = "c"
	LanguageCPP = "cpp"
)

// ParsedUnit 表示一个已解析的代码单元
type ParsedUnit struct {
	FilePath string
	Root     *sitter.Node
	Source   []byte
	Tree     *sitter.Tree
	Language string
}

// Close 释放 tree-sitter 树
func (u *ParsedUnit) Close() {
	if u != nil && u.Tree != nil {
		u.Tree.Close()
	}
}

// IsSourceFile 判断路径是否是 C/C++ 源文件或头文件
func IsSourceFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c", ".cpp", ".cxx", ".cc", ".c++", ".h", ".hpp", ".hxx", ".hh", ".h++":
		return true
	}
	return false
}

type parseOptions struct {
	headerLanguage string
}

// ParseOption 解析选项
type ParseOption func(*parseOptions)

// WithHeaderLanguage 指定 .h 文件使用的语言（默认 C++）
func WithHeaderLanguage(lang string) ParseOption {
	return func(o *parseOptions) {
		if lang == LanguageC || lang == LanguageCPP {
			o.headerLanguage = lang
		}
	}
}

// LanguageFor 根据文件扩展名确定语言
func LanguageFor(filename string, opts ...ParseOption) (string, error) {
	o := parseOptions{headerLanguage: LanguageCPP}
	for _, opt := range opts {
		opt(&o)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".c":
		return LanguageC, nil
	case ".cpp", ".cxx", ".cc", ".c++", ".hpp", ".hxx", ".hh", ".h++":
		return LanguageCPP, nil
	case ".h":
		return o.headerLanguage, nil
	default:
		return "", fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// GetLanguage 返回语言对应的 tree-sitter 语法
func GetLanguage(language string) *sitter.Language {
	if language == LanguageC {
		return c.GetLanguage()
	}
	return cpp.GetLanguage()
}

// ParseFile 读取并解析单个文件
func ParseFile(ctx context.Context, filePath string, opts ...ParseOption) (*ParsedUnit, error) {
	language, err := LanguageFor(filePath, opts...)
	if err != nil {
		return nil, err
	}

	source, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return ParseSource(ctx, filePath, source, language)
}

// ParseSource 解析内存中的源代码
func ParseSource(ctx context.Context, filePath string, source []byte, language string) (*ParsedUnit, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(GetLanguage(language))

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filePath, err)
	}

	return &ParsedUnit{
		FilePath: filePath,
		Root:     tree.RootNode(),
		Source:   source,
		Tree:     tree,
		Language: language,
	}, nil
}

// AnalysisContext 提供规则分析所需的上下文
type AnalysisContext struct {
	Unit  *ParsedUnit
	Types *TypeIndex
}

// NewAnalysisContext 创建分析上下文并建立类型索引
func NewAnalysisContext(unit *ParsedUnit) *AnalysisContext {
	ctx := &AnalysisContext{Unit: unit}
	ctx.Types = BuildTypeIndex(unit)
	return ctx
}

// IsCPP 当前单元是否为 C++
func (ctx *AnalysisContext) IsCPP() bool {
	return ctx.Unit.Language == LanguageCPP
}

// QueryNodes 使用 Tree-sitter 查询语言查找节点
func (ctx *AnalysisContext) QueryNodes(queryPattern string) ([]*sitter.Node, error) {
	query, err := sitter.NewQuery([]byte(queryPattern), GetLanguage(ctx.Unit.Language))
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	defer query.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	cursor.Exec(query, ctx.Unit.Root)

	var nodes []*sitter.Node
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, capture := range match.Captures {
			nodes = append(nodes, capture.Node)
		}
	}

	return nodes, nil
}

// GetSourceText 获取节点的源代码文本
func (ctx *AnalysisContext) GetSourceText(node *sitter.Node) string {
	return NodeText(node, ctx.Unit.Source)
}

// NodeText 带边界检查地截取节点文本
func NodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}

	start := node.StartByte()
	end := node.EndByte()

	// 边界检查，防止越界
	if end > uint32(len(source)) {
		end = uint32(len(source))
	}
	if start >= end {
		return ""
	}

	return string(source[start:end])
}

// Position 返回节点的 1 基行列号
func Position(node *sitter.Node) (line, column int) {
	p := node.StartPoint()
	return int(p.Row) + 1, int(p.Column) + 1
}

// GetCallFunctionName 获取函数调用的函数名
// 支持 f()、std::f()、obj.f()、ptr->f()
func (ctx *AnalysisContext) GetCallFunctionName(callNode *sitter.Node) string {
	if callNode == nil || callNode.Type() != "call_expression" {
		return ""
	}

	funcNode := callNode.ChildByFieldName("function")
	if funcNode == nil {
		return ""
	}

	switch funcNode.Type() {
	case "identifier":
		return ctx.GetSourceText(funcNode)
	case "qualified_identifier":
		// std::strcpy -> strcpy
		name := funcNode.ChildByFieldName("name")
		for name != nil && name.Type() == "qualified_identifier" {
			name = name.ChildByFieldName("name")
		}
		if name != nil {
			return ctx.GetSourceText(name)
		}
	case "field_expression":
		field := funcNode.ChildByFieldName("field")
		if field != nil {
			return ctx.GetSourceText(field)
		}
	case "template_function":
		name := funcNode.ChildByFieldName("name")
		if name != nil {
			return ctx.GetSourceText(name)
		}
	case "parenthesized_expression":
		// (*fp)() 之类的间接调用不追踪
		return ""
	}

	return ""
}

// CallArguments 返回调用表达式的实参节点（只含命名节点）
func CallArguments(callNode *sitter.Node) []*sitter.Node {
	args := callNode.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, args.NamedChildCount())
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() == "comment" {
			continue
		}
		out = append(out, arg)
	}
	return out
}

// ExtractFunctionNameFromDef 从函数定义节点中提取函数名
// 处理多种情况：
// 1. int func() - declarator 是 function_declarator
// 2. int* func() - declarator 是 pointer_declarator，其子节点是 function_declarator
// 3. Foo::bar() - 限定名
func (ctx *AnalysisContext) ExtractFunctionNameFromDef(funcDef *sitter.Node) string {
	if funcDef == nil || funcDef.Type() != "function_definition" {
		return ""
	}

	fd := FindFunctionDeclarator(funcDef.ChildByFieldName("declarator"))
	if fd == nil {
		return ""
	}
	name := fd.ChildByFieldName("declarator")
	if name == nil {
		return ""
	}
	return ctx.GetSourceText(name)
}

// FindFunctionDeclarator 递归查找 function_declarator 节点
// 用于处理 pointer_declarator、reference_declarator 等包装节点
func FindFunctionDeclarator(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Type() {
		case "function_declarator":
			return node
		case "pointer_declarator", "reference_declarator", "parenthesized_declarator":
			next := node.ChildByFieldName("declarator")
			if next == nil && node.NamedChildCount() > 0 {
				next = node.NamedChild(int(node.NamedChildCount()) - 1)
			}
			node = next
		default:
			return nil
		}
	}
	return nil
}

// FunctionParameters 返回函数定义的参数声明节点
func FunctionParameters(funcDef *sitter.Node) []*sitter.Node {
	fd := FindFunctionDeclarator(funcDef.ChildByFieldName("declarator"))
	if fd == nil {
		return nil
	}
	params := fd.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p.Type() == "parameter_declaration" || p.Type() == "optional_parameter_declaration" {
			out = append(out, p)
		}
	}
	return out
}

// ContainingFunction 返回包含节点的函数定义
func ContainingFunction(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		if cur.Type() == "function_definition" {
			return cur
		}
	}
	return nil
}

// DeclaratorName 从声明符中取出被声明的标识符节点
// 同时返回指针层数与是否为引用、数组
func DeclaratorName(decl *sitter.Node) (name *sitter.Node, pointers int, reference, array bool) {
	node := decl
	for node != nil {
		switch node.Type() {
		case "identifier", "field_identifier":
			return node, pointers, reference, array
		case "init_declarator", "parenthesized_declarator":
			next := node.ChildByFieldName("declarator")
			if next == nil && node.NamedChildCount() > 0 {
				next = node.NamedChild(0)
			}
			node = next
		case "pointer_declarator":
			pointers++
			node = node.ChildByFieldName("declarator")
		case "reference_declarator":
			reference = true
			node = lastNamedChild(node)
		case "array_declarator":
			array = true
			node = node.ChildByFieldName("declarator")
		default:
			return nil, pointers, reference, array
		}
	}
	return nil, pointers, reference, array
}

func lastNamedChild(node *sitter.Node) *sitter.Node {
	n := int(node.NamedChildCount())
	if n == 0 {
		return nil
	}
	return node.NamedChild(n - 1)
}

// StripParens 去除括号表达式
func StripParens(node *sitter.Node) *sitter.Node {
	for node != nil && node.Type() == "parenthesized_expression" && node.NamedChildCount() > 0 {
		node = node.NamedChild(0)
	}
	return node
}

// StripParenCasts 去除括号、C 风格转换以及 xxx_cast<T>(e)
func (ctx *AnalysisContext) StripParenCasts(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Type() {
		case "parenthesized_expression":
			if node.NamedChildCount() == 0 {
				return node
			}
			node = node.NamedChild(0)
		case "cast_expression":
			node = node.ChildByFieldName("value")
		case "call_expression":
			if !ctx.IsNamedCast(node) {
				return node
			}
			args := CallArguments(node)
			if len(args) != 1 {
				return node
			}
			node = args[0]
		default:
			return node
		}
	}
	return node
}

// IsNamedCast 判断调用是否为 static_cast/reinterpret_cast/const_cast
func (ctx *AnalysisContext) IsNamedCast(call *sitter.Node) bool {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "template_function" {
		return false
	}
	switch ctx.GetSourceText(fn.ChildByFieldName("name")) {
	case "static_cast", "reinterpret_cast", "const_cast":
		return true
	}
	return false
}

// ConditionExpr 返回 if/while/for 的条件表达式，
// 去掉语法要求的那一层括号（C 语法的 parenthesized_expression 或 C++ 的 condition_clause）
func ConditionExpr(stmt *sitter.Node) *sitter.Node {
	cond := stmt.ChildByFieldName("condition")
	if cond == nil {
		return nil
	}
	switch cond.Type() {
	case "condition_clause":
		if v := cond.ChildByFieldName("value"); v != nil {
			return v
		}
		return lastNamedChild(cond)
	case "parenthesized_expression":
		if stmt.Type() == "for_statement" {
			return cond
		}
		if cond.NamedChildCount() == 0 {
			return nil
		}
		return cond.NamedChild(0)
	}
	return cond
}

// SubscriptIndex 返回下标表达式的索引节点，兼容新旧语法
func SubscriptIndex(sub *sitter.Node) *sitter.Node {
	if idx := sub.ChildByFieldName("index"); idx != nil {
		return idx
	}
	if list := sub.ChildByFieldName("indices"); list != nil && list.NamedChildCount() > 0 {
		return list.NamedChild(0)
	}
	return nil
}

// HasToken 判断节点是否含有指定的匿名子节点（运算符）
func HasToken(node *sitter.Node, token string) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if !child.IsNamed() && child.Type() == token {
			return true
		}
	}
	return false
}

// Operator 返回表达式的运算符文本
func (ctx *AnalysisContext) Operator(node *sitter.Node) string {
	if op := node.ChildByFieldName("operator"); op != nil {
		return ctx.GetSourceText(op)
	}
	return ""
}

// OperatorNode 返回表达式的运算符节点
func OperatorNode(node *sitter.Node) *sitter.Node {
	return node.ChildByFieldName("operator")
}

// Walk 以先序深度优先遍历子树，visit 返回 false 时不再进入子节点
func Walk(node *sitter.Node, visit func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visit(node) {
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		Walk(node.NamedChild(i), visit)
	}
}

// TrimLine 取节点所在行的源码（去首尾空白）
func (ctx *AnalysisContext) TrimLine(node *sitter.Node) string {
	src := ctx.Unit.Source
	start := int(node.StartByte())
	if start > len(src) {
		return ""
	}
	lineStart := strings.LastIndexByte(string(src[:start]), '\n') + 1
	lineEnd := len(src)
	if idx := strings.IndexByte(string(src[start:]), '\n'); idx >= 0 {
		lineEnd = start + idx
	}
	return strings.TrimSpace(string(src[lineStart:lineEnd]))
}
