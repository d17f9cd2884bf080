package core

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// VarInfo 一个变量（局部、参数或全局）的声明信息
type VarInfo struct {
	Name        string
	Type        string // 规范化后的基础类型，不含 const/static
	Pointers    int
	Reference   bool
	Array       bool
	ArraySize   int64 // 第一维大小，-1 表示未知
	Static      bool
	Extern      bool
	Const       bool
	Param       bool
	Initialized bool
	Line        int

	scope  uintptr // 所在函数节点 ID，0 表示文件作用域
	offset uint32
}

// IsPointer 是否为指针变量
func (v *VarInfo) IsPointer() bool {
	return v.Pointers > 0
}

// StructInfo 结构体/类信息
type StructInfo struct {
	Name   string
	Fields []string
	Line   int
}

// TypeIndex 单元级别的静态类型索引
// 按文档顺序收集声明、结构体定义、typedef 和整型常量
type TypeIndex struct {
	source    []byte
	vars      map[string][]*VarInfo
	structs   map[string]*StructInfo
	typedefs  map[string]string
	constants map[string]int64
}

// BuildTypeIndex 遍历整个单元建立类型索引
func BuildTypeIndex(unit *ParsedUnit) *TypeIndex {
	ti := &TypeIndex{
		source:    unit.Source,
		vars:      make(map[string][]*VarInfo),
		structs:   make(map[string]*StructInfo),
		typedefs:  make(map[string]string),
		constants: make(map[string]int64),
	}
	if unit.Root != nil {
		ti.collect(unit.Root, 0)
	}
	return ti
}

func (ti *TypeIndex) text(node *sitter.Node) string {
	return NodeText(node, ti.source)
}

// collect 按文档顺序递归收集
func (ti *TypeIndex) collect(node *sitter.Node, scope uintptr) {
	switch node.Type() {
	case "function_definition":
		fnScope := node.ID()
		for _, p := range FunctionParameters(node) {
			ti.addDeclaration(p, fnScope, node.StartByte(), true)
		}
		if body := node.ChildByFieldName("body"); body != nil {
			ti.collect(body, fnScope)
		}
		// 返回类型中可能定义结构体
		if t := node.ChildByFieldName("type"); t != nil {
			ti.collect(t, scope)
		}
		return
	case "preproc_def":
		name := ti.text(node.ChildByFieldName("name"))
		if v, ok := ParseIntLiteral(strings.TrimSpace(ti.text(node.ChildByFieldName("value")))); ok && name != "" {
			ti.constants[name] = v
		}
		return
	case "struct_specifier", "class_specifier", "union_specifier":
		ti.addStruct(node, "")
	case "type_definition":
		ti.addTypedef(node)
	case "declaration":
		ti.addDeclaration(node, scope, node.StartByte(), false)
	case "for_range_loop":
		ti.addDeclaration(node, scope, node.StartByte(), false)
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		ti.collect(node.NamedChild(i), scope)
	}
}

// declSpecifiers 收集声明上的存储类和限定符
func (ti *TypeIndex) declSpecifiers(decl *sitter.Node) (static, extern, isConst bool) {
	for i := 0; i < int(decl.ChildCount()); i++ {
		child := decl.Child(i)
		switch child.Type() {
		case "storage_class_specifier":
			switch ti.text(child) {
			case "static", "thread_local":
				static = true
			case "extern":
				extern = true
			}
		case "type_qualifier":
			switch ti.text(child) {
			case "const", "constexpr":
				isConst = true
			}
		}
	}
	return static, extern, isConst
}

func (ti *TypeIndex) addDeclaration(decl *sitter.Node, scope uintptr, offset uint32, param bool) {
	typeNode := decl.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	typeName := ti.NormalizeType(typeNode)
	static, extern, isConst := ti.declSpecifiers(decl)

	for i := 0; i < int(decl.ChildCount()); i++ {
		if decl.FieldNameForChild(i) != "declarator" {
			continue
		}
		child := decl.Child(i)
		if !isDeclaratorNode(child) {
			continue
		}
		nameNode, pointers, reference, array := DeclaratorName(child)
		if nameNode == nil {
			continue
		}
		info := &VarInfo{
			Name:        ti.text(nameNode),
			Type:        typeName,
			Pointers:    pointers,
			Reference:   reference,
			Array:       array,
			ArraySize:   -1,
			Static:      static,
			Extern:      extern,
			Const:       isConst,
			Param:       param,
			Initialized: child.Type() == "init_declarator" || decl.Type() == "for_range_loop",
			scope:       scope,
			offset:      offset,
		}
		info.Line, _ = Position(nameNode)
		if array {
			info.ArraySize = ti.arraySize(child)
		} else if size, ok := ti.stdArraySize(typeNode); ok {
			info.ArraySize = size
		}
		if isConst && !array && pointers == 0 && child.Type() == "init_declarator" {
			if v, ok := ti.ConstantValue(child.ChildByFieldName("value")); ok {
				ti.constants[info.Name] = v
			}
		}
		ti.vars[info.Name] = append(ti.vars[info.Name], info)
	}
}

func isDeclaratorNode(node *sitter.Node) bool {
	switch node.Type() {
	case "identifier", "init_declarator", "pointer_declarator", "reference_declarator",
		"array_declarator", "parenthesized_declarator":
		return true
	}
	return false
}

// arraySize 计算数组声明第一维的大小
func (ti *TypeIndex) arraySize(declarator *sitter.Node) int64 {
	var init *sitter.Node
	node := declarator
	if node.Type() == "init_declarator" {
		init = node.ChildByFieldName("value")
		node = node.ChildByFieldName("declarator")
	}
	if node != nil && node.Type() == "pointer_declarator" {
		return -1
	}

	// 找到最内层的 array_declarator（第一维）
	var first *sitter.Node
	for node != nil && node.Type() == "array_declarator" {
		first = node
		node = node.ChildByFieldName("declarator")
	}
	if first == nil {
		return -1
	}
	if size := first.ChildByFieldName("size"); size != nil {
		if v, ok := ti.ConstantValue(size); ok {
			return v
		}
		return -1
	}
	if init != nil {
		switch init.Type() {
		case "initializer_list":
			return int64(init.NamedChildCount())
		case "string_literal":
			// "abc" 包含结尾的 '\0'
			content := ti.text(init)
			if len(content) >= 2 && !strings.Contains(content, "\\") {
				return int64(len(content) - 2 + 1)
			}
		}
	}
	return -1
}

// stdArraySize 解析 std::array<T, N> 的 N
func (ti *TypeIndex) stdArraySize(typeNode *sitter.Node) (int64, bool) {
	name := ti.NormalizeType(typeNode)
	base, args := SplitTemplate(name)
	if strings.TrimPrefix(base, "std::") != "array" || len(args) != 2 {
		return 0, false
	}
	if v, ok := ParseIntLiteral(args[1]); ok {
		return v, true
	}
	if v, ok := ti.constants[args[1]]; ok {
		return v, true
	}
	return 0, false
}

func (ti *TypeIndex) addStruct(node *sitter.Node, alias string) {
	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	info := &StructInfo{}
	info.Line, _ = Position(node)
	for i := 0; i < int(body.NamedChildCount()); i++ {
		field := body.NamedChild(i)
		if field.Type() != "field_declaration" {
			continue
		}
		for j := 0; j < int(field.ChildCount()); j++ {
			if field.FieldNameForChild(j) != "declarator" {
				continue
			}
			d := field.Child(j)
			if d.Type() == "function_declarator" {
				continue
			}
			if nameNode, _, _, _ := DeclaratorName(d); nameNode != nil {
				info.Fields = append(info.Fields, ti.text(nameNode))
			}
		}
	}
	if name := node.ChildByFieldName("name"); name != nil {
		info.Name = ti.text(name)
		ti.structs[info.Name] = info
	}
	if alias != "" {
		aliased := *info
		aliased.Name = alias
		ti.structs[alias] = &aliased
	}
}

func (ti *TypeIndex) addTypedef(node *sitter.Node) {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) != "declarator" {
			continue
		}
		d := node.Child(i)
		if d.Type() != "type_identifier" {
			continue
		}
		alias := ti.text(d)
		switch typeNode.Type() {
		case "struct_specifier", "class_specifier", "union_specifier":
			ti.addStruct(typeNode, alias)
			if name := typeNode.ChildByFieldName("name"); name != nil {
				ti.typedefs[alias] = ti.text(name)
			}
		default:
			ti.typedefs[alias] = ti.NormalizeType(typeNode)
		}
	}
}

// NormalizeType 将类型节点转为规范文本：合并空白，去掉 struct/class 前缀
func (ti *TypeIndex) NormalizeType(typeNode *sitter.Node) string {
	switch typeNode.Type() {
	case "struct_specifier", "class_specifier", "union_specifier", "enum_specifier":
		if name := typeNode.ChildByFieldName("name"); name != nil {
			return ti.text(name)
		}
		return ""
	}
	return NormalizeTypeName(ti.text(typeNode))
}

// NormalizeTypeName 规范化类型文本
func NormalizeTypeName(name string) string {
	fields := strings.Fields(name)
	out := fields[:0]
	for _, f := range fields {
		switch f {
		case "struct", "class", "union", "enum", "const", "volatile", "typename":
			continue
		}
		out = append(out, f)
	}
	joined := strings.Join(out, " ")
	joined = strings.ReplaceAll(joined, " <", "<")
	joined = strings.ReplaceAll(joined, "< ", "<")
	joined = strings.ReplaceAll(joined, " >", ">")
	return strings.ReplaceAll(joined, " ,", ",")
}

// Lookup 查找标识符在使用点可见的声明
// 优先同一函数内、位于使用点之前最近的声明，其次是文件作用域声明
func (ti *TypeIndex) Lookup(name string, at *sitter.Node) *VarInfo {
	candidates := ti.vars[name]
	if len(candidates) == 0 {
		return nil
	}
	var scope uintptr
	var pos uint32
	if at != nil {
		if fn := ContainingFunction(at); fn != nil {
			scope = fn.ID()
		}
		pos = at.StartByte()
	}

	var best, global *VarInfo
	for _, v := range candidates {
		if v.offset > pos && at != nil {
			continue
		}
		if v.scope == scope && scope != 0 {
			if best == nil || v.offset >= best.offset {
				best = v
			}
		}
		if v.scope == 0 {
			if global == nil || v.offset >= global.offset {
				global = v
			}
		}
	}
	if best != nil {
		return best
	}
	return global
}

// TypeOf 返回标识符节点的声明信息
func (ctx *AnalysisContext) TypeOf(ident *sitter.Node) *VarInfo {
	if ident == nil || ident.Type() != "identifier" {
		return nil
	}
	return ctx.Types.Lookup(ctx.GetSourceText(ident), ident)
}

// Struct 返回结构体信息（解析 typedef）
func (ti *TypeIndex) Struct(name string) *StructInfo {
	name = ti.Resolve(name)
	return ti.structs[name]
}

// Resolve 展开 typedef
func (ti *TypeIndex) Resolve(name string) string {
	for i := 0; i < 8; i++ {
		next, ok := ti.typedefs[name]
		if !ok || next == name {
			break
		}
		name = next
	}
	return name
}

// Constant 返回已知的整型常量（#define 或 const 变量）
func (ti *TypeIndex) Constant(name string) (int64, bool) {
	v, ok := ti.constants[name]
	return v, ok
}

// ConstantValue 对常量表达式求值：整数字面量、已知常量、一元负号和括号
func (ti *TypeIndex) ConstantValue(node *sitter.Node) (int64, bool) {
	node = StripParens(node)
	if node == nil {
		return 0, false
	}
	switch node.Type() {
	case "number_literal":
		return ParseIntLiteral(ti.text(node))
	case "identifier":
		return ti.Constant(ti.text(node))
	case "unary_expression":
		arg := node.ChildByFieldName("argument")
		v, ok := ti.ConstantValue(arg)
		if !ok {
			return 0, false
		}
		switch ti.text(node.ChildByFieldName("operator")) {
		case "-":
			return -v, true
		case "+":
			return v, true
		}
	case "binary_expression":
		l, okL := ti.ConstantValue(node.ChildByFieldName("left"))
		r, okR := ti.ConstantValue(node.ChildByFieldName("right"))
		if !okL || !okR {
			return 0, false
		}
		switch ti.text(node.ChildByFieldName("operator")) {
		case "+":
			return l + r, true
		case "-":
			return l - r, true
		case "*":
			return l * r, true
		case "/":
			if r != 0 {
				return l / r, true
			}
		}
	}
	return 0, false
}

// ParseIntLiteral 解析 C 整数字面量（支持 0x/0b/八进制、数字分隔符和 u/l 后缀）
func ParseIntLiteral(text string) (int64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(text), "'", "")
	s = strings.TrimRight(s, "uUlLzZ")
	if s == "" {
		return 0, false
	}
	if len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9' {
		s = "0o" + s[1:]
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(s, 0, 64)
		if uerr != nil {
			return 0, false
		}
		return int64(u), true
	}
	return v, true
}

// IntegerBits 返回整数类型的位宽（LP64），char/bool 以及非整数类型返回 false
func (ti *TypeIndex) IntegerBits(typeName string) (int, bool) {
	return IntegerBits(ti.Resolve(typeName))
}

// IntegerBits 返回整数类型的位宽（LP64），char/bool 以及非整数类型返回 false
func IntegerBits(typeName string) (int, bool) {
	t := strings.TrimPrefix(NormalizeTypeName(typeName), "std::")
	words := strings.Fields(t)
	var longs, shorts int
	var rest []string
	for _, w := range words {
		switch w {
		case "signed", "unsigned":
		case "long":
			longs++
		case "short":
			shorts++
		case "int":
		default:
			rest = append(rest, w)
		}
	}
	if len(rest) == 0 {
		switch {
		case len(words) == 0:
			return 0, false
		case shorts > 0:
			return 16, true
		case longs > 0:
			return 64, true
		default:
			return 32, true
		}
	}
	if len(rest) > 1 || longs > 0 || shorts > 0 {
		return 0, false
	}
	switch rest[0] {
	case "int8_t", "uint8_t", "int_least8_t", "uint_least8_t", "int_fast8_t", "uint_fast8_t":
		return 8, true
	case "int16_t", "uint16_t", "int_least16_t", "uint_least16_t":
		return 16, true
	case "int32_t", "uint32_t", "int_least32_t", "uint_least32_t":
		return 32, true
	case "int64_t", "uint64_t", "int_least64_t", "uint_least64_t", "int_fast16_t", "uint_fast16_t",
		"int_fast32_t", "uint_fast32_t", "int_fast64_t", "uint_fast64_t",
		"size_t", "ssize_t", "ptrdiff_t", "intptr_t", "uintptr_t", "intmax_t", "uintmax_t", "off_t":
		return 64, true
	}
	return 0, false
}

// IsScalar 判断是否为内建标量类型（整数、字符、布尔、浮点）
func (ti *TypeIndex) IsScalar(typeName string) bool {
	t := ti.Resolve(typeName)
	if _, ok := IntegerBits(t); ok {
		return true
	}
	t = strings.TrimPrefix(NormalizeTypeName(t), "std::")
	switch strings.Join(strings.Fields(strings.ReplaceAll(strings.ReplaceAll(t, "unsigned", ""), "signed", "")), " ") {
	case "char", "wchar_t", "char8_t", "char16_t", "char32_t", "bool", "_Bool",
		"float", "double", "long double":
		return true
	}
	return false
}

// IsFloating 是否为浮点类型
func (ti *TypeIndex) IsFloating(typeName string) bool {
	switch NormalizeTypeName(ti.Resolve(typeName)) {
	case "float", "double", "long double":
		return true
	}
	return false
}

var containerTypes = map[string]bool{
	"vector": true, "list": true, "deque": true, "forward_list": true,
	"map": true, "multimap": true, "unordered_map": true, "unordered_multimap": true,
	"set": true, "multiset": true, "unordered_set": true, "unordered_multiset": true,
	"array": true, "queue": true, "stack": true, "priority_queue": true,
	"string": true, "wstring": true, "basic_string": true, "u16string": true, "u32string": true,
}

// IsContainerType 是否为标准库容器或字符串类型
func IsContainerType(typeName string) bool {
	base, _ := SplitTemplate(NormalizeTypeName(typeName))
	return containerTypes[strings.TrimPrefix(base, "std::")]
}

// IsExpensiveToCopy 容器、字符串，或字段数超过 2 的结构体/类
func (ti *TypeIndex) IsExpensiveToCopy(typeName string) bool {
	t := ti.Resolve(NormalizeTypeName(typeName))
	if IsContainerType(t) {
		return true
	}
	base, args := SplitTemplate(t)
	if strings.TrimPrefix(base, "std::") == "pair" {
		for _, a := range args {
			if ti.IsExpensiveToCopy(a) {
				return true
			}
		}
		return false
	}
	if s := ti.Struct(t); s != nil {
		return len(s.Fields) > 2
	}
	return false
}

// ElementType 返回容器的元素类型
func ElementType(containerType string) (string, bool) {
	base, args := SplitTemplate(NormalizeTypeName(containerType))
	switch strings.TrimPrefix(base, "std::") {
	case "map", "multimap", "unordered_map", "unordered_multimap":
		if len(args) >= 2 {
			return "std::pair<" + args[0] + "," + args[1] + ">", true
		}
	case "string", "wstring", "basic_string", "u16string", "u32string":
		return "char", true
	default:
		if containerTypes[strings.TrimPrefix(base, "std::")] && len(args) >= 1 {
			return args[0], true
		}
	}
	return "", false
}

// SplitTemplate 拆分模板类型 base<a, b> 为 base 和顶层参数
func SplitTemplate(typeName string) (string, []string) {
	open := strings.IndexByte(typeName, '<')
	if open < 0 || !strings.HasSuffix(typeName, ">") {
		return typeName, nil
	}
	base := strings.TrimSpace(typeName[:open])
	inner := typeName[open+1 : len(typeName)-1]
	var args []string
	depth, start := 0, 0
	for i, r := range inner {
		switch r {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(inner[start:]); tail != "" {
		args = append(args, tail)
	}
	return base, args
}
