package fixer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// generator 从 Finding 生成修复动作
type generator func(f core.Finding) (FixAction, bool)

// generators 按规则 ID 分发；其余规则需要人工判断，不生成修复
var generators = map[string]generator{
	"NULL-PTR-001":      fixNullPointer,
	"UNINIT-VAR-001":    fixUninitializedVar,
	"ASSIGN-COND-001":   fixAssignInCondition,
	"UNSAFE-C-FUNC-001": fixUnsafeCFunction,
	"MEMORY-LEAK-001":   fixMemoryLeak,
}

// GenerateFix 为 Finding 生成修复动作，不支持的规则返回 false
func GenerateFix(f core.Finding) (FixAction, bool) {
	gen, ok := generators[f.RuleID]
	if !ok {
		return FixAction{}, false
	}
	return gen(f)
}

// Fixable 规则是否有修复生成器
func Fixable(ruleID string) bool {
	_, ok := generators[ruleID]
	return ok
}

// readLine 读取文件第 n 行（1 基）
func readLine(path string, n int) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	lines := splitLines(data)
	if n < 1 || n > len(lines) {
		return "", false
	}
	return lines[n-1], true
}

func isCFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".c")
}

func nullLiteral(path string) string {
	if isCFile(path) {
		return "NULL"
	}
	return "nullptr"
}

func leadingSpace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// nullPtrMarker 标记已提示过的空指针解引用
const nullPtrMarker = "FIXME(null-deref)"

// fixNullPointer 在语句前插入提示注释
// 解引用的操作数在语法上就是空指针，任何判空守卫都恒为假，这里不改写语句本身
func fixNullPointer(f core.Finding) (FixAction, bool) {
	line, ok := readLine(f.File, f.Line)
	if !ok || strings.TrimSpace(line) == "" {
		return FixAction{}, false
	}
	if prev, ok := readLine(f.File, f.Line-1); ok && strings.Contains(prev, nullPtrMarker) {
		return FixAction{}, false
	}
	expr := strings.TrimSpace(f.CodeSnippet)
	if expr == "" {
		expr = "pointer"
	}

	return FixAction{
		Kind:        Insert,
		File:        f.File,
		LineStart:   f.Line,
		NewText:     fmt.Sprintf("%s// %s: '%s' is always null here, point it at a valid object before dereferencing", leadingSpace(line), nullPtrMarker, expr),
		Description: "Mark null pointer dereference",
	}, true
}

var uninitPattern = regexp.MustCompile(`Variable '([^']+)' of type '([^']+)'`)

var integerWords = []string{"int", "long", "short", "char", "unsigned", "signed", "size_t", "_t"}

// fixUninitializedVar 在变量名处补上初始化
func fixUninitializedVar(f core.Finding) (FixAction, bool) {
	m := uninitPattern.FindStringSubmatch(f.Description)
	if m == nil {
		return FixAction{}, false
	}
	name, typeName := m[1], m[2]

	line, ok := readLine(f.File, f.Line)
	if !ok || f.Column < 1 || f.Column-1+len(name) > len(line) || line[f.Column-1:f.Column-1+len(name)] != name {
		return FixAction{}, false
	}

	var replacement string
	switch {
	case strings.Contains(typeName, "*"):
		replacement = name + " = " + nullLiteral(f.File)
	case strings.Contains(typeName, "double") || strings.Contains(typeName, "float"):
		replacement = name + " = 0.0"
	case containsAny(typeName, integerWords) || isCFile(f.File):
		replacement = name + " = 0"
	default:
		replacement = name + "{}"
	}

	return FixAction{
		Kind:        Replace,
		File:        f.File,
		LineStart:   f.Line,
		LineEnd:     f.Line,
		ColumnStart: f.Column,
		ColumnEnd:   f.Column + len(name),
		NewText:     replacement,
		OldText:     name,
		Description: fmt.Sprintf("Initialize variable '%s'", name),
	}, true
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// fixAssignInCondition 把条件中的 = 改成 ==
func fixAssignInCondition(f core.Finding) (FixAction, bool) {
	line, ok := readLine(f.File, f.Line)
	if !ok || f.Column < 1 || f.Column > len(line) || line[f.Column-1] != '=' {
		return FixAction{}, false
	}
	return FixAction{
		Kind:        Replace,
		File:        f.File,
		LineStart:   f.Line,
		LineEnd:     f.Line,
		ColumnStart: f.Column,
		ColumnEnd:   f.Column + 1,
		NewText:     "==",
		OldText:     "=",
		Description: "Replace assignment with comparison",
	}, true
}

var unsafeFuncPattern = regexp.MustCompile(`unsafe C function '(\w+)'`)

// unsafeRewrite 不安全函数的行内改写，pattern 的第一个分组是目标缓冲区
type unsafeRewrite struct {
	pattern     *regexp.Regexp
	replacement string
}

var unsafeRewrites = map[string]unsafeRewrite{
	"strcpy": {
		pattern:     regexp.MustCompile(`\bstrcpy\s*\(\s*([^,()]+?)\s*,\s*([^()]+?)\s*\)`),
		replacement: "strncpy($1, $2, sizeof($1) - 1)",
	},
	"strcat": {
		pattern:     regexp.MustCompile(`\bstrcat\s*\(\s*([^,()]+?)\s*,\s*([^()]+?)\s*\)`),
		replacement: "strncat($1, $2, sizeof($1) - strlen($1) - 1)",
	},
	"sprintf": {
		pattern:     regexp.MustCompile(`\bsprintf\s*\(\s*([^,()]+?)\s*,`),
		replacement: "snprintf($1, sizeof($1),",
	},
	"vsprintf": {
		pattern:     regexp.MustCompile(`\bvsprintf\s*\(\s*([^,()]+?)\s*,`),
		replacement: "vsnprintf($1, sizeof($1),",
	},
	"gets": {
		pattern:     regexp.MustCompile(`\bgets\s*\(\s*([^()]+?)\s*\)`),
		replacement: "fgets($1, sizeof($1), stdin)",
	},
}

// fixUnsafeCFunction 替换为带长度的安全函数
func fixUnsafeCFunction(f core.Finding) (FixAction, bool) {
	m := unsafeFuncPattern.FindStringSubmatch(f.Description)
	if m == nil {
		return FixAction{}, false
	}
	rw, ok := unsafeRewrites[m[1]]
	if !ok {
		return FixAction{}, false
	}
	line, ok := readLine(f.File, f.Line)
	if !ok {
		return FixAction{}, false
	}

	// sizeof 只对数组给出缓冲区大小，指针目标交给人工处理
	for _, m := range rw.pattern.FindAllStringSubmatch(line, -1) {
		if !declaredArray(f.File, f.Line, strings.TrimSpace(m[1])) {
			return FixAction{}, false
		}
	}
	fixed := rw.pattern.ReplaceAllString(line, rw.replacement)
	if fixed == line {
		return FixAction{}, false
	}
	return FixAction{
		Kind:        Replace,
		File:        f.File,
		LineStart:   f.Line,
		LineEnd:     f.Line,
		NewText:     fixed,
		OldText:     line,
		Description: fmt.Sprintf("Replace '%s' with a bounded alternative", m[1]),
	}, true
}

var identPattern = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// declaredArray name 是否在第 line 行及之前声明为字符数组
func declaredArray(path string, line int, name string) bool {
	if !identPattern.MatchString(name) {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	lines := splitLines(data)
	if line > len(lines) {
		line = len(lines)
	}

	decl := regexp.MustCompile(`\b(?:char|wchar_t|char16_t|char32_t|TCHAR|u?int8_t)\s+(?:[\w\s*\[\],]*,\s*)?` +
		regexp.QuoteMeta(name) + `\s*\[`)
	for _, l := range lines[:line] {
		if decl.MatchString(l) {
			return true
		}
	}
	return false
}

// fixMemoryLeak 引入 <memory> 以便改用智能指针
func fixMemoryLeak(f core.Finding) (FixAction, bool) {
	return FixAction{
		Kind:        AddInclude,
		File:        f.File,
		LineStart:   1,
		NewText:     "#include <memory>",
		Description: "Include <memory> for smart pointers",
	}, true
}
