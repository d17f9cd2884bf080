package fixer

import (
	"fmt"
	"strings"
)

// splitLines 按 \n 拆分，末尾换行不产生额外的空行
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// joinLines 每行之后都写 \n，包括最后一行
func joinLines(lines []string) []byte {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func textLines(text string) []string {
	return strings.Split(text, "\n")
}

// applyEdit 对行数组执行修复动作，越界返回 ErrOutOfRange
func applyEdit(lines []string, a FixAction) ([]string, error) {
	n := len(lines)

	switch a.Kind {
	case Replace:
		end := a.LineEnd
		if end == 0 {
			end = a.LineStart
		}
		if a.LineStart < 1 || a.LineStart > n || end < a.LineStart || end > n {
			return nil, fmt.Errorf("%w: replace lines %d-%d in %d-line file", ErrOutOfRange, a.LineStart, end, n)
		}
		if !a.hasColumns() {
			if a.OldText != "" && strings.Join(lines[a.LineStart-1:end], "\n") != a.OldText {
				return nil, fmt.Errorf("%w: lines %d-%d", ErrConflict, a.LineStart, end)
			}
			return splice(lines, a.LineStart-1, end, textLines(a.NewText)), nil
		}

		line := lines[a.LineStart-1]
		if a.ColumnStart < 1 || a.ColumnStart > len(line)+1 || a.ColumnEnd < a.ColumnStart {
			return nil, fmt.Errorf("%w: replace columns %d-%d on line %d of length %d",
				ErrOutOfRange, a.ColumnStart, a.ColumnEnd, a.LineStart, len(line))
		}
		colEnd := min(a.ColumnEnd, len(line)+1)
		if a.OldText != "" && line[a.ColumnStart-1:colEnd-1] != a.OldText {
			return nil, fmt.Errorf("%w: line %d columns %d-%d", ErrConflict, a.LineStart, a.ColumnStart, a.ColumnEnd)
		}
		replaced := line[:a.ColumnStart-1] + a.NewText + line[colEnd-1:]
		return splice(lines, a.LineStart-1, a.LineStart, textLines(replaced)), nil

	case Insert:
		if a.LineStart < 1 || a.LineStart > n+1 {
			return nil, fmt.Errorf("%w: insert at line %d in %d-line file", ErrOutOfRange, a.LineStart, n)
		}
		return splice(lines, a.LineStart-1, a.LineStart-1, textLines(a.NewText)), nil

	case Delete:
		end := a.LineEnd
		if end == 0 {
			end = a.LineStart
		}
		if a.LineStart < 1 || end < a.LineStart || end > n {
			return nil, fmt.Errorf("%w: delete lines %d-%d in %d-line file", ErrOutOfRange, a.LineStart, end, n)
		}
		return splice(lines, a.LineStart-1, end, nil), nil

	case AddInclude:
		for _, line := range lines {
			if strings.Contains(line, a.NewText) {
				return lines, nil
			}
		}
		at := includePosition(lines)
		return splice(lines, at, at, []string{a.NewText}), nil

	case Rewrite:
		return textLines(strings.TrimSuffix(a.NewText, "\n")), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownKind, a.Kind)
}

// splice 用 repl 替换 lines[from:to]，返回新切片
func splice(lines []string, from, to int, repl []string) []string {
	out := make([]string, 0, len(lines)-(to-from)+len(repl))
	out = append(out, lines[:from]...)
	out = append(out, repl...)
	out = append(out, lines[to:]...)
	return out
}

// includePosition 第一行既非空行也不在注释中的位置
func includePosition(lines []string) int {
	inBlock := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case inBlock:
			if strings.Contains(trimmed, "*/") {
				inBlock = false
			}
		case trimmed == "", strings.HasPrefix(trimmed, "//"):
		case strings.HasPrefix(trimmed, "/*"):
			inBlock = !strings.Contains(trimmed[2:], "*/")
		default:
			return i
		}
	}
	return len(lines)
}
