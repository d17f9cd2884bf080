package fixer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirmer 交互模式下决定是否应用一个修复
type Confirmer interface {
	Confirm(action FixAction) (bool, error)
}

// ConfirmFunc 函数形式的 Confirmer
type ConfirmFunc func(action FixAction) (bool, error)

// Confirm 实现 Confirmer
func (f ConfirmFunc) Confirm(action FixAction) (bool, error) {
	return f(action)
}

// PromptConfirmer 在终端上展示修复并读取 y/N 回答
type PromptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptConfirmer 创建终端确认器
func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{in: bufio.NewReader(in), out: out}
}

const separator = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// Confirm 实现 Confirmer；输入结束视为拒绝
func (p *PromptConfirmer) Confirm(action FixAction) (bool, error) {
	fmt.Fprintf(p.out, "\n%s\n", separator)
	fmt.Fprintln(p.out, "🔧 Proposed fix:")
	fmt.Fprintf(p.out, "  📁 File: %s:%d\n", action.File, action.LineStart)
	fmt.Fprintf(p.out, "  📝 Description: %s\n", action.Description)
	fmt.Fprintf(p.out, "  ⚙️  Kind: %s\n", action.Kind)
	fmt.Fprintf(p.out, "\nNew code:\n%s\n", action.NewText)
	fmt.Fprintln(p.out, separator)
	fmt.Fprint(p.out, "Apply this fix? [y/N]: ")

	answer, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.TrimSpace(answer) {
	case "y", "Y", "yes", "Yes":
		return true, nil
	}
	return false, nil
}
