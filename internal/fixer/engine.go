package fixer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// Option 引擎选项
type Option func(*Engine)

// WithInteractive 每个修复应用前由 c 确认
func WithInteractive(c Confirmer) Option {
	return func(e *Engine) {
		e.interactive = c != nil
		e.confirmer = c
	}
}

// WithBackup 是否在修改前创建备份，默认开启
func WithBackup(enabled bool) Option {
	return func(e *Engine) {
		e.backup = enabled
	}
}

// WithDryRun 只把 diff 写到 w，不修改文件
func WithDryRun(w io.Writer) Option {
	return func(e *Engine) {
		e.dryRun = w
	}
}

// WithLogger 设置日志
func WithLogger(logger hclog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine 自动修复引擎
// 假定同一时间只有一个进程修改目标文件
type Engine struct {
	backups     []BackupRecord
	backedUp    map[string]int // 原文件路径 -> backups 下标
	interactive bool
	confirmer   Confirmer
	backup      bool
	dryRun      io.Writer
	logger      hclog.Logger

	// write 写回修改后的文件
	write func(path string, data []byte, perm fs.FileMode) error
}

// NewEngine 创建修复引擎
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		backedUp: make(map[string]int),
		backup:   true,
		logger:   hclog.NewNullLogger(),
		write:    writeFileAtomic,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateFix 为 Finding 生成修复动作
func (e *Engine) GenerateFix(f core.Finding) (FixAction, bool) {
	return GenerateFix(f)
}

// ApplyFix 应用一个修复，nil 表示成功
// 写入失败时立即用备份恢复原文件
func (e *Engine) ApplyFix(action FixAction) (err error) {
	// 第1步：交互确认
	if e.interactive {
		ok, err := e.confirmer.Confirm(action)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDeclined
		}
	}

	// 第2步：读取原文件
	info, err := os.Stat(action.File)
	if err != nil {
		return fmt.Errorf("apply fix: %w", err)
	}
	original, err := os.ReadFile(action.File)
	if err != nil {
		return fmt.Errorf("apply fix: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic while applying fix", "file", action.File, "line", action.LineStart, "panic", r)
			err = fmt.Errorf("apply fix to %s: panic: %v", action.File, r)
		}
	}()

	// 第3步：在内存中编辑
	lines, err := applyEdit(splitLines(original), action)
	if err != nil {
		return fmt.Errorf("apply fix to %s: %w", action.File, err)
	}
	updated := joinLines(lines)

	if e.dryRun != nil {
		return writePreview(e.dryRun, action.File, original, updated)
	}

	// 第4步：备份后原子写入
	perm := info.Mode().Perm()
	if e.backup {
		if err := e.ensureBackup(action.File, original, perm); err != nil {
			return err
		}
	}
	if err := e.write(action.File, updated, perm); err != nil {
		err = fmt.Errorf("write %s: %w", action.File, err)
		if idx, ok := e.backedUp[action.File]; ok {
			if rerr := restoreFromBackup(e.backups[idx]); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}
		return err
	}

	e.logger.Debug("fix applied", "file", action.File, "line", action.LineStart, "kind", action.Kind.String())
	return nil
}

// FixAll 对达到 minSeverity 的 Finding 生成并应用修复
// 同一文件内按行从后往前应用，AddInclude 最后执行；同一行内见 sameLineRank，列编辑从后往前。
// 目标原文已变化的修复返回 ErrConflict，计为失败
func (e *Engine) FixAll(findings []core.Finding, minSeverity core.Severity) FixResult {
	var result FixResult

	var files []string
	perFile := make(map[string][]FixAction)
	seen := make(map[FixAction]bool)

	for _, f := range findings {
		if !f.Severity.AtLeast(minSeverity) {
			continue
		}
		action, ok := GenerateFix(f)
		if !ok {
			result.SkippedCount++
			continue
		}
		if seen[action] {
			continue
		}
		seen[action] = true
		if _, ok := perFile[action.File]; !ok {
			files = append(files, action.File)
		}
		perFile[action.File] = append(perFile[action.File], action)
	}

	for _, file := range files {
		actions := perFile[file]
		sort.SliceStable(actions, func(i, j int) bool {
			a, b := actions[i], actions[j]
			if (a.Kind == AddInclude) != (b.Kind == AddInclude) {
				return b.Kind == AddInclude
			}
			if a.LineStart != b.LineStart {
				return a.LineStart > b.LineStart
			}
			if ra, rb := sameLineRank(a), sameLineRank(b); ra != rb {
				return ra < rb
			}
			return a.ColumnStart > b.ColumnStart
		})

		modified := false
		for _, action := range actions {
			err := e.ApplyFix(action)
			switch {
			case err == nil:
				result.FixedCount++
				modified = true
				e.logger.Info("fixed", "file", action.File, "line", action.LineStart, "description", action.Description)
			case errors.Is(err, ErrDeclined):
				result.SkippedCount++
			default:
				result.FailedCount++
				e.logger.Warn("fix failed", "file", action.File, "line", action.LineStart, "error", err)
			}
		}
		if modified {
			result.ModifiedFiles = append(result.ModifiedFiles, file)
		}
	}

	result.Success = result.FailedCount == 0
	result.Message = fmt.Sprintf("fixed %d, failed %d, skipped %d", result.FixedCount, result.FailedCount, result.SkippedCount)
	return result
}

// sameLineRank 同一行内的应用顺序：整行替换，列替换，最后在行前插入
func sameLineRank(a FixAction) int {
	switch {
	case a.Kind == Insert:
		return 2
	case a.hasColumns():
		return 1
	default:
		return 0
	}
}
