package enhancer

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// separator 分隔原建议和增强建议
var separator = strings.Repeat("=", 70)

// contextRadius 代码上下文取问题行前后的行数
const contextRadius = 3

// Enhancer 用 Provider 为收集到的 Finding 追加建议
type Enhancer struct {
	provider Provider
	fallback Provider
	logger   hclog.Logger
	minSev   core.Severity
}

// Option 增强器选项
type Option func(*Enhancer)

func WithLogger(logger hclog.Logger) Option {
	return func(e *Enhancer) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithFallback 主提供者失败时使用的提供者
func WithFallback(p Provider) Option {
	return func(e *Enhancer) {
		e.fallback = p
	}
}

// WithMinSeverity 只增强不低于该级别的问题
func WithMinSeverity(sev core.Severity) Option {
	return func(e *Enhancer) {
		e.minSev = sev
	}
}

// New 创建增强器，provider 可以为 nil（此时不做任何事）
func New(provider Provider, opts ...Option) *Enhancer {
	e := &Enhancer{
		provider: provider,
		logger:   hclog.NewNullLogger(),
		minSev:   core.SeveritySuggestion,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enabled 提供者存在且可用
func (e *Enhancer) Enabled() bool {
	return e.provider != nil && e.provider.Available()
}

// ProviderName 当前提供者名称
func (e *Enhancer) ProviderName() string {
	if e.provider == nil {
		return "None"
	}
	return e.provider.Name()
}

// Enhance 返回追加了增强建议的副本
func (e *Enhancer) Enhance(ctx context.Context, f core.Finding) (core.Finding, error) {
	text, err := e.suggest(ctx, f)
	if err != nil || text == "" {
		return f, err
	}
	if f.Suggestion == "" {
		f.Suggestion = text
	} else {
		f.Suggestion += "\n\n" + separator + "\n" + text
	}
	return f, nil
}

// EnhanceAll 逐个增强收集器中的问题，返回增强的数量
// 单个问题失败只记录日志，ctx 取消时停止并返回 ctx.Err()
func (e *Enhancer) EnhanceAll(ctx context.Context, collector *core.Collector) (int, error) {
	if !e.Enabled() {
		return 0, nil
	}

	enhanced := 0
	var errs []error
	for i, f := range collector.All() {
		if err := ctx.Err(); err != nil {
			return enhanced, err
		}
		if !f.Severity.AtLeast(e.minSev) {
			continue
		}
		text, err := e.suggest(ctx, f)
		if err != nil {
			e.logger.Warn("suggestion failed", "rule", f.RuleID, "location", f.Location(), "error", err)
			errs = append(errs, err)
			continue
		}
		if text == "" {
			continue
		}
		if f.Suggestion != "" {
			text = separator + "\n" + text
		}
		if err := collector.AppendSuggestion(i, text); err != nil {
			return enhanced, err
		}
		enhanced++
	}

	e.logger.Debug("findings enhanced", "provider", e.ProviderName(), "count", enhanced, "failed", len(errs))
	return enhanced, errors.Join(errs...)
}

// suggest 主提供者失败时尝试 fallback
func (e *Enhancer) suggest(ctx context.Context, f core.Finding) (string, error) {
	if !e.Enabled() {
		return "", nil
	}
	codeContext := readContext(f)
	text, err := e.provider.Suggest(ctx, f, codeContext)
	if err == nil {
		return text, nil
	}
	if e.fallback == nil || !e.fallback.Available() || ctx.Err() != nil {
		return "", err
	}
	e.logger.Debug("falling back", "provider", e.fallback.Name(), "error", err)
	return e.fallback.Suggest(ctx, f, codeContext)
}

// readContext 读取问题行附近的代码，读不到时使用 CodeSnippet
func readContext(f core.Finding) string {
	data, err := os.ReadFile(f.File)
	if err != nil || f.Line <= 0 {
		return f.CodeSnippet
	}
	lines := strings.Split(string(data), "\n")
	if f.Line > len(lines) {
		return f.CodeSnippet
	}
	start := f.Line - 1 - contextRadius
	if start < 0 {
		start = 0
	}
	end := f.Line + contextRadius
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}
