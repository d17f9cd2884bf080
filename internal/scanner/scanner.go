package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mikeywangzq/cpp-code-review/internal/config"
	"github.com/mikeywangzq/cpp-code-review/internal/core"
	"github.com/mikeywangzq/cpp-code-review/internal/enhancer"
	"github.com/mikeywangzq/cpp-code-review/internal/report"
	"github.com/mikeywangzq/cpp-code-review/internal/rules"
	"github.com/mikeywangzq/cpp-code-review/internal/taint"
)

// LineFilter 判断某个位置的问题是否保留（用于只报告变更行）
type LineFilter func(file string, line int) bool

// Scanner 主扫描器：解析文件并运行所有规则
type Scanner struct {
	cfg        *config.Config
	logger     hclog.Logger
	rules      []core.Rule
	dispatcher *core.Dispatcher
	overrides  map[string]core.Severity
	headerLang string
	lineFilter LineFilter
	enhancer   *enhancer.Enhancer
}

// Option 扫描器选项
type Option func(*Scanner)

func WithLogger(logger hclog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Scanner) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithRules 使用指定规则代替内置规则集（不再按配置过滤）
func WithRules(r ...core.Rule) Option {
	return func(s *Scanner) {
		s.rules = r
	}
}

// WithLineFilter 丢弃 filter 返回 false 的问题
func WithLineFilter(filter LineFilter) Option {
	return func(s *Scanner) {
		s.lineFilter = filter
	}
}

// WithEnhancer 扫描结束后为问题追加增强建议
func WithEnhancer(e *enhancer.Enhancer) Option {
	return func(s *Scanner) {
		s.enhancer = e
	}
}

// New 创建扫描器
func New(opts ...Option) (*Scanner, error) {
	s := &Scanner{
		cfg:    config.Default(),
		logger: hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.rules == nil {
		all := append(rules.All(), core.Rule(taint.NewRule(taint.WithLogger(s.logger.Named("taint")))))
		s.rules = rules.Filter(all, s.cfg.DisabledRules)
	}

	overrides, err := s.cfg.SeverityOverrides()
	if err != nil {
		return nil, err
	}
	s.overrides = overrides

	s.headerLang = core.LanguageCPP
	if s.cfg.IsCStandard() {
		s.headerLang = core.LanguageC
	}

	s.dispatcher = core.NewDispatcher(core.WithDispatcherLogger(s.logger.Named("dispatcher")))
	for _, r := range s.rules {
		s.dispatcher.Register(r)
	}
	s.logger.Debug("scanner initialized", "rules", len(s.rules), "header_language", s.headerLang)

	return s, nil
}

// Rules 已启用的规则
func (s *Scanner) Rules() []core.Rule {
	return s.dispatcher.Rules()
}

// KnownRuleIDs 所有内置规则 ID（含污点分析），用于校验配置
func KnownRuleIDs() []string {
	return append(rules.IDs(rules.All()), taint.RuleID)
}

// CollectSourceFiles 展开路径：目录递归查找 C/C++ 文件并跳过排除目录，文件直接加入
func CollectSourceFiles(paths []string, excludeDirs []string) ([]string, error) {
	excluded := make(map[string]bool, len(excludeDirs))
	for _, d := range excludeDirs {
		excluded[strings.ToLower(d)] = true
	}

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", root, err)
		}
		if !info.IsDir() {
			if !core.IsSourceFile(root) {
				return nil, fmt.Errorf("%s is not a C/C++ source file", root)
			}
			add(root)
			continue
		}

		var found []string
		err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if path != root && excluded[strings.ToLower(info.Name())] {
					return filepath.SkipDir
				}
				return nil
			}
			if core.IsSourceFile(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk directory %s: %w", root, err)
		}
		sort.Strings(found)
		for _, f := range found {
			add(f)
		}
	}

	return files, nil
}

// ScanFile 解析并分析单个文件，问题写入 out
// 读取或解析失败时文件未被分析；规则失败以 *core.RuleError 的形式合并返回，其余规则的结果仍然保留
func (s *Scanner) ScanFile(ctx context.Context, path string, out *core.Collector) error {
	unit, err := core.ParseFile(ctx, path, core.WithHeaderLanguage(s.headerLang))
	if err != nil {
		return err
	}
	defer unit.Close()

	local := core.NewCollector()
	errs := s.dispatcher.RunAll(core.NewAnalysisContext(unit), local)

	for _, f := range local.All() {
		if s.lineFilter != nil && !s.lineFilter(f.File, f.Line) {
			continue
		}
		out.Add(f)
	}

	return errors.Join(errs...)
}

// Scan 扫描所有路径并生成结果；单个文件失败记录到 Errors 后继续
func (s *Scanner) Scan(ctx context.Context, paths []string) (*report.ScanResult, error) {
	result := report.NewScanResult()
	result.RulesUsed = report.NewRuleInfos(s.rules)

	files, err := CollectSourceFiles(paths, s.cfg.ExcludeDirs)
	if err != nil {
		return nil, err
	}
	result.Files = files
	s.logger.Info("scan started", "files", len(files), "rules", len(s.rules))

	collector := core.NewCollector(core.WithSeverityOverrides(s.overrides))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := s.ScanFile(ctx, file, collector)
		var ruleErr *core.RuleError
		switch {
		case err == nil:
			result.FilesScanned++
		case errors.As(err, &ruleErr):
			result.FilesScanned++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file, err))
		default:
			s.logger.Warn("failed to scan file", "file", file, "error", err)
			result.Errors = append(result.Errors, err.Error())
		}
	}

	if s.enhancer != nil && s.enhancer.Enabled() {
		n, err := s.enhancer.EnhanceAll(ctx, collector)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.Warn("some suggestions could not be enhanced", "error", err)
		}
		s.logger.Debug("suggestions enhanced", "provider", s.enhancer.ProviderName(), "count", n)
	}

	result.Findings = collector.All()
	result.RuleTimings = s.dispatcher.Timings()
	result.Finish()

	s.logger.Info("scan finished",
		"files", result.FilesScanned,
		"findings", len(result.Findings),
		"critical", result.CriticalCount(),
		"duration", result.Duration)

	return result, nil
}
