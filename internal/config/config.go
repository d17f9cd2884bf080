package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// DefaultFileNames 按顺序查找的配置文件名
var DefaultFileNames = []string{".cpp-agent.yml", ".cpp-agent.yaml"}

// ErrInvalid 配置值不合法
var ErrInvalid = errors.New("invalid configuration")

// LLM 提供者
const (
	ProviderRuleBased = "rule-based"
	ProviderOpenAI    = "openai"
	ProviderNone      = "none"
)

// 默认值
const (
	DefaultHTMLOutputFile = "report.html"
	DefaultCppStandard    = "c++17"
	DefaultLLMModel       = "gpt-4o-mini"
	DefaultLLMBaseURL     = "https://api.openai.com/v1"
	DefaultLLMTimeout     = 30 * time.Second
)

// defaultExcludeDirs 目录扫描时跳过的目录
var defaultExcludeDirs = []string{
	// 构建产物
	"build", "dist", "target", "cmake-build", ".cmake",
	// 依赖管理
	"vendor", "node_modules", "third_party", "thirdparty", "3rdparty", "deps", "external", "externals",
	// 版本控制
	".git", ".svn", ".hg",
	// IDE 和编辑器
	".cache", ".idea", ".vscode",
	"__pycache__",
}

// Config 工具配置
type Config struct {
	DisabledRules  RuleList          `yaml:"disabled_rules"`
	RuleSeverity   map[string]string `yaml:"rule_severity"`
	HTMLOutput     bool              `yaml:"html_output"`
	HTMLOutputFile string            `yaml:"html_output_file"`
	CppStandard    string            `yaml:"cpp_standard"`
	Verbose        bool              `yaml:"verbose"`

	EnableAISuggestions bool          `yaml:"enable_ai_suggestions"`
	LLMProvider         string        `yaml:"llm_provider"`
	LLMAPIKey           string        `yaml:"llm_api_key"`
	LLMModel            string        `yaml:"llm_model"`
	LLMBaseURL          string        `yaml:"llm_base_url"`
	LLMTimeout          time.Duration `yaml:"llm_timeout"`

	Logger      Logger   `yaml:"logger"`
	Fix         Fix      `yaml:"fix"`
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// 兼容旧格式的 severity_<RULE-ID>: LEVEL
	Extra map[string]interface{} `yaml:",inline"`
}

// Logger 日志配置
type Logger struct {
	Level string `yaml:"level"`
}

// Fix 自动修复配置
type Fix struct {
	MinSeverity string `yaml:"min_severity"`
	Interactive bool   `yaml:"interactive"`
	Backup      *bool  `yaml:"backup"`
}

// BackupEnabled 未设置时默认开启
func (f Fix) BackupEnabled() bool {
	return f.Backup == nil || *f.Backup
}

// RuleList 规则 ID 列表，兼容 YAML 序列和逗号分隔的字符串
type RuleList []string

// UnmarshalYAML 实现 yaml.Unmarshaler
func (l *RuleList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = cleanList(items)
	case yaml.ScalarNode:
		value := strings.Trim(strings.TrimSpace(node.Value), "[]")
		*l = cleanList(strings.Split(value, ","))
	default:
		return fmt.Errorf("line %d: disabled_rules must be a list or a comma separated string", node.Line)
	}
	return nil
}

func cleanList(items []string) RuleList {
	var out RuleList
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		RuleSeverity:   map[string]string{},
		HTMLOutputFile: DefaultHTMLOutputFile,
		CppStandard:    DefaultCppStandard,
		LLMProvider:    ProviderRuleBased,
		LLMModel:       DefaultLLMModel,
		LLMBaseURL:     DefaultLLMBaseURL,
		LLMTimeout:     DefaultLLMTimeout,
		Fix: Fix{
			MinSeverity: core.SeverityLow.String(),
		},
		ExcludeDirs: append([]string(nil), defaultExcludeDirs...),
	}
}

// ValidateConfigPath 检查路径是存在的文件
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML 把 YAML 文件解码到 data
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		// 空文件
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse %s: %w", configPath, err)
	}

	return nil
}

// Load 读取配置文件，文件不存在时返回默认配置
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := LoadYAML(configPath, cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	cfg.applyLegacyKeys()
	cfg.applyEnv()
	return cfg, nil
}

// Find 在 dir 中查找配置文件，找不到返回空字符串
func Find(dir string) string {
	for _, name := range DefaultFileNames {
		path := filepath.Join(dir, name)
		if ValidateConfigPath(path) == nil {
			return path
		}
	}
	return ""
}

// applyLegacyKeys 处理 severity_<RULE-ID> 形式的覆盖
func (c *Config) applyLegacyKeys() {
	if c.RuleSeverity == nil {
		c.RuleSeverity = map[string]string{}
	}
	for key, value := range c.Extra {
		id, ok := strings.CutPrefix(key, "severity_")
		if !ok || id == "" {
			continue
		}
		if _, exists := c.RuleSeverity[id]; !exists {
			c.RuleSeverity[id] = fmt.Sprint(value)
		}
	}
}

// applyEnv 环境变量补齐空的 API key
func (c *Config) applyEnv() {
	if c.LLMAPIKey == "" {
		c.LLMAPIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// SeverityOverrides 解析后的严重级别覆盖
func (c *Config) SeverityOverrides() (map[string]core.Severity, error) {
	overrides := make(map[string]core.Severity, len(c.RuleSeverity))
	for id, name := range c.RuleSeverity {
		sev, err := core.ParseSeverity(name)
		if err != nil {
			return nil, fmt.Errorf("%w: rule_severity[%s]: %v", ErrInvalid, id, err)
		}
		overrides[id] = sev
	}
	return overrides, nil
}

// FixMinSeverity 解析后的修复最低级别
func (c *Config) FixMinSeverity() (core.Severity, error) {
	if c.Fix.MinSeverity == "" {
		return core.SeverityLow, nil
	}
	sev, err := core.ParseSeverity(c.Fix.MinSeverity)
	if err != nil {
		return 0, fmt.Errorf("%w: fix.min_severity: %v", ErrInvalid, err)
	}
	return sev, nil
}

// IsCStandard cpp_standard 是否指定了 C 标准（影响 .h 文件的语言）
func (c *Config) IsCStandard() bool {
	std := strings.ToLower(strings.TrimSpace(c.CppStandard))
	if strings.HasPrefix(std, "gnu") {
		return !strings.HasPrefix(std, "gnu++")
	}
	return strings.HasPrefix(std, "c") && !strings.HasPrefix(std, "c++")
}

// Validate 检查配置值，knownRules 为空时不检查规则 ID
func (c *Config) Validate(knownRules []string) error {
	var errs []error

	if _, err := c.SeverityOverrides(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.FixMinSeverity(); err != nil {
		errs = append(errs, err)
	}

	switch c.LLMProvider {
	case ProviderRuleBased, ProviderOpenAI, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("%w: llm_provider %q (expected %s, %s or %s)",
			ErrInvalid, c.LLMProvider, ProviderRuleBased, ProviderOpenAI, ProviderNone))
	}

	if c.LLMTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: llm_timeout must not be negative", ErrInvalid))
	}

	if len(knownRules) > 0 {
		known := make(map[string]bool, len(knownRules))
		for _, id := range knownRules {
			known[id] = true
		}
		for _, id := range c.DisabledRules {
			if !known[id] {
				errs = append(errs, fmt.Errorf("%w: disabled_rules: unknown rule %q", ErrInvalid, id))
			}
		}
		for id := range c.RuleSeverity {
			if !known[id] {
				errs = append(errs, fmt.Errorf("%w: rule_severity: unknown rule %q", ErrInvalid, id))
			}
		}
	}

	return errors.Join(errs...)
}
