package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".cpp-agent.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCppStandard, cfg.CppStandard)
	assert.Equal(t, DefaultHTMLOutputFile, cfg.HTMLOutputFile)
	assert.Equal(t, ProviderRuleBased, cfg.LLMProvider)
	assert.False(t, cfg.HTMLOutput)
	assert.True(t, cfg.Fix.BackupEnabled())
	assert.Contains(t, cfg.ExcludeDirs, ".git")
	assert.NoError(t, cfg.Validate(nil))

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.DisabledRules)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	path := writeConfig(t, `
disabled_rules:
  - LOOP-COPY-001
  - SMART-PTR-001
rule_severity:
  MEMORY-LEAK-001: critical
html_output: true
html_output_file: out/review.html
cpp_standard: c11
verbose: yes
enable_ai_suggestions: true
llm_provider: openai
llm_model: gpt-4o
llm_timeout: 10s
logger:
  level: debug
fix:
  min_severity: HIGH
  interactive: true
  backup: false
exclude_dirs: [build, generated]
severity_NULL-PTR-001: HIGH
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, RuleList{"LOOP-COPY-001", "SMART-PTR-001"}, cfg.DisabledRules)
	assert.True(t, cfg.HTMLOutput)
	assert.Equal(t, "out/review.html", cfg.HTMLOutputFile)
	assert.True(t, cfg.IsCStandard())
	assert.True(t, cfg.Verbose)
	assert.True(t, cfg.EnableAISuggestions)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "gpt-4o", cfg.LLMModel)
	assert.Equal(t, DefaultLLMBaseURL, cfg.LLMBaseURL)
	assert.Equal(t, 10*time.Second, cfg.LLMTimeout)
	assert.Equal(t, "sk-from-env", cfg.LLMAPIKey)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.True(t, cfg.Fix.Interactive)
	assert.False(t, cfg.Fix.BackupEnabled())
	assert.Equal(t, []string{"build", "generated"}, cfg.ExcludeDirs)

	overrides, err := cfg.SeverityOverrides()
	require.NoError(t, err)
	assert.Equal(t, map[string]core.Severity{
		"MEMORY-LEAK-001": core.SeverityCritical,
		"NULL-PTR-001":    core.SeverityHigh,
	}, overrides)

	minSev, err := cfg.FixMinSeverity()
	require.NoError(t, err)
	assert.Equal(t, core.SeverityHigh, minSev)

	assert.NoError(t, cfg.Validate([]string{"LOOP-COPY-001", "SMART-PTR-001", "MEMORY-LEAK-001", "NULL-PTR-001"}))
}

func TestExplicitKeyWins(t *testing.T) {
	path := writeConfig(t, `
llm_api_key: sk-file
rule_severity:
  NULL-PTR-001: LOW
severity_NULL-PTR-001: HIGH
`)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", cfg.LLMAPIKey)
	assert.Equal(t, "LOW", cfg.RuleSeverity["NULL-PTR-001"])
}

func TestDisabledRulesString(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		expected RuleList
	}{
		{name: "flow list", content: "disabled_rules: [A-001, B-002]\n", expected: RuleList{"A-001", "B-002"}},
		{name: "comma string", content: "disabled_rules: \"A-001, B-002\"\n", expected: RuleList{"A-001", "B-002"}},
		{name: "bracketed string", content: "disabled_rules: \"[A-001]\"\n", expected: RuleList{"A-001"}},
		{name: "single", content: "disabled_rules: A-001\n", expected: RuleList{"A-001"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tc.content))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, cfg.DisabledRules)
		})
	}

	_, err := Load(writeConfig(t, "disabled_rules:\n  key: value\n"))
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeConfig(t, "verbose: [unterminated\n"))
	assert.Error(t, err)

	_, err = Load(t.TempDir())
	assert.ErrorContains(t, err, "is a directory")

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultCppStandard, cfg.CppStandard)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(c *Config)
		valid  bool
	}{
		{name: "defaults", modify: func(c *Config) {}, valid: true},
		{name: "bad severity", modify: func(c *Config) { c.RuleSeverity["NULL-PTR-001"] = "URGENT" }},
		{name: "bad min severity", modify: func(c *Config) { c.Fix.MinSeverity = "sometimes" }},
		{name: "bad provider", modify: func(c *Config) { c.LLMProvider = "claude" }},
		{name: "negative timeout", modify: func(c *Config) { c.LLMTimeout = -time.Second }},
		{name: "unknown disabled rule", modify: func(c *Config) { c.DisabledRules = RuleList{"NOPE-001"} }},
		{name: "unknown severity rule", modify: func(c *Config) { c.RuleSeverity["NOPE-001"] = "LOW" }},
		{name: "known rule", modify: func(c *Config) { c.DisabledRules = RuleList{"NULL-PTR-001"} }, valid: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			err := cfg.Validate([]string{"NULL-PTR-001"})
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestIsCStandard(t *testing.T) {
	testCases := []struct {
		std      string
		expected bool
	}{
		{"c++17", false},
		{"C++20", false},
		{"c11", true},
		{"c99", true},
		{"gnu11", true},
		{"gnu++17", false},
		{"", false},
	}
	for _, tc := range testCases {
		t.Run(tc.std, func(t *testing.T) {
			cfg := Default()
			cfg.CppStandard = tc.std
			assert.Equal(t, tc.expected, cfg.IsCStandard())
		})
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, Find(dir))

	path := filepath.Join(dir, ".cpp-agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("verbose: true\n"), 0o644))
	assert.Equal(t, path, Find(dir))
}
