package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

func sampleResult() *ScanResult {
	result := NewScanResult()
	result.Duration = 1500 * time.Millisecond
	result.Files = []string{"src/main.cpp", "src/util.c"}
	result.FilesScanned = 2
	result.RulesUsed = []RuleInfo{
		{ID: "NULL-PTR-001", Name: "Null Pointer Dereference", Description: "Detects dereference of null pointers"},
		{ID: "LOOP-COPY-001", Name: "Loop Copy", Description: "Detects copies in range-for loops"},
	}
	result.RuleTimings = []core.RuleTiming{{RuleID: "NULL-PTR-001", Duration: 3 * time.Millisecond}}
	result.Findings = []core.Finding{
		{File: "src/main.cpp", Line: 10, Column: 5, Severity: core.SeverityLow, RuleID: "LOOP-COPY-001",
			Description: "Loop variable 'item' is copied", Suggestion: "Use const auto&", CodeSnippet: "for (auto item : items)"},
		{File: "src/util.c", Line: 3, Column: 7, Severity: core.SeverityCritical, RuleID: "NULL-PTR-001",
			Description: "Dereference of a null pointer", CodeSnippet: "*p = <script>"},
		{File: "src/util.c", Line: 8, Column: 1, Severity: core.SeverityMedium, RuleID: "TAINT-ANALYSIS-001",
			Description: "Potential format string vulnerability"},
	}
	return result
}

func TestNewScanResult(t *testing.T) {
	a, b := NewScanResult(), NewScanResult()
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, ToolName, a.Tool)
	assert.Equal(t, ToolVersion, a.Version)

	result := sampleResult()
	assert.Equal(t, 1, result.CriticalCount())
	assert.Equal(t, 2, result.FilesWithFindings())
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextWriter(&buf).Write(sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "Total issues found: 3")
	assert.Contains(t, out, "  - Critical: 1")
	assert.Contains(t, out, "  - Suggestions: 0")
	assert.Contains(t, out, "[Issue #1]\nLocation: src/main.cpp:10:5\nSeverity: LOW\nRule ID: LOOP-COPY-001")
	assert.Contains(t, out, "Code:\n  for (auto item : items)")
	assert.Contains(t, out, "Suggestion: Use const auto&")
	assert.Contains(t, out, "Analysis complete.")
	assert.NotContains(t, out, "\033[")
	assert.NotContains(t, out, "Scan Statistics")

	// 第三个问题没有代码和建议
	third := out[strings.Index(out, "[Issue #3]"):]
	assert.NotContains(t, third, "Code:")
	assert.NotContains(t, third, "Suggestion:")
}

func TestTextWriterColorAndVerbose(t *testing.T) {
	var buf bytes.Buffer
	result := sampleResult()
	result.Errors = []string{"broken.cpp: parse failed"}
	require.NoError(t, NewTextWriter(&buf, WithColor(), WithVerbose()).Write(result))
	out := buf.String()

	assert.Contains(t, out, "Severity: \033[1;31mCRITICAL\033[")
	assert.Contains(t, out, "Severity: \033[33mMEDIUM\033[")
	assert.Contains(t, out, "Scan Statistics:")
	assert.Contains(t, out, "Files scanned: 2")
	assert.Contains(t, out, "NULL-PTR-001")
	assert.Contains(t, out, "broken.cpp: parse failed")
}

func TestTextWriterNoFindings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextWriter(&buf).Write(NewScanResult()))
	out := buf.String()

	assert.Contains(t, out, "Total issues found: 0")
	assert.True(t, strings.HasSuffix(out, "✓ No issues found! Your code looks good.\n"))
	assert.NotContains(t, out, "Detailed Issues")
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	result := sampleResult()
	require.NoError(t, NewJSONWriter(&buf).Write(result))

	var report JSONReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, result.ID, report.ID)
	assert.Equal(t, ToolName, report.Tool.Name)
	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Critical)
	assert.Equal(t, 1, report.Summary.BySeverity["MEDIUM"])
	assert.Equal(t, 2, report.Summary.FilesAffected)
	assert.Equal(t, int64(3), report.Statistics.RuleTimings["NULL-PTR-001"])

	require.Len(t, report.Findings, 3)
	assert.Equal(t, core.SeverityCritical, report.Findings[0].Severity)
	assert.Equal(t, core.SeverityMedium, report.Findings[1].Severity)
	assert.Equal(t, core.SeverityLow, report.Findings[2].Severity)

	// 原结果顺序不受排序影响
	assert.Equal(t, "LOOP-COPY-001", result.Findings[0].RuleID)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	first := raw["findings"].([]any)[0].(map[string]any)
	assert.Equal(t, "CRITICAL", first["severity"])
	assert.Equal(t, "NULL-PTR-001", first["rule_id"])
	assert.Contains(t, first, "code_snippet")
}

func TestSARIFWriter(t *testing.T) {
	var buf bytes.Buffer
	result := sampleResult()
	require.NoError(t, NewSARIFWriter(&buf).Write(result))

	var doc struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Name    string `json:"name"`
					Version string `json:"version"`
					Rules   []struct {
						ID                   string `json:"id"`
						DefaultConfiguration *struct {
							Level string `json:"level"`
						} `json:"defaultConfiguration"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			AutomationDetails struct {
				ID string `json:"id"`
			} `json:"automationDetails"`
			Results []struct {
				RuleID    string `json:"ruleId"`
				Level     string `json:"level"`
				Locations []struct {
					PhysicalLocation struct {
						ArtifactLocation struct {
							URI string `json:"uri"`
						} `json:"artifactLocation"`
						Region struct {
							StartLine   int `json:"startLine"`
							StartColumn int `json:"startColumn"`
						} `json:"region"`
					} `json:"physicalLocation"`
				} `json:"locations"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "2.1.0", doc.Version)
	require.Len(t, doc.Runs, 1)
	run := doc.Runs[0]
	assert.Equal(t, ToolName, run.Tool.Driver.Name)
	assert.Equal(t, ToolVersion, run.Tool.Driver.Version)
	assert.Equal(t, result.ID, run.AutomationDetails.ID)

	// 两个声明的规则加上结果中出现的污点规则
	require.Len(t, run.Tool.Driver.Rules, 3)
	assert.Equal(t, "NULL-PTR-001", run.Tool.Driver.Rules[0].ID)
	require.NotNil(t, run.Tool.Driver.Rules[0].DefaultConfiguration)
	assert.Equal(t, "error", run.Tool.Driver.Rules[0].DefaultConfiguration.Level)
	assert.Equal(t, "TAINT-ANALYSIS-001", run.Tool.Driver.Rules[2].ID)

	require.Len(t, run.Results, 3)
	assert.Equal(t, "note", run.Results[0].Level)
	assert.Equal(t, "error", run.Results[1].Level)
	assert.Equal(t, "warning", run.Results[2].Level)
	loc := run.Results[1].Locations[0].PhysicalLocation
	assert.Equal(t, "src/util.c", loc.ArtifactLocation.URI)
	assert.Equal(t, 3, loc.Region.StartLine)
	assert.Equal(t, 7, loc.Region.StartColumn)
}

func TestSARIFLevel(t *testing.T) {
	testCases := []struct {
		severity core.Severity
		expected string
	}{
		{core.SeverityCritical, "error"},
		{core.SeverityHigh, "error"},
		{core.SeverityMedium, "warning"},
		{core.SeverityLow, "note"},
		{core.SeveritySuggestion, "note"},
	}
	for _, tc := range testCases {
		t.Run(tc.severity.String(), func(t *testing.T) {
			assert.Equal(t, tc.expected, SARIFLevel(tc.severity))
		})
	}
}

func TestHTMLWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewHTMLWriter(&buf).Write(sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "<!DOCTYPE html>")
	assert.Contains(t, out, `data-severity="CRITICAL"`)
	assert.Contains(t, out, "问题 #3")
	assert.Contains(t, out, "src/util.c:3:7")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.NotContains(t, out, "*p = <script>")
	assert.NotContains(t, out, "没有发现任何问题")

	buf.Reset()
	require.NoError(t, NewHTMLWriter(&buf).Write(NewScanResult()))
	assert.Contains(t, buf.String(), "没有发现任何问题")
}

func TestManagerGenerate(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(WithFormat(FormatAll), WithOutputDir(dir), WithTextColor(true))
	files, err := m.Generate(sampleResult())
	require.NoError(t, err)

	expected := []string{"cpp_review_report.json", "cpp_review_report.txt", "cpp_review_report.sarif", "cpp_review_report.html"}
	require.Len(t, files, len(expected))
	for i, name := range expected {
		assert.Equal(t, filepath.Join(dir, name), files[i])
		info, err := os.Stat(files[i])
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	text, err := os.ReadFile(filepath.Join(dir, "cpp_review_report.txt"))
	require.NoError(t, err)
	assert.NotContains(t, string(text), "\033[")
}

func TestManagerFilename(t *testing.T) {
	dir := t.TempDir()
	files, err := NewManager(WithFormat(FormatHTML), WithOutputDir(dir), WithFilename("review.html")).Generate(sampleResult())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "review.html")}, files)

	m := NewManager(WithFormat(FormatAll), WithFilename("review.html"))
	assert.Equal(t, "review.sarif", m.generateFilename(FormatSARIF))

	m = NewManager(WithFormat(FormatJSON), WithTimestamp())
	name := m.generateFilename(FormatJSON)
	assert.True(t, strings.HasPrefix(name, "cpp_review_report_"))
	assert.True(t, strings.HasSuffix(name, ".json"))
}

func TestManagerRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewManager(WithFormat(FormatJSON)).Render(&buf, sampleResult()))
	assert.True(t, json.Valid(buf.Bytes()))

	assert.Error(t, NewManager(WithFormat(FormatAll)).Render(&buf, sampleResult()))
	_, err := NewManager(WithFormat("xml")).Generate(sampleResult())
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	testCases := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{input: "json", expected: FormatJSON},
		{input: "TEXT", expected: FormatText},
		{input: "txt", expected: FormatText},
		{input: "sarif", expected: FormatSARIF},
		{input: " html ", expected: FormatHTML},
		{input: "all", expected: FormatAll},
		{input: "xml", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			f, err := ParseFormat(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, f)
		})
	}

	for _, f := range SupportedFormats() {
		assert.NotEqual(t, "Unknown format", FormatDescription(f))
	}
}
