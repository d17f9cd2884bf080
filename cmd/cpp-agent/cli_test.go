package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nullSource = `void f() {
    *(int *)0 = 5;
}
`

const cleanSource = `int main(void) {
    return 0;
}
`

const assignSource = `int check(int a, int b) {
    if (a = b) {
        return 1;
    }
    return 0;
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExitCode(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil", err: nil, expected: exitOK},
		{name: "plain", err: errors.New("boom"), expected: exitFailure},
		{name: "critical", err: newExitError(exitCritical, errors.New("critical")), expected: exitCritical},
		{name: "wrapped", err: errors.Join(errors.New("x"), newExitError(exitCritical, nil)), expected: exitCritical},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, exitCode(tc.err))
		})
	}

	assert.Equal(t, "exit status 2", newExitError(exitCritical, nil).Error())
}

func TestVersion(t *testing.T) {
	code, stdout, _ := run(t, "", "version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "cpp-code-review v2.0.0")
	assert.Contains(t, stdout, "Go Version:")
}

func TestRules(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), ".cpp-agent.yml", "disabled_rules: [LOOP-COPY-001]\n")

	code, stdout, _ := run(t, "", "rules", "--config", cfg)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "NULL-PTR-001")
	assert.Contains(t, stdout, "TAINT-ANALYSIS-001")
	assert.Contains(t, stdout, "USE-AFTER-FREE-001")

	for _, line := range strings.Split(stdout, "\n") {
		if strings.HasPrefix(line, "LOOP-COPY-001") {
			assert.Contains(t, line, "disabled")
		}
	}
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()

	code, _, stderr := run(t, "", "rules", "--config", filepath.Join(dir, "missing.yml"))
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "config")

	bad := writeFile(t, dir, "bad.yml", "rule_severity:\n  NULL-PTR-001: URGENT\n")
	code, _, stderr = run(t, "", "rules", "--config", bad)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "invalid configuration")

	unknown := writeFile(t, dir, "unknown.yml", "disabled_rules: [NOPE-001]\n")
	code, _, _ = run(t, "", "version", "--config", unknown)
	assert.Equal(t, exitFailure, code)
}

func TestScanCriticalExitCode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "null.cpp", nullSource)

	code, stdout, stderr := run(t, "", "scan", "--no-color", dir)
	assert.Equal(t, exitCritical, code)
	assert.Contains(t, stdout, "NULL-PTR-001")
	assert.Contains(t, stderr, "1 critical issue(s) found")
}

func TestScanClean(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.c", cleanSource)

	code, _, stderr := run(t, "", "scan", "--no-color", dir)
	assert.Equal(t, exitOK, code, stderr)
}

func TestScanReportFiles(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "src/main.c", cleanSource)
	out := filepath.Join(dir, "reports")

	code, stdout, stderr := run(t, "", "scan", "--format", "json", "--output-dir", out, src)
	require.Equal(t, exitOK, code, stderr)
	assert.FileExists(t, filepath.Join(out, "cpp_review_report.json"))
	assert.Contains(t, stdout, "Report written")

	htmlPath := filepath.Join(dir, "html", "review.html")
	code, stdout, stderr = run(t, "", "scan", "--no-color", "--html-output", htmlPath, src)
	require.Equal(t, exitOK, code, stderr)
	assert.FileExists(t, htmlPath)
	assert.Contains(t, stdout, "HTML report written")

	code, _, stderr = run(t, "", "scan", "--format", "all", "--output-dir", out, src)
	require.Equal(t, exitOK, code, stderr)
	for _, ext := range []string{"json", "txt", "sarif", "html"} {
		assert.FileExists(t, filepath.Join(out, "cpp_review_report."+ext))
	}
}

func TestScanUsageErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.c", cleanSource)

	testCases := []struct {
		name string
		args []string
	}{
		{name: "bad format", args: []string{"scan", "--format", "xml", dir}},
		{name: "changed lines without incremental", args: []string{"scan", "--changed-lines-only", dir}},
		{name: "bad incremental mode", args: []string{"scan", "--incremental", "yesterday", dir}},
		{name: "incremental outside repository", args: []string{"scan", "--incremental", "workspace", dir}},
		{name: "unknown flag", args: []string{"scan", "--nope", dir}},
		{name: "missing path", args: []string{"scan", filepath.Join(dir, "missing")}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, stderr := run(t, "", tc.args...)
			assert.Equal(t, exitFailure, code)
			assert.Contains(t, stderr, "Error:")
		})
	}
}

func TestFixAndRollback(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "check.c", assignSource)

	code, stdout, stderr := run(t, "", "fix", "--min-severity", "LOW", dir)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Fix summary")

	fixed, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(fixed), "if (a == b)")
	assert.FileExists(t, path+".backup")

	code, stdout, stderr = run(t, "", "rollback", dir)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Restored 1 file(s)")

	restored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, assignSource, string(restored))
	assert.NoFileExists(t, path+".backup")

	code, stdout, _ = run(t, "", "rollback", dir)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "No backups found.")
}

func TestFixDryRunAndInteractive(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "check.c", assignSource)

	code, stdout, stderr := run(t, "", "fix", "--dry-run", dir)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "(dry run)")
	assert.Contains(t, stdout, "+    if (a == b) {")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, assignSource, string(content))
	assert.NoFileExists(t, path+".backup")

	code, stdout, stderr = run(t, "n\n", "fix", "--interactive", "--no-backup", dir)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Apply this fix?")
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, assignSource, string(content))
}

func TestFixNothingToDo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.c", cleanSource)

	code, stdout, _ := run(t, "", "fix", dir)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "nothing to fix")
}

func TestWatchRejectsFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "main.c", cleanSource)

	code, _, stderr := run(t, "", "watch", path)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "is not a directory")
}

func TestScanPipedOutputHasNoColor(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "null.cpp", nullSource)

	code, stdout, _ := run(t, "", "scan", dir)
	assert.Equal(t, exitCritical, code)
	assert.Contains(t, stdout, "Severity: CRITICAL")
	assert.NotContains(t, stdout, "\x1b[")
}

func TestColorEnabled(t *testing.T) {
	file, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })

	testCases := []struct {
		name     string
		out      io.Writer
		disabled bool
	}{
		{name: "buffer", out: &bytes.Buffer{}},
		{name: "regular file", out: file},
		{name: "disabled by flag", out: os.Stdout, disabled: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, colorEnabled(tc.out, tc.disabled))
		})
	}
}
