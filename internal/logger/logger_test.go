package logger

import (
	"bytes"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"

	"github.com/mikeywangzq/cpp-code-review/internal/config"
)

func TestLogLevelPrecedence(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      *config.Config
		env      string
		expected hclog.Level
	}{
		{name: "default", expected: hclog.Info},
		{name: "env", env: "warn", expected: hclog.Warn},
		{name: "config beats env", cfg: &config.Config{Logger: config.Logger{Level: "error"}}, env: "trace", expected: hclog.Error},
		{name: "empty config level falls back to env", cfg: &config.Config{}, env: "DEBUG", expected: hclog.Debug},
		{name: "verbose forces debug", cfg: &config.Config{Verbose: true, Logger: config.Logger{Level: "error"}}, expected: hclog.Debug},
		{name: "unknown level", env: "loud", expected: hclog.Info},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(EnvLogLevel, tc.env)
			l := newLogger(tc.cfg, "test", &bytes.Buffer{})
			assert.Equal(t, tc.expected, l.GetLevel())
		})
	}
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&config.Config{Logger: config.Logger{Level: "info"}}, "cpp-agent", &buf)
	l.Debug("hidden")
	l.Info("scan finished", "files", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "cpp-agent: scan finished: files=3")
	assert.Equal(t, "cpp-agent", NewLogger(nil, "cpp-agent").Name())
}
