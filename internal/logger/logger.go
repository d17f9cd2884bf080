package logger

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mikeywangzq/cpp-code-review/internal/config"
)

// EnvLogLevel 日志级别环境变量
const EnvLogLevel = "CPP_AGENT_LOG_LEVEL"

// NewLogger 创建日志，级别优先级：verbose > 配置文件 > 环境变量 > INFO
func NewLogger(cfg *config.Config, name string) hclog.Logger {
	return newLogger(cfg, name, os.Stderr)
}

func newLogger(cfg *config.Config, name string, output io.Writer) hclog.Logger {
	var logLevel hclog.Level

	switch {
	case cfg != nil && cfg.Verbose:
		logLevel = hclog.Debug
	case cfg != nil && cfg.Logger.Level != "":
		logLevel = getLogLevel(strings.ToUpper(cfg.Logger.Level))
	default:
		// 环境变量为第二优先级
		logLevel = getLogLevel(strings.ToUpper(os.Getenv(EnvLogLevel)))
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:        name,
		DisableTime: true,
		Output:      output,
		Level:       logLevel,
	})
}

func getLogLevel(levelStr string) hclog.Level {
	switch levelStr {
	case "TRACE":
		return hclog.Trace
	case "DEBUG":
		return hclog.Debug
	case "INFO":
		return hclog.Info
	case "WARN":
		return hclog.Warn
	case "ERROR":
		return hclog.Error
	default:
		return hclog.Info
	}
}
