package enhancer

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/mikeywangzq/cpp-code-review/internal/config"
	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

// Provider 为 Finding 生成增强建议
type Provider interface {
	// Name 提供者名称，用于日志和报告
	Name() string
	// Available 是否已配置可用
	Available() bool
	// Suggest 根据问题和代码上下文生成建议
	Suggest(ctx context.Context, finding core.Finding, codeContext string) (string, error)
}

// NewProvider 按配置创建提供者，llm_provider 为 none 时返回 nil
func NewProvider(cfg *config.Config, logger hclog.Logger) (Provider, error) {
	switch cfg.LLMProvider {
	case config.ProviderRuleBased, "":
		return NewRuleBasedProvider(), nil
	case config.ProviderOpenAI:
		return NewOpenAIProvider(
			WithAPIKey(cfg.LLMAPIKey),
			WithModel(cfg.LLMModel),
			WithBaseURL(cfg.LLMBaseURL),
			WithTimeout(cfg.LLMTimeout),
			WithProviderLogger(logger),
		), nil
	case config.ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", config.ErrInvalid, cfg.LLMProvider)
	}
}
