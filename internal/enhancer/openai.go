package enhancer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/mikeywangzq/cpp-code-review/internal/config"
	"github.com/mikeywangzq/cpp-code-review/internal/core"
)

const (
	systemPrompt = "You are a C++ code review expert. Provide concise, actionable suggestions."
	maxTokens    = 800
	temperature  = 0.3
)

// ErrNotConfigured 未设置 API key
var ErrNotConfigured = errors.New("openai provider is not configured, set OPENAI_API_KEY or llm_api_key")

// OpenAIProvider 调用 OpenAI 兼容的 chat completions 接口
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	timeout time.Duration
	retries int
	logger  hclog.Logger
	client  *resty.Client
}

// OpenAIOption OpenAI 提供者选项
type OpenAIOption func(*OpenAIProvider)

func WithAPIKey(key string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.apiKey = key
	}
}

func WithModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBaseURL 指向兼容 OpenAI 协议的服务，例如本地代理
func WithBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if url != "" {
			p.baseURL = strings.TrimRight(url, "/")
		}
	}
}

func WithTimeout(timeout time.Duration) OpenAIOption {
	return func(p *OpenAIProvider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

func WithRetries(n int) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.retries = n
	}
}

func WithProviderLogger(logger hclog.Logger) OpenAIOption {
	return func(p *OpenAIProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewOpenAIProvider 创建 OpenAI 提供者
func NewOpenAIProvider(opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		model:   config.DefaultLLMModel,
		baseURL: config.DefaultLLMBaseURL,
		timeout: config.DefaultLLMTimeout,
		retries: 2,
		logger:  hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	client := resty.New()
	client.SetLogger(newHclogAdapter(p.logger))
	client.
		SetBaseURL(p.baseURL).
		SetAuthToken(p.apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(p.timeout).
		SetRetryCount(p.retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// 429 和 5xx 可重试
			return err == nil && (r.StatusCode() == 429 || r.StatusCode() >= 500)
		})
	p.client = client

	return p
}

func (p *OpenAIProvider) Name() string {
	return "OpenAI " + p.model
}

// Available 需要非空且不是 none 的 API key
func (p *OpenAIProvider) Available() bool {
	return p.apiKey != "" && p.apiKey != "none"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Suggest 发送一次 chat completion 请求
func (p *OpenAIProvider) Suggest(ctx context.Context, finding core.Finding, codeContext string) (string, error) {
	if !p.Available() {
		return "", ErrNotConfigured
	}

	var (
		result chatResponse
		failed apiError
	)
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: p.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: buildPrompt(finding, codeContext)},
			},
			MaxTokens:   maxTokens,
			Temperature: temperature,
		}).
		SetResult(&result).
		SetError(&failed).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if resp.IsError() {
		msg := failed.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		return "", fmt.Errorf("openai api error (status %d): %s", resp.StatusCode(), msg)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("openai api returned no choices")
	}

	return "🤖 " + p.Name() + " Analysis:\n\n" + strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// buildPrompt 问题详情加代码上下文
func buildPrompt(f core.Finding, codeContext string) string {
	var b strings.Builder
	b.WriteString("Analyze this issue and provide a detailed, actionable fix.\n\n")
	fmt.Fprintf(&b, "Issue Type: %s\n", f.RuleID)
	fmt.Fprintf(&b, "Severity: %s\n", f.Severity)
	fmt.Fprintf(&b, "Location: %s\n", f.Location())
	fmt.Fprintf(&b, "Description: %s\n\n", f.Description)
	if codeContext != "" {
		fmt.Fprintf(&b, "Code Context:\n```cpp\n%s\n```\n\n", strings.TrimRight(codeContext, "\n"))
	}
	b.WriteString("Please provide:\n")
	b.WriteString("1. Root cause analysis\n")
	b.WriteString("2. Immediate fix with code example\n")
	b.WriteString("3. Long-term best practices\n")
	b.WriteString("4. Potential pitfalls to avoid\n\n")
	b.WriteString("Be concise and practical.")
	return b.String()
}

// hclogAdapter 把 resty 的日志转发到 hclog
type hclogAdapter struct {
	logger hclog.Logger
}

func newHclogAdapter(logger hclog.Logger) resty.Logger {
	return &hclogAdapter{logger: logger}
}

func (a *hclogAdapter) Errorf(format string, v ...interface{}) {
	a.logger.Error(fmt.Sprintf(format, v...))
}

func (a *hclogAdapter) Warnf(format string, v ...interface{}) {
	a.logger.Warn(fmt.Sprintf(format, v...))
}

func (a *hclogAdapter) Debugf(format string, v ...interface{}) {
	a.logger.Debug(fmt.Sprintf(format, v...))
}
