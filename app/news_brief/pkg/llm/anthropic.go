package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/config"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
)

const anthropicProvider = "anthropic"

// AnthropicCompleter 基于 Anthropic Messages API 的模型后端
type AnthropicCompleter struct {
	client      *anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	temperature float64
}

// NewAnthropicCompleter 创建 Anthropic 后端。SDK 自带的重试被关闭，由流水线统一重试。
func NewAnthropicCompleter(cfg config.LLMConfig, opts ...option.RequestOption) *AnthropicCompleter {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	client := anthropic.NewClient(reqOpts...)
	return &AnthropicCompleter{
		client:      &client,
		model:       anthropic.Model(cfg.Model),
		maxTokens:   int64(cfg.MaxTokens),
		temperature: float64(cfg.Temperature),
	}
}

func (c *AnthropicCompleter) Name() string    { return anthropicProvider }
func (c *AnthropicCompleter) ModelID() string { return string(c.model) }

func (c *AnthropicCompleter) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		System: []anthropic.TextBlockParam{
			{Text: p.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
		},
	})
	if err != nil {
		return nil, classifyAnthropic(err)
	}

	stop := string(resp.StopReason)
	if stop == "refusal" {
		return nil, fault.New(fault.FamilyModel, fault.ContentRejected, anthropicProvider, errors.New("model refused the request"))
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, fault.New(fault.FamilyModel, fault.InvalidResponse, anthropicProvider, errors.New("no response from anthropic"))
	}
	return &Completion{Text: sb.String(), FinishReason: stop}, nil
}

func classifyAnthropic(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return classifyText(anthropicProvider, err)
	}
	// 529 overloaded 与 5xx 一样按不可用处理
	return fault.FromStatus(fault.FamilyModel, anthropicProvider, apiErr.StatusCode, err)
}
