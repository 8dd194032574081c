package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/config"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
)

// EinoCompleter 基于 eino ChatModel 的模型后端，OpenAI 兼容接口（DeepSeek、Groq、Qwen 等）通过 base_url 接入
type EinoCompleter struct {
	cm       model.BaseChatModel
	modelID  string
	provider string
}

// NewEinoCompleter 包装已有的 ChatModel
func NewEinoCompleter(cm model.BaseChatModel, modelID string) *EinoCompleter {
	return &EinoCompleter{cm: cm, modelID: modelID, provider: "openai"}
}

// NewEinoOpenAI 创建 OpenAI 兼容的模型后端
func NewEinoOpenAI(ctx context.Context, cfg config.LLMConfig) (*EinoCompleter, error) {
	temperature := cfg.Temperature
	maxTokens := cfg.MaxTokens
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	return NewEinoCompleter(cm, cfg.Model), nil
}

func (c *EinoCompleter) Name() string    { return c.provider }
func (c *EinoCompleter) ModelID() string { return c.modelID }

// Complete 发送 system + user 两条消息
func (c *EinoCompleter) Complete(ctx context.Context, p Prompt) (*Completion, error) {
	messages := []*schema.Message{
		schema.SystemMessage(p.System),
		schema.UserMessage(p.User),
	}

	resp, err := c.cm.Generate(ctx, messages)
	if err != nil {
		return nil, classifyText(c.provider, err)
	}
	if resp == nil {
		return nil, fault.New(fault.FamilyModel, fault.InvalidResponse, c.provider, errors.New("empty response"))
	}

	var finish string
	if resp.ResponseMeta != nil {
		finish = resp.ResponseMeta.FinishReason
	}
	if finish == "content_filter" {
		return nil, fault.New(fault.FamilyModel, fault.ContentRejected, c.provider, errors.New("response blocked by content filter"))
	}
	return &Completion{Text: resp.Content, FinishReason: finish}, nil
}
