package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/config"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
)

// Prompt 一次补全请求
type Prompt struct {
	System string
	User   string
}

// Completion 模型返回
type Completion struct {
	Text         string
	FinishReason string
}

// Completer 语言模型能力，不同服务商各自实现
type Completer interface {
	Complete(ctx context.Context, p Prompt) (*Completion, error)
	ModelID() string
	Name() string
}

// NewCompleter 根据配置创建模型后端
func NewCompleter(ctx context.Context, cfg config.LLMConfig) (Completer, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicCompleter(cfg), nil
	case "openai", "":
		c, err := NewEinoOpenAI(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

var statusCodePattern = regexp.MustCompile(`status code:? (\d{3})`)

// classifyText 从报错文本中识别错误类型，SDK 不暴露结构化状态码时使用
func classifyText(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, ok := fault.AsProviderError(err); ok {
		return err
	}

	msg := strings.ToLower(err.Error())
	if m := statusCodePattern.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		return fault.FromStatus(fault.FamilyModel, provider, code, err)
	}
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit"):
		return fault.New(fault.FamilyModel, fault.RateLimited, provider, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "invalid api key"):
		return fault.New(fault.FamilyModel, fault.Unauthorized, provider, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fault.New(fault.FamilyModel, fault.Timeout, provider, err)
	}
	return fault.New(fault.FamilyModel, fault.Unavailable, provider, err)
}
