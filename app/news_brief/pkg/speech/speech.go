package speech

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/config"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
)

// 超长文本的处理策略
const (
	OverflowTruncate = "truncate"
	OverflowReject   = "reject"
)

// Renderer 语音合成能力
type Renderer interface {
	Render(ctx context.Context, text, language string) (*model.AudioAsset, error)
	Name() string
	// MaxChars 服务商单次请求允许的最大字符数
	MaxChars() int
}

// NewRenderer 根据配置创建语音后端，provider 为 none 时返回 nil
func NewRenderer(ctx context.Context, cfg config.SpeechConfig, hc *http.Client) (Renderer, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "elevenlabs":
		return NewElevenLabs(cfg.ElevenLabs, hc), nil
	case "google":
		g, err := NewGoogle(ctx, cfg.Google)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown speech provider: %s", cfg.Provider)
	}
}

// byteLimited 上限按 UTF-8 字节计算的服务商实现该接口
type byteLimited interface {
	LimitInBytes() bool
}

// Guard 调用服务商之前检查文本长度
type Guard struct {
	Limit    int
	Overflow string
	// Bytes 为 true 时 Limit 按 UTF-8 字节计算，否则按字符
	Bytes bool
}

// NewGuard 以服务商上限为准，configured 大于 0 且更小时覆盖
func NewGuard(r Renderer, configured int, overflow string) Guard {
	limit := r.MaxChars()
	if configured > 0 && (limit <= 0 || configured < limit) {
		limit = configured
	}
	if overflow == "" {
		overflow = OverflowTruncate
	}
	bl, ok := r.(byteLimited)
	return Guard{Limit: limit, Overflow: overflow, Bytes: ok && bl.LimitInBytes()}
}

// Apply 返回可以交给服务商的文本。超长时按策略截断（附带警告）或返回 TextTooLong。
func (g Guard) Apply(provider, text string) (string, *model.Warning, error) {
	n := g.size(text)
	if g.Limit <= 0 || n <= g.Limit {
		return text, nil, nil
	}
	if g.Overflow == OverflowReject {
		return "", nil, fault.New(fault.FamilyTTS, fault.TextTooLong, provider,
			fmt.Errorf("text has %d %s, limit %d", n, g.unit(), g.Limit))
	}

	cut := truncateAtBoundary(text, g.runeLimit(text))
	return cut, &model.Warning{
		Stage:       model.StageRendering,
		Kind:        model.WarnSpeechTruncated,
		Message:     fmt.Sprintf("the summary was shortened from %d to %d %s for speech", n, g.size(cut), g.unit()),
		ArticleURLs: []string{},
	}, nil
}

func (g Guard) size(text string) int {
	if g.Bytes {
		return len(text)
	}
	return utf8.RuneCountInString(text)
}

func (g Guard) unit() string {
	if g.Bytes {
		return "bytes"
	}
	return "characters"
}

// runeLimit 换算成字符数：按字节计算时取编码后不超过 Limit 的最长前缀
func (g Guard) runeLimit(text string) int {
	if !g.Bytes {
		return g.Limit
	}
	n, size := 0, 0
	for _, r := range text {
		size += utf8.RuneLen(r)
		if size > g.Limit {
			break
		}
		n++
	}
	return n
}

// truncateAtBoundary 截断到 limit 以内，优先停在句末，其次停在词边界
func truncateAtBoundary(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	r = r[:limit]

	for i := len(r) - 1; i >= limit/2; i-- {
		if r[i] == '.' || r[i] == '!' || r[i] == '?' || r[i] == '。' {
			return string(r[:i+1])
		}
	}
	for i := len(r) - 1; i > 0; i-- {
		if unicode.IsSpace(r[i]) {
			return strings.TrimSpace(string(r[:i]))
		}
	}
	return string(r)
}
