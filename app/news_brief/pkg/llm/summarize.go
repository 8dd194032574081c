package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/logger"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
)

// 输出约束
const (
	MaxSummaryChars   = 4000
	MaxHighlightChars = 280
)

// Options 摘要参数
type Options struct {
	PromptCharBudget int
	SnippetMaxChars  int
}

// Summarizer 摘要引擎适配器：组装提示词、调用模型并校验返回
type Summarizer struct {
	completer Completer
	opts      Options
	now       func() time.Time
}

// NewSummarizer 创建摘要引擎
func NewSummarizer(c Completer, opts Options) *Summarizer {
	if opts.PromptCharBudget <= 0 {
		opts.PromptCharBudget = 6000
	}
	if opts.SnippetMaxChars <= 0 {
		opts.SnippetMaxChars = 400
	}
	return &Summarizer{completer: c, opts: opts, now: time.Now}
}

// Name 模型服务商名
func (s *Summarizer) Name() string { return s.completer.Name() }

// Summarize 为排序后的文章生成摘要。返回的警告只包含提示词截断。
func (s *Summarizer) Summarize(ctx context.Context, articles []model.CanonicalArticle, q model.Query) (*model.Summary, []model.Warning, error) {
	if len(articles) == 0 {
		return nil, nil, errors.New("no articles to summarize")
	}

	b := buildPrompt(articles, q, s.opts.PromptCharBudget, s.opts.SnippetMaxChars)
	warnings := []model.Warning{}
	if b.warning != nil {
		warnings = append(warnings, *b.warning)
		logger.Log.WithFields(logrus.Fields{"provider": s.Name()}).
			Infof("提示词超出预算，丢弃 %d 篇文章", len(b.warning.ArticleURLs))
	}

	comp, err := s.completer.Complete(ctx, b.prompt)
	if err != nil {
		return nil, nil, classifyText(s.Name(), err)
	}

	text, highlights, err := parseResponse(comp.Text, b.included)
	if err != nil {
		return nil, nil, fault.New(fault.FamilyModel, fault.InvalidResponse, s.Name(), err)
	}

	return &model.Summary{
		HeadlineSummary: text,
		Highlights:      highlights,
		GeneratedAt:     s.now().UTC(),
		ModelID:         s.completer.ModelID(),
	}, warnings, nil
}

type response struct {
	Summary    string `json:"summary"`
	Highlights []struct {
		Index int    `json:"index"`
		Text  string `json:"text"`
	} `json:"highlights"`
}

// parseResponse 解析并校验模型输出，任何不一致都视为无效响应，不返回部分结果
func parseResponse(content string, included []model.CanonicalArticle) (string, []model.Highlight, error) {
	content = cleanJSONResponse(content)

	var parsed response
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", nil, fmt.Errorf("failed to parse response: %w", err)
	}

	summary := strings.TrimSpace(parsed.Summary)
	if summary == "" {
		return "", nil, errors.New("summary is empty")
	}
	if n := runeLen(summary); n > MaxSummaryChars {
		return "", nil, fmt.Errorf("summary has %d characters, limit %d", n, MaxSummaryChars)
	}

	seen := make(map[int]bool, len(parsed.Highlights))
	highlights := make([]model.Highlight, 0, len(parsed.Highlights))
	for _, h := range parsed.Highlights {
		if h.Index < 1 || h.Index > len(included) {
			return "", nil, fmt.Errorf("highlight refers to unknown article %d", h.Index)
		}
		if seen[h.Index] {
			return "", nil, fmt.Errorf("duplicate highlight for article %d", h.Index)
		}
		seen[h.Index] = true

		text := strings.Join(strings.Fields(h.Text), " ")
		if text == "" {
			return "", nil, fmt.Errorf("highlight for article %d is empty", h.Index)
		}
		a := included[h.Index-1]
		highlights = append(highlights, model.Highlight{
			ArticleRank: a.RelevanceRank,
			ArticleURL:  a.URL,
			Text:        truncateRunes(text, MaxHighlightChars),
		})
	}
	sort.SliceStable(highlights, func(i, j int) bool { return highlights[i].ArticleRank < highlights[j].ArticleRank })
	return summary, highlights, nil
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// 部分模型会在 JSON 前后附带说明文字
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
