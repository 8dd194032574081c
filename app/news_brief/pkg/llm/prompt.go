package llm

import (
	"fmt"
	"strings"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
)

const systemPrompt = `You are my personal news editor and scriptwriter for a news podcast.
Turn the numbered articles into a clean, professional and TTS-friendly news brief.
Write like a news anchor speaking naturally: no markdown, no emojis, no preamble, neutral tone.
Focus on the most important developments first.

Reply with JSON only, no other text:
{
  "summary": "the news script the anchor reads aloud",
  "highlights": [{"index": 1, "text": "one sentence on what article [1] reports"}]
}
"index" is the article number shown in brackets. Give at most one highlight per article.`

// builtPrompt 组装好的提示词以及实际放入的文章
type builtPrompt struct {
	prompt   Prompt
	included []model.CanonicalArticle
	warning  *model.Warning
}

// buildPrompt 按排名顺序放入文章，文章部分的总字符数不超过 budget。
// 第一篇放不下的文章及其后所有文章被丢弃；排名第一的文章总会保留，必要时截短摘要。
func buildPrompt(articles []model.CanonicalArticle, q model.Query, budget, snippetMax int) builtPrompt {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n", q.Topic)
	if q.Language != "" {
		fmt.Fprintf(&sb, "Write the summary and highlights in this language: %s\n", q.Language)
	}
	sb.WriteString("\nArticles:\n\n")

	used, included := 0, 0
	for i, a := range articles {
		head := articleHeader(i+1, a)
		snippet := truncateRunes(a.Snippet, snippetMax)
		n := runeLen(head) + runeLen(snippet) + 2
		if budget > 0 && used+n > budget {
			if i > 0 {
				break
			}
			room := budget - runeLen(head) - 2
			if room < 0 {
				room = 0
			}
			snippet = string([]rune(snippet)[:min(room, runeLen(snippet))])
			n = runeLen(head) + runeLen(snippet) + 2
		}
		sb.WriteString(head)
		sb.WriteString(snippet)
		sb.WriteString("\n\n")
		used += n
		included++
	}

	b := builtPrompt{
		prompt:   Prompt{System: systemPrompt, User: strings.TrimRight(sb.String(), "\n")},
		included: articles[:included],
	}
	if dropped := articles[included:]; len(dropped) > 0 {
		urls := make([]string, 0, len(dropped))
		for _, a := range dropped {
			urls = append(urls, a.URL)
		}
		b.warning = &model.Warning{
			Stage:       model.StageSummarizing,
			Kind:        model.WarnPromptTruncated,
			Message:     fmt.Sprintf("%d of %d articles were left out of the summary to fit the prompt budget", len(dropped), len(articles)),
			ArticleURLs: urls,
		}
	}
	return b
}

func articleHeader(n int, a model.CanonicalArticle) string {
	published := "unknown date"
	if a.PublishedAt != nil {
		published = a.PublishedAt.UTC().Format("2006-01-02 15:04 UTC")
	}
	source := a.SourceDomain
	if source == "" {
		source = "unknown source"
	}
	return fmt.Sprintf("[%d] %s\n%s | %s\n", n, a.Title, source, published)
}

func runeLen(s string) int { return len([]rune(s)) }

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
