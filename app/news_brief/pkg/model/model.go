package model

import (
	"encoding/json"
	"time"
)

// Query 一次简报请求
type Query struct {
	Topic       string `json:"topic"`
	MaxArticles int    `json:"max_articles"`
	Language    string `json:"language"`
	Audio       bool   `json:"audio"` // 是否需要语音播报
}

// RawArticle 搜索源返回的原始文章
type RawArticle struct {
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	Snippet      string     `json:"snippet"`
	SourceDomain string     `json:"source_domain"`
	PublishedAt  *time.Time `json:"published_at"`
}

// CanonicalArticle 去重排序后的文章
type CanonicalArticle struct {
	RawArticle
	DedupGroupID  string `json:"dedup_group_id"`
	RelevanceRank int    `json:"relevance_rank"` // 从 0 开始
	Duplicates    int    `json:"duplicates"`     // 被合并掉的重复文章数
}

// Highlight 单篇文章的一句话要点
type Highlight struct {
	ArticleRank int    `json:"article_rank"`
	ArticleURL  string `json:"article_url"`
	Text        string `json:"text"`
}

// Summary 模型生成的摘要
type Summary struct {
	HeadlineSummary string      `json:"headline_summary"`
	Highlights      []Highlight `json:"per_article_highlights"`
	GeneratedAt     time.Time   `json:"generated_at"`
	ModelID         string      `json:"model_id"`
}

// AudioAsset 语音合成结果
type AudioAsset struct {
	Bytes        []byte
	MimeType     string
	DurationHint *time.Duration
}

// MarshalJSON 时长以毫秒输出，缺省为 null
func (a AudioAsset) MarshalJSON() ([]byte, error) {
	var ms *int64
	if a.DurationHint != nil {
		v := a.DurationHint.Milliseconds()
		ms = &v
	}
	return json.Marshal(struct {
		Bytes          []byte `json:"bytes"`
		MimeType       string `json:"mime_type"`
		DurationHintMS *int64 `json:"duration_hint_ms"`
	}{
		Bytes:          a.Bytes,
		MimeType:       a.MimeType,
		DurationHintMS: ms,
	})
}

// Warning 阶段级别的降级提示
type Warning struct {
	Stage       string   `json:"stage"`
	Kind        string   `json:"kind"`
	Message     string   `json:"message"`
	ArticleURLs []string `json:"article_urls"`
}

// 流水线阶段
const (
	StageValidating     = "Validating"
	StageFetching       = "Fetching"
	StageCanonicalizing = "Canonicalizing"
	StageSummarizing    = "Summarizing"
	StageRendering      = "Rendering"
	StageComplete       = "Complete"
	StageFailed         = "Failed"
)

// 警告类型
const (
	WarnPromptTruncated = "PromptTruncated"
	WarnSpeechTruncated = "SpeechTruncated"
	WarnSpeechDisabled  = "SpeechDisabled"
	WarnNoArticles      = "NoArticles"
)

// PipelineResult 一次流水线运行的最终结果，组装后不再修改
type PipelineResult struct {
	RunID    string             `json:"run_id"`
	Query    Query              `json:"query"`
	Articles []CanonicalArticle `json:"articles"`
	Summary  *Summary           `json:"summary"`
	Audio    *AudioAsset        `json:"audio"`
	Warnings []Warning          `json:"warnings"`
}
