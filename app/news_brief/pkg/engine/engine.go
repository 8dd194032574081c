package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/canon"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/config"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/llm"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/retry"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/scrape"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/search/factory"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/source"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/speech"
)

// Fetcher 文章源
type Fetcher interface {
	Fetch(ctx context.Context, q model.Query) ([]model.RawArticle, error)
	Enrich(ctx context.Context, articles []model.RawArticle) []model.RawArticle
	Name() string
}

// Summarizer 摘要引擎
type Summarizer interface {
	Summarize(ctx context.Context, articles []model.CanonicalArticle, q model.Query) (*model.Summary, []model.Warning, error)
	Name() string
}

type limiters struct {
	search *rate.Limiter
	llm    *rate.Limiter
	speech *rate.Limiter
}

// Engine 核心处理引擎，可被多个请求并发使用
type Engine struct {
	pipeline config.PipelineConfig
	source   Fetcher
	summ     Summarizer
	renderer speech.Renderer
	guard    speech.Guard
	limiters limiters
	sem      chan struct{}
	closer   io.Closer

	newID        func() string
	canonicalize func(raw []model.RawArticle, maxArticles int, opts canon.Options) []model.CanonicalArticle
}

// NewEngine 根据配置创建引擎实例及其全部适配器
func NewEngine(ctx context.Context, cfg *config.Config) (*Engine, error) {
	hc := &http.Client{Transport: http.DefaultTransport}

	// 初始化搜索客户端
	searcher, err := factory.NewSearcher(cfg, hc)
	if err != nil {
		return nil, fmt.Errorf("搜索客户端初始化失败: %w", err)
	}
	var enricher scrape.Enricher
	if cfg.Pipeline.Enrich.Enabled {
		enricher = scrape.NewReadability(hc)
	}
	src := source.New(searcher, enricher, source.Options{
		OverfetchFactor:  cfg.Pipeline.OverfetchFactor,
		Days:             cfg.Search.Days,
		SnippetMaxChars:  cfg.Pipeline.SnippetMaxChars,
		EnrichMinSnippet: cfg.Pipeline.Enrich.MinSnippet,
		EnrichTimeout:    cfg.Pipeline.Enrich.Timeout,
	})

	// 初始化 LLM
	completer, err := llm.NewCompleter(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	summ := llm.NewSummarizer(completer, llm.Options{
		PromptCharBudget: cfg.Pipeline.PromptCharBudget,
		SnippetMaxChars:  cfg.Pipeline.SnippetMaxChars,
	})

	// 初始化语音合成，未配置时为 nil
	renderer, err := speech.NewRenderer(ctx, cfg.Speech, hc)
	if err != nil {
		return nil, fmt.Errorf("语音合成初始化失败: %w", err)
	}

	e := New(cfg, src, summ, renderer)
	return e, nil
}

// New 使用给定的适配器创建引擎，renderer 可以为 nil
func New(cfg *config.Config, src Fetcher, summ Summarizer, renderer speech.Renderer) *Engine {
	e := &Engine{
		pipeline: cfg.Pipeline,
		source:   src,
		summ:     summ,
		renderer: renderer,
		limiters: limiters{
			search: newLimiter(cfg.Concurrency.Search),
			llm:    newLimiter(cfg.Concurrency.LLM),
			speech: newLimiter(cfg.Concurrency.Speech),
		},
		newID:        uuid.NewString,
		canonicalize: canon.Canonicalize,
	}
	if renderer != nil {
		e.guard = speech.NewGuard(renderer, cfg.Speech.MaxChars, cfg.Speech.Overflow)
		if c, ok := renderer.(io.Closer); ok {
			e.closer = c
		}
	}
	if cfg.Pipeline.MaxConcurrent > 0 {
		e.sem = make(chan struct{}, cfg.Pipeline.MaxConcurrent)
	}
	return e
}

// newLimiter RPM 作为平均速率，QPS 作为突发上限；都未配置时不限流
func newLimiter(rc config.RateConfig) *rate.Limiter {
	if rc.RPM <= 0 {
		return nil
	}
	burst := rc.QPS
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rc.RPM)/60.0), burst)
}

// policy 各阶段共用重试次数和退避，单次超时按阶段区分
func (e *Engine) policy(attemptTimeout time.Duration) retry.Policy {
	return retry.Policy{
		MaxAttempts:    e.pipeline.Retry.MaxAttempts,
		BaseDelay:      e.pipeline.Retry.BaseDelay,
		MaxDelay:       e.pipeline.Retry.MaxDelay,
		AttemptTimeout: attemptTimeout,
	}
}

// Close 释放适配器持有的连接（Google TTS 的 gRPC 客户端）
func (e *Engine) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// HasSpeech 是否配置了语音合成
func (e *Engine) HasSpeech() bool { return e.renderer != nil }
