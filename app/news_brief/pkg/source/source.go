package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/logger"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/scrape"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/search"
)

// OverfetchFactor 默认超量抓取倍数，用于抵消去重损失，可通过 pipeline.overfetch_factor 调整
const OverfetchFactor = 2

// enrichConcurrency 正文补全的并发上限
const enrichConcurrency = 4

// Options 文章源参数
type Options struct {
	OverfetchFactor  int
	Days             int // 只搜索最近几天，0 表示交给服务商默认值
	SnippetMaxChars  int
	EnrichMinSnippet int
	EnrichTimeout    time.Duration
}

// Source 文章源适配器：调用搜索服务并把结果校验转换为 RawArticle
type Source struct {
	searcher search.Searcher
	enricher scrape.Enricher
	opts     Options
	now      func() time.Time
}

// New 创建文章源，enricher 为 nil 时不补全正文
func New(s search.Searcher, enricher scrape.Enricher, opts Options) *Source {
	if opts.OverfetchFactor < 1 {
		opts.OverfetchFactor = OverfetchFactor
	}
	return &Source{
		searcher: s,
		enricher: enricher,
		opts:     opts,
		now:      time.Now,
	}
}

// Name 底层搜索服务名
func (s *Source) Name() string { return s.searcher.Name() }

// Limit 本次请求向服务商索取的候选数量
func (s *Source) Limit(q model.Query) int {
	return q.MaxArticles * s.opts.OverfetchFactor
}

// Fetch 搜索并返回原始文章；空结果不是错误
func (s *Source) Fetch(ctx context.Context, q model.Query) ([]model.RawArticle, error) {
	limit := s.Limit(q)
	resp, err := s.searcher.Search(ctx, &search.Request{
		Query:      q.Topic,
		Topic:      "news",
		MaxResults: limit,
		Language:   q.Language,
		Days:       s.opts.Days,
	})
	if err != nil {
		return nil, classify(s.Name(), err)
	}
	if resp == nil {
		return nil, fault.New(fault.FamilySearch, fault.InvalidResponse, s.Name(), errors.New("nil response"))
	}

	now := s.now()
	articles := make([]model.RawArticle, 0, len(resp.Results))
	skipped := 0
	for _, r := range resp.Results {
		a, ok := convert(r, now)
		if !ok {
			skipped++
			continue
		}
		articles = append(articles, a)
		if len(articles) >= limit {
			break
		}
	}

	if len(resp.Results) > 0 && len(articles) == 0 {
		return nil, fault.New(fault.FamilySearch, fault.InvalidResponse, s.Name(),
			fmt.Errorf("all %d results failed validation", len(resp.Results)))
	}
	if skipped > 0 {
		logger.Log.WithField("provider", s.Name()).Warnf("跳过 %d 条无效搜索结果", skipped)
	}
	return articles, nil
}

// Enrich 对摘要过短的文章抓取正文补全，失败时保留原摘要
func (s *Source) Enrich(ctx context.Context, articles []model.RawArticle) []model.RawArticle {
	if s.enricher == nil || len(articles) == 0 {
		return articles
	}

	out := make([]model.RawArticle, len(articles))
	copy(out, articles)

	sem := make(chan struct{}, enrichConcurrency)
	var wg sync.WaitGroup
	for i := range out {
		if len([]rune(out[i].Snippet)) >= s.opts.EnrichMinSnippet || isAggregator(out[i].URL) {
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return out
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			ectx := ctx
			if s.opts.EnrichTimeout > 0 {
				var cancel context.CancelFunc
				ectx, cancel = context.WithTimeout(ctx, s.opts.EnrichTimeout)
				defer cancel()
			}
			text, err := s.enricher.Text(ectx, out[i].URL)
			if err != nil {
				logger.Log.WithFields(logrus.Fields{"url": out[i].URL}).Debugf("正文补全失败: %v", err)
				return
			}
			if len([]rune(text)) > len([]rune(out[i].Snippet)) {
				out[i].Snippet = truncateRunes(text, s.opts.SnippetMaxChars)
			}
		}(i)
	}
	wg.Wait()
	return out
}

// classify 非 ProviderError 的错误统一视为服务不可用，context 错误原样返回
func classify(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, ok := fault.AsProviderError(err); ok {
		return err
	}
	return fault.New(fault.FamilySearch, fault.Unavailable, provider, err)
}

// convert 校验并转换单条结果，标题和 http(s) 绝对地址缺一不可
func convert(r search.Result, now time.Time) (model.RawArticle, bool) {
	title := strings.Join(strings.Fields(r.Title), " ")
	if title == "" {
		return model.RawArticle{}, false
	}
	u, err := url.Parse(strings.TrimSpace(r.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.RawArticle{}, false
	}

	domain := Domain(u)
	if r.SourceURL != "" {
		if su, err := url.Parse(strings.TrimSpace(r.SourceURL)); err == nil && su.Hostname() != "" {
			domain = Domain(su)
		}
	}

	return model.RawArticle{
		Title:        title,
		URL:          u.String(),
		Snippet:      strings.Join(strings.Fields(r.Content), " "),
		SourceDomain: domain,
		PublishedAt:  ParsePublished(r.PublishedDate, now),
	}, true
}

// aggregatorHosts 链接是跳转页而不是文章本身的聚合站点，不做正文补全
var aggregatorHosts = map[string]bool{
	"news.google.com": true,
}

func isAggregator(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return aggregatorHosts[Domain(u)]
}

// Domain 去掉 www. 和端口后的小写主机名
func Domain(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

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
