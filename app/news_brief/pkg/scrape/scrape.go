package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

// maxPageBytes 单页最多读取的字节数
const maxPageBytes = 4 << 20

// Enricher 抓取文章正文的能力
type Enricher interface {
	Text(ctx context.Context, pageURL string) (string, error)
}

// Readability 基于 go-readability 提取正文
type Readability struct {
	client *http.Client
}

// NewReadability 创建正文提取器
func NewReadability(hc *http.Client) *Readability {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Readability{client: hc}
}

// Text 抓取 URL 并提取核心文本
func (r *Readability) Text(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	res, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", pageURL, res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("fetch %s: unexpected content type %s", pageURL, ct)
	}

	article, err := readability.FromReader(io.LimitReader(res.Body, maxPageBytes), u)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	return strings.Join(strings.Fields(article.TextContent), " "), nil
}
