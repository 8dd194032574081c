package gnews

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/search"
)

const defaultBaseURL = "https://news.google.com/rss/search"

// Client Google News RSS 搜索，无需 API key
type Client struct {
	baseURL string
	region  string
	client  *http.Client
	parser  *gofeed.Parser
}

// NewClient 创建 Google News 客户端，region 例如 US、CN
func NewClient(baseURL, region string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if region == "" {
		region = "US"
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL: baseURL,
		region:  strings.ToUpper(region),
		client:  hc,
		parser:  newParser(),
	}
}

// customSourceURL Item.Custom 中保存 <source url> 的键
const customSourceURL = "source_url"

func newParser() *gofeed.Parser {
	p := gofeed.NewParser()
	p.RSSTranslator = &sourceTranslator{defaultTranslator: &gofeed.DefaultRSSTranslator{}}
	return p
}

// sourceTranslator 保留 RSS 条目的 <source url>，即原始媒体的站点地址。
// 默认翻译器会丢弃该字段，而 Google News 的 link 都指向 news.google.com。
type sourceTranslator struct {
	defaultTranslator *gofeed.DefaultRSSTranslator
}

func (t *sourceTranslator) Translate(feed interface{}) (*gofeed.Feed, error) {
	rssFeed, ok := feed.(*rss.Feed)
	if !ok {
		return nil, fmt.Errorf("feed did not match expected type of *rss.Feed")
	}
	f, err := t.defaultTranslator.Translate(rssFeed)
	if err != nil {
		return nil, err
	}
	for i, item := range rssFeed.Items {
		if i >= len(f.Items) || item.Source == nil || item.Source.URL == "" {
			continue
		}
		if f.Items[i].Custom == nil {
			f.Items[i].Custom = map[string]string{}
		}
		f.Items[i].Custom[customSourceURL] = item.Source.URL
	}
	return f, nil
}

var _ search.Searcher = (*Client)(nil)

// Name implements search.Searcher
func (c *Client) Name() string { return "gnews" }

// Search 拉取搜索结果 RSS 并转换为通用结果
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	query := req.Query
	if req.Days > 0 {
		query = fmt.Sprintf("%s when:%dd", query, req.Days)
	}
	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	base := strings.SplitN(lang, "-", 2)[0]

	q := u.Query()
	q.Set("q", query)
	q.Set("hl", lang)
	q.Set("gl", c.region)
	q.Set("ceid", c.region+":"+base)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, search.TransportError(c.Name(), err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, search.StatusError(c.Name(), res)
	}

	feed, err := c.parser.Parse(res.Body)
	if err != nil {
		return nil, search.DecodeError(c.Name(), err)
	}

	results := make([]search.Result, 0, len(feed.Items))
	for _, item := range feed.Items {
		if req.MaxResults > 0 && len(results) >= req.MaxResults {
			break
		}
		title, outlet := splitTitle(item.Title)
		var published string
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC().Format(time.RFC3339)
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC().Format(time.RFC3339)
		}
		results = append(results, search.Result{
			Title:         title,
			URL:           item.Link,
			Content:       htmlText(item.Description, title, outlet),
			Source:        outlet,
			SourceURL:     item.Custom[customSourceURL],
			PublishedDate: published,
		})
	}
	return &search.Response{Results: results}, nil
}

// splitTitle Google News 标题格式为 "标题 - 媒体名"
func splitTitle(s string) (string, string) {
	i := strings.LastIndex(s, " - ")
	if i <= 0 {
		return strings.TrimSpace(s), ""
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+3:])
}

// htmlText 将 description 中的 HTML 转为纯文本，去掉重复的标题和媒体名
func htmlText(desc, title, outlet string) string {
	if desc == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(desc))
	if err != nil {
		return ""
	}
	text := strings.Join(strings.Fields(doc.Text()), " ")
	text = strings.TrimSpace(strings.TrimPrefix(text, title))
	text = strings.TrimSpace(strings.TrimSuffix(text, outlet))
	return text
}
