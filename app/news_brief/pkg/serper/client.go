package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/search"
)

const defaultBaseURL = "https://google.serper.dev"

// Client Serper (Google 搜索代理) 客户端
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient 创建 Serper 客户端
func NewClient(apiKey, baseURL string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
	}
}

var _ search.Searcher = (*Client)(nil)

// Name implements search.Searcher
func (c *Client) Name() string { return "serper" }

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
	HL  string `json:"hl,omitempty"`
	TBS string `json:"tbs,omitempty"`
}

type item struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
	Source  string `json:"source"`
}

type searchResponse struct {
	News    []item `json:"news"`
	Organic []item `json:"organic"`
}

// Search 请求 /news 接口，news 为空时退回 organic 结果
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	path := "/news"
	if req.Topic == "general" {
		path = "/search"
	}
	payload, err := json.Marshal(searchRequest{
		Q:   req.Query,
		Num: req.MaxResults,
		HL:  req.Language,
		TBS: tbs(req.Days),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("X-API-KEY", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, search.TransportError(c.Name(), err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, search.StatusError(c.Name(), res)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, search.DecodeError(c.Name(), err)
	}

	items := sr.News
	if len(items) == 0 {
		items = sr.Organic
	}
	results := make([]search.Result, 0, len(items))
	for _, it := range items {
		results = append(results, search.Result{
			Title:         it.Title,
			URL:           it.Link,
			Content:       it.Snippet,
			Source:        it.Source,
			PublishedDate: it.Date,
		})
	}
	return &search.Response{Results: results}, nil
}

func tbs(days int) string {
	switch {
	case days <= 0:
		return ""
	case days == 1:
		return "qdr:d"
	case days <= 7:
		return "qdr:w"
	case days <= 31:
		return "qdr:m"
	default:
		return "qdr:y"
	}
}
