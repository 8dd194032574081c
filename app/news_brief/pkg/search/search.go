package search

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// Searcher 定义通用的搜索接口
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
	Name() string
}

// Request 通用搜索请求
type Request struct {
	Query      string
	Topic      string // "news" or "general"
	MaxResults int
	Language   string // 可选，例如 en、zh-CN
	Days       int    // 仅返回最近几天的结果，0 表示不限
}

// Response 通用搜索响应
type Response struct {
	Results []Result
}

// Result 单条搜索结果
type Result struct {
	Title         string
	URL           string
	Content       string
	Source        string
	SourceURL     string // 原始媒体站点，聚合类服务商（Google News）的 URL 不指向媒体本身
	Score         float64
	PublishedDate string
}

// RetryAfter 解析 Retry-After 头，只支持秒数形式
func RetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
