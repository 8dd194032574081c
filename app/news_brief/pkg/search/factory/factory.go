package factory

import (
	"fmt"
	"net/http"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/config"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/gnews"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/search"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/searxng"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/serper"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/tavily"
)

// NewSearcher 根据配置创建搜索实例，hc 在所有请求间共享
func NewSearcher(cfg *config.Config, hc *http.Client) (search.Searcher, error) {
	s := cfg.Search
	switch s.Provider {
	case "serper":
		if s.Serper.APIKey == "" {
			return nil, fmt.Errorf("serper api key is missing")
		}
		return serper.NewClient(s.Serper.APIKey, s.Serper.BaseURL, hc), nil

	case "tavily":
		if s.Tavily.APIKey == "" {
			return nil, fmt.Errorf("tavily api key is missing")
		}
		return tavily.NewClient(s.Tavily.APIKey, s.Tavily.BaseURL, s.Tavily.Days, hc), nil

	case "searxng":
		if s.SearXNG.BaseURL == "" {
			return nil, fmt.Errorf("searxng base url is missing")
		}
		return searxng.NewClient(s.SearXNG.BaseURL, s.SearXNG.Timeout), nil

	case "gnews":
		return gnews.NewClient(s.GNews.BaseURL, s.GNews.Region, hc), nil

	default:
		return nil, fmt.Errorf("unknown search provider: %s", s.Provider)
	}
}
