package config

import (
	"fmt"
	"time"
)

// 默认值，大部分沿用原有脚本里的取值
const (
	DefaultOverfetchFactor    = 2
	MaxOverfetchFactor        = 5
	DefaultMaxArticles        = 5
	DefaultSearchDays         = 3
	DefaultMaxArticlesLimit   = 20
	DefaultMaxTopicLength     = 200
	DefaultPromptCharBudget   = 6000
	DefaultSnippetMaxChars    = 400
	DefaultRetryAttempts      = 3
	MaxRetryAttempts          = 5
	DefaultRetryBaseDelay     = 2 * time.Second
	DefaultRetryMaxDelay      = 10 * time.Second
	DefaultFetchTimeout       = 20 * time.Second
	DefaultSummarizeTimeout   = 45 * time.Second
	DefaultRenderTimeout      = 30 * time.Second
	DefaultEnrichMinSnippet   = 160
	DefaultEnrichTimeout      = 10 * time.Second
	DefaultServerAddr         = ":1234"
	DefaultServerTimeout      = 3 * time.Minute
	DefaultLLMTemperature     = 0.4
	DefaultLLMMaxTokens       = 1000
	DefaultSearchQPS          = 5
	DefaultSearchRPM          = 300
	DefaultLLMQPS             = 2
	DefaultLLMRPM             = 60
	DefaultSpeechQPS          = 2
	DefaultSpeechRPM          = 60
	DefaultOpenAIModel        = "gpt-4o-mini"
	DefaultAnthropicModel     = "claude-haiku-4-5"
	DefaultGroqModel          = "llama-3.1-8b-instant"
	GroqBaseURL               = "https://api.groq.com/openai/v1"
	DefaultElevenLabsVoiceID  = "yD0Zg2jxgfQLY8I2MEHO"
	DefaultElevenLabsModelID  = "eleven_multilingual_v2"
	DefaultElevenLabsFormat   = "mp3_44100_128"
	DefaultGoogleVoice        = "en-US-Neural2-J"
	DefaultGoogleLanguageCode = "en-US"
)

// SetDefaults 补全未配置的字段
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = DefaultServerTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Search.Provider == "" {
		c.Search.Provider = defaultSearchProvider(c.Search)
	}
	if c.Search.Days == 0 {
		c.Search.Days = DefaultSearchDays
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		if c.LLM.Provider == "anthropic" {
			c.LLM.Model = DefaultAnthropicModel
		} else {
			c.LLM.Model = DefaultOpenAIModel
		}
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = DefaultLLMTemperature
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = DefaultLLMMaxTokens
	}

	if c.Speech.Provider == "" {
		c.Speech.Provider = "none"
	}
	if c.Speech.Overflow == "" {
		c.Speech.Overflow = "truncate"
	}
	el := &c.Speech.ElevenLabs
	if el.VoiceID == "" {
		el.VoiceID = DefaultElevenLabsVoiceID
	}
	if el.ModelID == "" {
		el.ModelID = DefaultElevenLabsModelID
	}
	if el.OutputFormat == "" {
		el.OutputFormat = DefaultElevenLabsFormat
	}
	if c.Speech.Google.Voice == "" {
		c.Speech.Google.Voice = DefaultGoogleVoice
	}
	if c.Speech.Google.Language == "" {
		c.Speech.Google.Language = DefaultGoogleLanguageCode
	}

	p := &c.Pipeline
	if p.OverfetchFactor == 0 {
		p.OverfetchFactor = DefaultOverfetchFactor
	}
	if p.DefaultMaxArticles == 0 {
		p.DefaultMaxArticles = DefaultMaxArticles
	}
	if p.MaxArticlesLimit == 0 {
		p.MaxArticlesLimit = DefaultMaxArticlesLimit
	}
	if p.MaxTopicLength == 0 {
		p.MaxTopicLength = DefaultMaxTopicLength
	}
	if p.PromptCharBudget == 0 {
		p.PromptCharBudget = DefaultPromptCharBudget
	}
	if p.SnippetMaxChars == 0 {
		p.SnippetMaxChars = DefaultSnippetMaxChars
	}
	if p.Retry.MaxAttempts == 0 {
		p.Retry.MaxAttempts = DefaultRetryAttempts
	}
	if p.Retry.BaseDelay == 0 {
		p.Retry.BaseDelay = DefaultRetryBaseDelay
	}
	if p.Retry.MaxDelay == 0 {
		p.Retry.MaxDelay = DefaultRetryMaxDelay
	}
	if p.Timeouts.Fetching == 0 {
		p.Timeouts.Fetching = DefaultFetchTimeout
	}
	if p.Timeouts.Summarizing == 0 {
		p.Timeouts.Summarizing = DefaultSummarizeTimeout
	}
	if p.Timeouts.Rendering == 0 {
		p.Timeouts.Rendering = DefaultRenderTimeout
	}
	if p.Enrich.MinSnippet == 0 {
		p.Enrich.MinSnippet = DefaultEnrichMinSnippet
	}
	if p.Enrich.Timeout == 0 {
		p.Enrich.Timeout = DefaultEnrichTimeout
	}

	setRate(&c.Concurrency.Search, DefaultSearchQPS, DefaultSearchRPM)
	setRate(&c.Concurrency.LLM, DefaultLLMQPS, DefaultLLMRPM)
	setRate(&c.Concurrency.Speech, DefaultSpeechQPS, DefaultSpeechRPM)
}

func setRate(r *RateConfig, qps, rpm int) {
	if r.QPS == 0 {
		r.QPS = qps
	}
	if r.RPM == 0 {
		r.RPM = rpm
	}
}

// 未显式指定时：有 key 的服务商优先，否则退回无需 key 的 Google News
func defaultSearchProvider(s SearchConfig) string {
	switch {
	case s.Serper.APIKey != "":
		return "serper"
	case s.Tavily.APIKey != "":
		return "tavily"
	case s.SearXNG.BaseURL != "":
		return "searxng"
	default:
		return "gnews"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Search.Provider {
	case "serper":
		if c.Search.Serper.APIKey == "" {
			return fmt.Errorf("serper api key is missing")
		}
	case "tavily":
		if c.Search.Tavily.APIKey == "" {
			return fmt.Errorf("tavily api key is missing")
		}
	case "searxng":
		if c.Search.SearXNG.BaseURL == "" {
			return fmt.Errorf("searxng base url is missing")
		}
	case "gnews":
	default:
		return fmt.Errorf("unknown search provider: %s", c.Search.Provider)
	}

	switch c.LLM.Provider {
	case "openai", "anthropic":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm api key is missing for provider %s", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}

	switch c.Speech.Provider {
	case "none":
	case "elevenlabs":
		if c.Speech.ElevenLabs.APIKey == "" {
			return fmt.Errorf("elevenlabs api key is missing")
		}
	case "google":
	default:
		return fmt.Errorf("unknown speech provider: %s", c.Speech.Provider)
	}
	if c.Speech.Overflow != "truncate" && c.Speech.Overflow != "reject" {
		return fmt.Errorf("speech.overflow must be truncate or reject, got %q", c.Speech.Overflow)
	}

	p := c.Pipeline
	if p.OverfetchFactor < 1 || p.OverfetchFactor > MaxOverfetchFactor {
		return fmt.Errorf("pipeline.overfetch_factor must be within [1, %d]", MaxOverfetchFactor)
	}
	if p.MaxArticlesLimit < 1 {
		return fmt.Errorf("pipeline.max_articles_limit must be positive")
	}
	if p.DefaultMaxArticles < 1 || p.DefaultMaxArticles > p.MaxArticlesLimit {
		return fmt.Errorf("pipeline.default_max_articles must be within [1, %d]", p.MaxArticlesLimit)
	}
	if p.MaxTopicLength < 1 {
		return fmt.Errorf("pipeline.max_topic_length must be positive")
	}
	if p.PromptCharBudget < 1 || p.SnippetMaxChars < 1 {
		return fmt.Errorf("pipeline.prompt_char_budget and pipeline.snippet_max_chars must be positive")
	}
	if p.MaxConcurrent < 0 {
		return fmt.Errorf("pipeline.max_concurrent must not be negative")
	}
	if p.Retry.MaxAttempts < 1 || p.Retry.MaxAttempts > MaxRetryAttempts {
		return fmt.Errorf("pipeline.retry.max_attempts must be within [1, %d]", MaxRetryAttempts)
	}
	if p.Retry.BaseDelay < 0 || p.Retry.MaxDelay < p.Retry.BaseDelay {
		return fmt.Errorf("pipeline.retry delays must satisfy 0 <= base_delay <= max_delay")
	}
	if p.Timeouts.Fetching < 0 || p.Timeouts.Summarizing < 0 || p.Timeouts.Rendering < 0 {
		return fmt.Errorf("pipeline.timeouts must not be negative")
	}
	for domain, w := range p.Trust {
		if w < 0 || w > 1 {
			return fmt.Errorf("pipeline.trust[%s] must be within [0, 1]", domain)
		}
	}
	return nil
}
