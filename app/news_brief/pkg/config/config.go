package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Search      SearchConfig      `yaml:"search"`
	LLM         LLMConfig         `yaml:"llm"`
	Speech      SpeechConfig      `yaml:"speech"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig 搜索相关配置
type SearchConfig struct {
	Provider string        `yaml:"provider"` // serper, tavily, searxng, gnews
	Days     int           `yaml:"days"`     // 只搜索最近几天的新闻
	Serper   SerperConfig  `yaml:"serper"`
	Tavily   TavilyConfig  `yaml:"tavily"`
	SearXNG  SearXNGConfig `yaml:"searxng"`
	GNews    GNewsConfig   `yaml:"gnews"`
}

// SerperConfig Serper 配置
type SerperConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Days    int    `yaml:"days"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// GNewsConfig Google News RSS 配置
type GNewsConfig struct {
	BaseURL string `yaml:"base_url"`
	Region  string `yaml:"region"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// SpeechConfig 语音合成配置
type SpeechConfig struct {
	Provider   string           `yaml:"provider"` // none, elevenlabs, google
	MaxChars   int              `yaml:"max_chars"`
	Overflow   string           `yaml:"overflow"` // truncate, reject
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Google     GoogleTTSConfig  `yaml:"google"`
}

// ElevenLabsConfig ElevenLabs 配置
type ElevenLabsConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	VoiceID      string `yaml:"voice_id"`
	ModelID      string `yaml:"model_id"`
	OutputFormat string `yaml:"output_format"`
}

// GoogleTTSConfig Google Cloud TTS 配置
type GoogleTTSConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	Voice           string `yaml:"voice"`
	Language        string `yaml:"language"`
}

// PipelineConfig 流水线参数
type PipelineConfig struct {
	OverfetchFactor    int                `yaml:"overfetch_factor"`
	DefaultMaxArticles int                `yaml:"default_max_articles"`
	MaxArticlesLimit   int                `yaml:"max_articles_limit"`
	MaxTopicLength     int                `yaml:"max_topic_length"`
	PromptCharBudget   int                `yaml:"prompt_char_budget"`
	SnippetMaxChars    int                `yaml:"snippet_max_chars"`
	MaxConcurrent      int                `yaml:"max_concurrent"`
	AllowEmpty         bool               `yaml:"allow_empty"`
	Trust              map[string]float64 `yaml:"trust"`
	Retry              RetryConfig        `yaml:"retry"`
	Timeouts           TimeoutConfig      `yaml:"timeouts"`
	Enrich             EnrichConfig       `yaml:"enrich"`
}

// RetryConfig 重试策略
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// TimeoutConfig 各阶段单次调用超时
type TimeoutConfig struct {
	Fetching    time.Duration `yaml:"fetching"`
	Summarizing time.Duration `yaml:"summarizing"`
	Rendering   time.Duration `yaml:"rendering"`
}

// EnrichConfig 正文补全配置
type EnrichConfig struct {
	Enabled    bool          `yaml:"enabled"`
	MinSnippet int           `yaml:"min_snippet"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置，按服务商分别限流
type ConcurrencyConfig struct {
	Search RateConfig `yaml:"search"`
	LLM    RateConfig `yaml:"llm"`
	Speech RateConfig `yaml:"speech"`
}

// RateConfig QPS 作为突发上限，RPM 作为平均速率
type RateConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// LoadConfig 从指定路径加载配置，并补全环境变量与默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv 仅依赖环境变量构造配置，用于没有配置文件的场景
func FromEnv() (*Config, error) {
	var cfg Config
	cfg.ApplyEnv()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv 用环境变量覆盖密钥和服务商选择
func (c *Config) ApplyEnv() {
	setFromEnv(&c.Search.Provider, "NEWS_BRIEF_SEARCH_PROVIDER")
	setFromEnv(&c.LLM.Provider, "NEWS_BRIEF_LLM_PROVIDER")
	setFromEnv(&c.Speech.Provider, "NEWS_BRIEF_SPEECH_PROVIDER")

	setFromEnv(&c.Search.Serper.APIKey, "SERPER_API_KEY")
	setFromEnv(&c.Search.Tavily.APIKey, "TAVILY_API_KEY")
	setFromEnv(&c.Speech.ElevenLabs.APIKey, "ELEVEN_API_KEY")

	setFromEnv(&c.LLM.BaseURL, "NEWS_BRIEF_LLM_BASE_URL")
	switch c.LLM.Provider {
	case "anthropic":
		setFromEnv(&c.LLM.APIKey, "ANTHROPIC_API_KEY")
	default:
		c.applyOpenAICompatibleEnv()
	}
}

// applyOpenAICompatibleEnv Groq 走 OpenAI 兼容接口：base_url 指向 Groq 时使用 GROQ_API_KEY；
// 只设置了 GROQ_API_KEY 时直接切到 Groq
func (c *Config) applyOpenAICompatibleEnv() {
	if strings.Contains(c.LLM.BaseURL, "groq.com") {
		setFromEnv(&c.LLM.APIKey, "GROQ_API_KEY")
		return
	}
	setFromEnv(&c.LLM.APIKey, "OPENAI_API_KEY")
	if c.LLM.APIKey != "" || c.LLM.BaseURL != "" {
		return
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.BaseURL = GroqBaseURL
		if c.LLM.Model == "" {
			c.LLM.Model = DefaultGroqModel
		}
	}
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
