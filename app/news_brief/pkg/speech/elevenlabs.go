package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/config"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/search"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io"
	elevenLabsMaxChars = 10000
	maxAudioBytes      = 64 << 20
)

// ElevenLabs ElevenLabs 语音合成客户端
type ElevenLabs struct {
	apiKey       string
	baseURL      string
	voiceID      string
	modelID      string
	outputFormat string
	client       *http.Client
	maxBytes     int64
}

// NewElevenLabs 创建 ElevenLabs 客户端
func NewElevenLabs(cfg config.ElevenLabsConfig, hc *http.Client) *ElevenLabs {
	base := cfg.BaseURL
	if base == "" {
		base = elevenLabsBaseURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &ElevenLabs{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(base, "/"),
		voiceID:      cfg.VoiceID,
		modelID:      cfg.ModelID,
		outputFormat: cfg.OutputFormat,
		client:       hc,
		maxBytes:     maxAudioBytes,
	}
}

var _ Renderer = (*ElevenLabs)(nil)

func (e *ElevenLabs) Name() string  { return "elevenlabs" }
func (e *ElevenLabs) MaxChars() int { return elevenLabsMaxChars }

type ttsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Render 合成整段文本，language 由多语言模型自动识别
func (e *ElevenLabs) Render(ctx context.Context, text, language string) (*model.AudioAsset, error) {
	body, err := json.Marshal(ttsRequest{Text: text, ModelID: e.modelID})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		e.baseURL, url.PathEscape(e.voiceID), url.QueryEscape(e.outputFormat))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", mimeType(e.outputFormat))

	res, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fault.New(fault.FamilyTTS, fault.Unavailable, e.Name(), fmt.Errorf("request failed: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, e.statusError(res)
	}

	// 多读一个字节用于判断是否超限，超限的音频不完整，不能当作成功返回
	audio, err := io.ReadAll(io.LimitReader(res.Body, e.maxBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fault.New(fault.FamilyTTS, fault.Unavailable, e.Name(), fmt.Errorf("read audio failed: %w", err))
	}
	if int64(len(audio)) > e.maxBytes {
		return nil, fault.New(fault.FamilyTTS, fault.InvalidResponse, e.Name(),
			fmt.Errorf("audio exceeds %d bytes", e.maxBytes))
	}
	if len(audio) == 0 {
		return nil, fault.New(fault.FamilyTTS, fault.InvalidResponse, e.Name(), errors.New("empty audio"))
	}

	return &model.AudioAsset{
		Bytes:        audio,
		MimeType:     mimeType(e.outputFormat),
		DurationHint: bitrateDuration(e.outputFormat, len(audio)),
	}, nil
}

func (e *ElevenLabs) statusError(res *http.Response) *fault.ProviderError {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	body := strings.ToLower(string(raw))
	cause := fmt.Errorf("elevenlabs api error (status %d): %s", res.StatusCode, string(raw))

	var pe *fault.ProviderError
	switch {
	case strings.Contains(body, "quota_exceeded"):
		pe = fault.New(fault.FamilyTTS, fault.QuotaExceeded, e.Name(), cause)
	case res.StatusCode == http.StatusBadRequest &&
		(strings.Contains(body, "text_too_long") || strings.Contains(body, "max_character_limit_exceeded")):
		pe = fault.New(fault.FamilyTTS, fault.TextTooLong, e.Name(), cause)
	default:
		pe = fault.FromStatus(fault.FamilyTTS, e.Name(), res.StatusCode, cause)
		if pe.Kind == fault.RateLimited {
			pe.RetryAfter = search.RetryAfter(res.Header)
		}
	}
	pe.StatusCode = res.StatusCode
	return pe
}

// mimeType 由 output_format 前缀推断，例如 mp3_44100_128
func mimeType(format string) string {
	switch {
	case strings.HasPrefix(format, "mp3"):
		return "audio/mpeg"
	case strings.HasPrefix(format, "opus"):
		return "audio/ogg"
	case strings.HasPrefix(format, "ulaw"):
		return "audio/basic"
	case strings.HasPrefix(format, "pcm"):
		return "audio/pcm"
	default:
		return "application/octet-stream"
	}
}

// bitrateDuration mp3 格式按码率估算时长，其他格式返回 nil
func bitrateDuration(format string, size int) *time.Duration {
	parts := strings.Split(format, "_")
	if len(parts) != 3 || parts[0] != "mp3" {
		return nil
	}
	kbps, err := strconv.Atoi(parts[2])
	if err != nil || kbps <= 0 {
		return nil
	}
	d := time.Duration(float64(size*8) / float64(kbps*1000) * float64(time.Second))
	return &d
}
