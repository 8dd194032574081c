package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/config"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
)

// Google 的单次请求上限按 UTF-8 字节计算
const (
	googleMaxBytes   = 5000
	googleChunkBytes = 1000
	wordsPerMinute   = 150
)

type synthesizeFunc func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)

// Google Google Cloud Text-to-Speech 客户端
type Google struct {
	synthesize synthesizeFunc
	voice      string
	language   string
	closer     func() error
}

// NewGoogle 创建客户端。未配置凭据文件时使用应用默认凭据。
func NewGoogle(ctx context.Context, cfg config.GoogleTTSConfig) (*Google, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tts client: %w", err)
	}
	g := newGoogle(func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		return client.SynthesizeSpeech(ctx, req)
	}, cfg)
	g.closer = client.Close
	return g, nil
}

func newGoogle(fn synthesizeFunc, cfg config.GoogleTTSConfig) *Google {
	return &Google{synthesize: fn, voice: cfg.Voice, language: cfg.Language}
}

var _ Renderer = (*Google)(nil)

func (g *Google) Name() string  { return "google" }
func (g *Google) MaxChars() int { return googleMaxBytes }

// LimitInBytes MaxChars 按字节计算
func (g *Google) LimitInBytes() bool { return true }

// Close 关闭底层 gRPC 连接
func (g *Google) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}

// Render 分段合成后拼接为一个 MP3
func (g *Google) Render(ctx context.Context, text, language string) (*model.AudioAsset, error) {
	voice := g.voiceFor(language)
	chunks := splitTextIntoChunks(text, googleChunkBytes)
	if len(chunks) == 0 {
		return nil, fault.New(fault.FamilyTTS, fault.InvalidResponse, g.Name(), errors.New("no text to synthesize"))
	}

	var audio bytes.Buffer
	for _, chunk := range chunks {
		req := &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: voice,
			AudioConfig: &texttospeechpb.AudioConfig{
				AudioEncoding: texttospeechpb.AudioEncoding_MP3,
			},
		}
		resp, err := g.synthesize(ctx, req)
		if err != nil {
			return nil, g.classify(ctx, err)
		}
		if len(resp.GetAudioContent()) == 0 {
			return nil, fault.New(fault.FamilyTTS, fault.InvalidResponse, g.Name(), errors.New("empty audio"))
		}
		audio.Write(resp.GetAudioContent())
	}

	return &model.AudioAsset{
		Bytes:        audio.Bytes(),
		MimeType:     "audio/mpeg",
		DurationHint: speakingDuration(text),
	}, nil
}

// voiceFor 请求语言与配置的音色不一致时，只指定语言，由服务端选择默认音色
func (g *Google) voiceFor(language string) *texttospeechpb.VoiceSelectionParams {
	if language == "" || strings.HasPrefix(strings.ToLower(g.language), strings.ToLower(language)) {
		return &texttospeechpb.VoiceSelectionParams{LanguageCode: g.language, Name: g.voice}
	}
	return &texttospeechpb.VoiceSelectionParams{LanguageCode: language}
}

func (g *Google) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	st, ok := status.FromError(err)
	if !ok {
		return fault.New(fault.FamilyTTS, fault.Unavailable, g.Name(), err)
	}

	kind := fault.Unavailable
	switch st.Code() {
	case codes.Unavailable, codes.Internal, codes.Aborted, codes.Unknown:
		kind = fault.Unavailable
	case codes.ResourceExhausted:
		kind = fault.QuotaExceeded
	case codes.DeadlineExceeded:
		kind = fault.Timeout
	case codes.Canceled:
		return context.Canceled
	case codes.InvalidArgument:
		msg := strings.ToLower(st.Message())
		if strings.Contains(msg, "longer than") || strings.Contains(msg, "too long") || strings.Contains(msg, "5000 bytes") {
			kind = fault.TextTooLong
		} else {
			kind = fault.InvalidResponse
		}
	case codes.Unauthenticated, codes.PermissionDenied:
		kind = fault.Unauthorized
	}
	return fault.New(fault.FamilyTTS, kind, g.Name(), err)
}

// splitTextIntoChunks 按词切分，每段不超过 maxBytes 字节；超长的词（如不含空格的中文）按字符边界切开
func splitTextIntoChunks(text string, maxBytes int) []string {
	var chunks []string
	var chunk strings.Builder
	flush := func() {
		if chunk.Len() > 0 {
			chunks = append(chunks, chunk.String())
			chunk.Reset()
		}
	}
	for _, word := range strings.Fields(text) {
		for len(word) > maxBytes {
			flush()
			cut := runePrefix(word, maxBytes)
			chunks = append(chunks, word[:cut])
			word = word[cut:]
		}
		if chunk.Len() > 0 && chunk.Len()+1+len(word) > maxBytes {
			flush()
		}
		if chunk.Len() > 0 {
			chunk.WriteByte(' ')
		}
		chunk.WriteString(word)
	}
	flush()
	return chunks
}

// runePrefix 不超过 n 字节且不截断字符的最长前缀长度，至少包含一个字符
func runePrefix(s string, n int) int {
	if len(s) <= n {
		return len(s)
	}
	i := n
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	if i == 0 {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return i
}

// speakingDuration 按每分钟 150 词估算
func speakingDuration(text string) *time.Duration {
	words := len(strings.Fields(text))
	d := time.Duration(float64(words) / wordsPerMinute * float64(time.Minute))
	return &d
}
