package server

import (
	"context"
	"errors"
	nethttp "net/http"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/config"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
)

const (
	OperationCreateBrief = "/news_brief.v1.Brief/CreateBrief"
	OperationCreateAudio = "/news_brief.v1.Brief/CreateAudio"
)

func NewHTTPServer(c config.ServerConfig, s *BriefService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(recovery.WithHandler(func(ctx context.Context, req, err any) error {
				log.NewHelper(logger).WithContext(ctx).Errorf("panic recovered: %v", err)
				return errPanic
			})),
		),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	if c.Timeout > 0 {
		opts = append(opts, http.Timeout(c.Timeout))
	}

	srv := http.NewServer(opts...)
	r := srv.Route("/")
	r.POST("/v1/briefs", createBriefHandler(s))
	r.POST("/v1/briefs/audio", createAudioHandler(s))
	r.GET("/healthz", func(ctx http.Context) error {
		return ctx.JSON(nethttp.StatusOK, map[string]string{"status": "ok"})
	})
	return srv
}

var errPanic = errors.New("handler panicked")

func createBriefHandler(s *BriefService) http.HandlerFunc {
	return func(ctx http.Context) error {
		var in BriefRequest
		if err := ctx.Bind(&in); err != nil {
			return writeFailure(ctx, fault.Invalid("", model.StageValidating, "request body is not valid JSON"))
		}
		http.SetOperation(ctx, OperationCreateBrief)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return s.CreateBrief(ctx, req.(*BriefRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return writeFailure(ctx, err)
		}
		return ctx.JSON(nethttp.StatusOK, out)
	}
}

func createAudioHandler(s *BriefService) http.HandlerFunc {
	return func(ctx http.Context) error {
		var in BriefRequest
		if err := ctx.Bind(&in); err != nil {
			return writeFailure(ctx, fault.Invalid("", model.StageValidating, "request body is not valid JSON"))
		}
		http.SetOperation(ctx, OperationCreateAudio)
		h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
			return s.CreateAudio(ctx, req.(*BriefRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return writeFailure(ctx, err)
		}

		res := out.(*model.PipelineResult)
		if res.Audio == nil {
			return ctx.JSON(nethttp.StatusBadGateway, audioMissing(res))
		}
		ctx.Response().Header().Set("Content-Disposition", "attachment; filename="+audioFilename(res.Audio.MimeType))
		return ctx.Blob(nethttp.StatusOK, res.Audio.MimeType, res.Audio.Bytes)
	}
}

// writeFailure 以失败 JSON 响应，非 Failure 的错误按内部错误处理
func writeFailure(ctx http.Context, err error) error {
	f, ok := fault.AsFailure(err)
	if !ok {
		f = fault.WithKind("", model.StageFailed, fault.KindInternal, err)
	}
	return ctx.JSON(statusFor(f.Kind), f)
}

// statusFor 错误类型到 HTTP 状态码
func statusFor(kind string) int {
	switch {
	case kind == fault.KindInvalidQuery:
		return nethttp.StatusBadRequest
	case kind == fault.KindNoArticles:
		return nethttp.StatusNotFound
	case kind == fault.KindCanceled:
		return nethttp.StatusRequestTimeout
	case kind == fault.KindInternal:
		return nethttp.StatusInternalServerError
	case strings.HasSuffix(kind, string(fault.RateLimited)):
		return nethttp.StatusTooManyRequests
	case strings.HasSuffix(kind, string(fault.Timeout)):
		return nethttp.StatusGatewayTimeout
	case strings.HasSuffix(kind, string(fault.ContentRejected)):
		return nethttp.StatusUnprocessableEntity
	default:
		return nethttp.StatusBadGateway
	}
}

// audioMissing 流水线完成但没有音频时，用最后一条相关警告说明原因
func audioMissing(res *model.PipelineResult) *fault.Failure {
	f := &fault.Failure{
		RunID:   res.RunID,
		Stage:   model.StageRendering,
		Kind:    string(fault.FamilyTTS) + string(fault.Unavailable),
		Message: fault.UserMessage(string(fault.FamilyTTS) + string(fault.Unavailable)),
	}
	for i := len(res.Warnings) - 1; i >= 0; i-- {
		w := res.Warnings[i]
		if w.Kind == model.WarnSpeechTruncated || w.Kind == model.WarnPromptTruncated {
			continue
		}
		f.Stage, f.Kind, f.Message = w.Stage, w.Kind, w.Message
		break
	}
	return f
}

func audioFilename(mime string) string {
	switch mime {
	case "audio/ogg":
		return "news-summary.ogg"
	case "audio/basic":
		return "news-summary.ulaw"
	case "audio/pcm":
		return "news-summary.pcm"
	default:
		return "news-summary.mp3"
	}
}
