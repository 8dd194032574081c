package server

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/engine"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
)

// Runner 执行一次简报流水线，*engine.Engine 实现了该接口
type Runner interface {
	Run(ctx context.Context, q model.Query, opts engine.RunOptions) (*model.PipelineResult, error)
}

// BriefRequest 请求体
type BriefRequest struct {
	Topic       string `json:"topic"`
	MaxArticles int    `json:"max_articles"`
	Language    string `json:"language"`
	Audio       bool   `json:"audio"`
}

func (r *BriefRequest) query() model.Query {
	return model.Query{
		Topic:       r.Topic,
		MaxArticles: r.MaxArticles,
		Language:    r.Language,
		Audio:       r.Audio,
	}
}

// BriefService 简报服务
type BriefService struct {
	runner Runner
	log    *log.Helper
}

func NewBriefService(runner Runner, logger log.Logger) *BriefService {
	return &BriefService{
		runner: runner,
		log:    log.NewHelper(logger),
	}
}

// CreateBrief 生成简报，返回的错误为 *fault.Failure
func (s *BriefService) CreateBrief(ctx context.Context, req *BriefRequest) (*model.PipelineResult, error) {
	s.log.WithContext(ctx).Infof("create brief: topic=%q max_articles=%d audio=%v", req.Topic, req.MaxArticles, req.Audio)
	return s.runner.Run(ctx, req.query(), engine.RunOptions{
		Progress: func(st engine.State) {
			s.log.WithContext(ctx).Debugf("brief state: %s", st)
		},
	})
}

// CreateAudio 与 CreateBrief 相同，但总是请求语音
func (s *BriefService) CreateAudio(ctx context.Context, req *BriefRequest) (*model.PipelineResult, error) {
	req.Audio = true
	return s.CreateBrief(ctx, req)
}
