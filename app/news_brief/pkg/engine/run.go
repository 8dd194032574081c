package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/canon"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/logger"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/model"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/retry"
)

// State 流水线状态
type State string

const (
	Validating     State = model.StageValidating
	Fetching       State = model.StageFetching
	Canonicalizing State = model.StageCanonicalizing
	Summarizing    State = model.StageSummarizing
	Rendering      State = model.StageRendering
	Complete       State = model.StageComplete
	Failed         State = model.StageFailed
)

// RunOptions 运行选项
type RunOptions struct {
	// Progress 每次状态变化时回调，可以为 nil
	Progress func(State)
}

var languagePattern = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)

// run 单次请求的上下文，不在请求之间共享
type run struct {
	id       string
	query    model.Query
	opts     RunOptions
	log      *logrus.Entry
	state    State
	warnings []model.Warning
}

func (r *run) enter(s State) {
	r.state = s
	r.log.WithField("stage", string(s)).Debug("进入阶段")
	if r.opts.Progress != nil {
		r.opts.Progress(s)
	}
}

// fail 从当前阶段转入 Failed
func (r *run) fail(f *fault.Failure) error {
	stage := r.state
	if f.Kind == fault.KindInternal {
		r.log.WithField("stage", string(stage)).Errorf("内部错误: %v", f)
	} else {
		r.log.WithField("stage", string(stage)).Warnf("运行失败: %v", f)
	}
	r.enter(Failed)
	return f
}

func (r *run) failWith(err error) error {
	return r.fail(fault.NewFailure(r.id, string(r.state), err))
}

// Run 执行一次简报生成。返回的错误总是 *fault.Failure。
func (e *Engine) Run(ctx context.Context, q model.Query, opts RunOptions) (*model.PipelineResult, error) {
	r := &run{id: e.newID(), opts: opts}
	r.log = logger.Log.WithField("run_id", r.id)
	r.enter(Validating)

	q, err := e.normalize(q)
	if err != nil {
		return nil, r.fail(fault.Invalid(r.id, string(Validating), err.Error()))
	}
	r.query = q
	r.log.WithField("topic", q.Topic).Infof("开始生成简报，最多 %d 篇文章", q.MaxArticles)

	if e.sem != nil {
		select {
		case e.sem <- struct{}{}:
			defer func() { <-e.sem }()
		case <-ctx.Done():
			return nil, r.failWith(context.Canceled)
		}
	}

	// 1. 搜索
	r.enter(Fetching)
	raw, err := e.fetch(ctx, q)
	if err != nil {
		return nil, r.failWith(err)
	}
	if len(raw) == 0 {
		if !e.pipeline.AllowEmpty {
			return nil, r.fail(fault.WithKind(r.id, string(Fetching), fault.KindNoArticles, nil))
		}
		r.warnings = append(r.warnings, model.Warning{
			Stage:       string(Fetching),
			Kind:        model.WarnNoArticles,
			Message:     fault.UserMessage(fault.KindNoArticles),
			ArticleURLs: []string{},
		})
		return e.complete(r, []model.CanonicalArticle{}, nil, nil), nil
	}

	// 2. 去重排序
	r.enter(Canonicalizing)
	articles, err := e.canonicalizeSafe(raw, q.MaxArticles)
	if err != nil {
		return nil, r.fail(fault.WithKind(r.id, string(Canonicalizing), fault.KindInternal, err))
	}
	r.log.Infof("抓取 %d 篇，去重后保留 %d 篇", len(raw), len(articles))

	// 3. 生成摘要
	r.enter(Summarizing)
	summary, warns, err := e.summarize(ctx, articles, q)
	if err != nil {
		return nil, r.failWith(err)
	}
	r.warnings = append(r.warnings, warns...)

	// 4. 语音合成，失败只记录警告
	var audio *model.AudioAsset
	if q.Audio {
		r.enter(Rendering)
		audio = e.render(ctx, r, summary.HeadlineSummary)
	}

	return e.complete(r, articles, summary, audio), nil
}

func (e *Engine) complete(r *run, articles []model.CanonicalArticle, summary *model.Summary, audio *model.AudioAsset) *model.PipelineResult {
	warnings := r.warnings
	if warnings == nil {
		warnings = []model.Warning{}
	}
	r.enter(Complete)
	r.log.Infof("简报生成完成，%d 条警告", len(warnings))
	return &model.PipelineResult{
		RunID:    r.id,
		Query:    r.query,
		Articles: articles,
		Summary:  summary,
		Audio:    audio,
		Warnings: warnings,
	}
}

// normalize 校验并补全查询，发生在任何外部调用之前
func (e *Engine) normalize(q model.Query) (model.Query, error) {
	q.Topic = strings.TrimSpace(q.Topic)
	if q.Topic == "" {
		return q, errors.New("topic must not be empty")
	}
	if n := e.pipeline.MaxTopicLength; n > 0 && utf8.RuneCountInString(q.Topic) > n {
		return q, fmt.Errorf("topic must be at most %d characters", n)
	}

	if q.MaxArticles == 0 {
		q.MaxArticles = e.pipeline.DefaultMaxArticles
	}
	limit := e.pipeline.MaxArticlesLimit
	if q.MaxArticles < 1 || (limit > 0 && q.MaxArticles > limit) {
		return q, fmt.Errorf("max_articles must be between 1 and %d", limit)
	}

	q.Language = strings.TrimSpace(q.Language)
	if q.Language != "" && !languagePattern.MatchString(q.Language) {
		return q, fmt.Errorf("language %q is not a valid language tag", q.Language)
	}
	return q, nil
}

func (e *Engine) fetch(ctx context.Context, q model.Query) ([]model.RawArticle, error) {
	var raw []model.RawArticle
	err := retry.Do(ctx, e.policy(e.pipeline.Timeouts.Fetching), fault.FamilySearch, e.source.Name(), e.limiters.search,
		func(ctx context.Context) error {
			var err error
			raw, err = e.source.Fetch(ctx, q)
			return err
		})
	if err != nil {
		return nil, err
	}
	raw = e.source.Enrich(ctx, raw)
	if ctx.Err() != nil {
		return nil, context.Canceled
	}
	return raw, nil
}

// canonicalizeSafe 去重排序并校验输出，panic 与校验失败都视为内部错误
func (e *Engine) canonicalizeSafe(raw []model.RawArticle, maxArticles int) (out []model.CanonicalArticle, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("canonicalize panicked: %v", p)
		}
	}()
	out = e.canonicalize(raw, maxArticles, canon.Options{Trust: e.pipeline.Trust})
	if err := canon.Verify(out, maxArticles); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) summarize(ctx context.Context, articles []model.CanonicalArticle, q model.Query) (*model.Summary, []model.Warning, error) {
	var (
		summary  *model.Summary
		warnings []model.Warning
	)
	err := retry.Do(ctx, e.policy(e.pipeline.Timeouts.Summarizing), fault.FamilyModel, e.summ.Name(), e.limiters.llm,
		func(ctx context.Context) error {
			var err error
			summary, warnings, err = e.summ.Summarize(ctx, articles, q)
			return err
		})
	if err != nil {
		return nil, nil, err
	}
	return summary, warnings, nil
}

// render 尽力合成语音，任何失败都转为警告
func (e *Engine) render(ctx context.Context, r *run, text string) *model.AudioAsset {
	if e.renderer == nil {
		r.warnings = append(r.warnings, model.Warning{
			Stage:       string(Rendering),
			Kind:        model.WarnSpeechDisabled,
			Message:     "audio was requested but no speech service is configured",
			ArticleURLs: []string{},
		})
		return nil
	}

	name := e.renderer.Name()
	text, w, err := e.guard.Apply(name, text)
	if w != nil {
		r.warnings = append(r.warnings, *w)
	}
	if err == nil {
		var audio *model.AudioAsset
		err = retry.Do(ctx, e.policy(e.pipeline.Timeouts.Rendering), fault.FamilyTTS, name, e.limiters.speech,
			func(ctx context.Context) error {
				var err error
				audio, err = e.renderer.Render(ctx, text, r.query.Language)
				return err
			})
		if err == nil {
			return audio
		}
	}

	kind := fault.KindOf(err)
	r.log.WithFields(logrus.Fields{"stage": string(Rendering), "provider": name}).Warnf("语音合成失败: %v", err)
	r.warnings = append(r.warnings, model.Warning{
		Stage:       string(Rendering),
		Kind:        kind,
		Message:     fault.UserMessage(kind),
		ArticleURLs: []string{},
	})
	return nil
}
