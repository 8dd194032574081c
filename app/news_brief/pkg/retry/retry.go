package retry

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
	"github.com/iWorld-y/news_brief/app/news_brief/pkg/logger"
)

// Policy 单个阶段的重试与超时策略
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration // 单次调用超时，0 表示不限
	TotalTimeout   time.Duration // 整个阶段的截止时间，0 表示按次数与退避推算
}

// Total 阶段总预算：每次调用超时加上所有退避时间
func (p Policy) Total() time.Duration {
	if p.TotalTimeout > 0 {
		return p.TotalTimeout
	}
	if p.AttemptTimeout <= 0 {
		return 0
	}
	total := time.Duration(p.MaxAttempts) * p.AttemptTimeout
	for n := 1; n < p.MaxAttempts; n++ {
		total += p.backoff(n)
	}
	return total
}

// backoff 第 n 次失败后的等待时间，n 从 1 开始
func (p Policy) backoff(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// state 重试循环的显式状态
type state struct {
	attempt   int
	nextDelay time.Duration
	lastErr   error
}

// Do 按策略执行 fn。瞬时错误（不可用、限流、超时）会退避后重试，其余错误立即返回。
// 父 context 取消时立即返回 context 的错误。
func Do(ctx context.Context, p Policy, family fault.Family, provider string, limiter *rate.Limiter, fn func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if total := p.Total(); total > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, total)
		defer cancel()
	}

	log := logger.Log.WithFields(logrus.Fields{"provider": provider})
	var st state
	for st.attempt = 1; st.attempt <= p.MaxAttempts; st.attempt++ {
		if err := ctx.Err(); err != nil {
			return stageErr(err, family, provider, st.lastErr)
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return stageErr(ctx.Err(), family, provider, st.lastErr)
				}
				// 等待时间超过剩余预算
				return fault.New(family, fault.Timeout, provider, err)
			}
		}

		err := attempt(ctx, p.AttemptTimeout, family, provider, fn)
		if err == nil {
			return nil
		}
		st.lastErr = err

		if ctx.Err() != nil {
			return stageErr(ctx.Err(), family, provider, err)
		}
		if !fault.IsTransient(err) {
			return err
		}
		if st.attempt == p.MaxAttempts {
			break
		}

		st.nextDelay = p.backoff(st.attempt)
		if pe, ok := fault.AsProviderError(err); ok && pe.RetryAfter > st.nextDelay {
			st.nextDelay = pe.RetryAfter
			if p.MaxDelay > 0 && st.nextDelay > p.MaxDelay {
				st.nextDelay = p.MaxDelay
			}
		}
		log.WithField("attempt", st.attempt).Warnf("调用失败，%s 后重试: %v", st.nextDelay, err)

		timer := time.NewTimer(st.nextDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return stageErr(ctx.Err(), family, provider, err)
		case <-timer.C:
		}
	}
	return st.lastErr
}

func attempt(ctx context.Context, timeout time.Duration, family fault.Family, provider string, fn func(ctx context.Context) error) error {
	actx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := fn(actx)
	if err == nil {
		return nil
	}
	// 单次调用超时而调用方仍在等待：视为服务商超时
	if ctx.Err() == nil && actx.Err() == context.DeadlineExceeded {
		return fault.New(family, fault.Timeout, provider, err)
	}
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fault.New(family, fault.Timeout, provider, err)
	}
	return err
}

// stageErr 父 context 结束时的错误：取消原样返回，阶段预算耗尽视为超时
func stageErr(ctxErr error, family fault.Family, provider string, last error) error {
	if errors.Is(ctxErr, context.Canceled) {
		return context.Canceled
	}
	if last == nil {
		last = ctxErr
	}
	return fault.New(family, fault.Timeout, provider, last)
}
