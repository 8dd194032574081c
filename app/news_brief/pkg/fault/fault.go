package fault

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Family 外部服务类别，决定错误类型名的前缀
type Family string

const (
	FamilySearch Family = "Provider"
	FamilyModel  Family = "Model"
	FamilyTTS    Family = "TTS"
)

// Kind 外部服务错误类型
type Kind string

const (
	Unavailable     Kind = "Unavailable"
	RateLimited     Kind = "RateLimited"
	Timeout         Kind = "Timeout"
	InvalidResponse Kind = "InvalidResponse"
	ContentRejected Kind = "ContentRejected"
	TextTooLong     Kind = "TextTooLong"
	QuotaExceeded   Kind = "QuotaExceeded"
	Unauthorized    Kind = "Unauthorized"
)

// 流水线级别的错误类型
const (
	KindInvalidQuery = "InvalidQuery"
	KindNoArticles   = "NoArticles"
	KindInternal     = "Internal"
	KindCanceled     = "Canceled"
)

// Transient 可重试的错误类型
func (k Kind) Transient() bool {
	switch k {
	case Unavailable, RateLimited, Timeout:
		return true
	}
	return false
}

// ProviderError 外部服务调用失败
type ProviderError struct {
	Family     Family
	Kind       Kind
	Provider   string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

// New 创建 ProviderError
func New(family Family, kind Kind, provider string, err error) *ProviderError {
	return &ProviderError{Family: family, Kind: kind, Provider: provider, Err: err}
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Name())
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Name 带前缀的错误类型名，例如 ModelRateLimited
func (e *ProviderError) Name() string {
	return string(e.Family) + string(e.Kind)
}

// Transient 是否值得重试
func (e *ProviderError) Transient() bool {
	return e.Kind.Transient()
}

// AsProviderError 从错误链中取出 ProviderError
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsTransient 判断错误是否可重试
func IsTransient(err error) bool {
	pe, ok := AsProviderError(err)
	return ok && pe.Transient()
}

// KindOf 返回错误对外展示的类型名
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	if f, ok := AsFailure(err); ok {
		return f.Kind
	}
	if pe, ok := AsProviderError(err); ok {
		return pe.Name()
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindInternal
}

// FromStatus 按 HTTP 状态码归类错误
func FromStatus(family Family, provider string, status int, err error) *ProviderError {
	kind := Unavailable
	switch {
	case status == 429:
		kind = RateLimited
	case status == 401 || status == 403:
		kind = Unauthorized
	case status == 408 || status == 504:
		kind = Timeout
	case status >= 500:
		kind = Unavailable
	case status >= 400:
		kind = InvalidResponse
	}
	pe := New(family, kind, provider, err)
	pe.StatusCode = status
	return pe
}
