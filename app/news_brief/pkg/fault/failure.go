package fault

import (
	"errors"
	"fmt"
)

// Failure 对外可见的失败描述，不包含服务商原始报错
type Failure struct {
	RunID   string `json:"run_id"`
	Stage   string `json:"stage"`
	Kind    string `json:"error_kind"`
	Message string `json:"message"`

	cause error
}

// NewFailure 根据阶段和底层错误创建 Failure
func NewFailure(runID, stage string, cause error) *Failure {
	kind := KindOf(cause)
	return &Failure{
		RunID:   runID,
		Stage:   stage,
		Kind:    kind,
		Message: messageFor(kind),
		cause:   cause,
	}
}

// WithKind 指定错误类型创建 Failure，用于空结果、内部不变量被破坏等非服务商错误
func WithKind(runID, stage, kind string, cause error) *Failure {
	return &Failure{
		RunID:   runID,
		Stage:   stage,
		Kind:    kind,
		Message: messageFor(kind),
		cause:   cause,
	}
}

// Invalid 输入校验失败，message 由调用方给出
func Invalid(runID, stage, message string) *Failure {
	return &Failure{
		RunID:   runID,
		Stage:   stage,
		Kind:    KindInvalidQuery,
		Message: message,
	}
}

// Error implements the error interface
func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s failed (%s): %v", f.Stage, f.Kind, f.cause)
	}
	return fmt.Sprintf("%s failed (%s): %s", f.Stage, f.Kind, f.Message)
}

// Unwrap 仅用于日志和 errors.Is，不对外序列化
func (f *Failure) Unwrap() error { return f.cause }

// AsFailure 从错误链中取出 Failure
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

var messages = map[string]string{
	"ProviderUnavailable":     "the news search service is currently unavailable",
	"ProviderRateLimited":     "the news search service is rate limiting requests, try again later",
	"ProviderTimeout":         "the news search service did not respond in time",
	"ProviderInvalidResponse": "the news search service returned an unreadable response",
	"ProviderUnauthorized":    "the news search service rejected the configured credentials",
	"ModelUnavailable":        "the summarization service is currently unavailable",
	"ModelRateLimited":        "the summarization service is rate limiting requests, try again later",
	"ModelTimeout":            "the summarization service did not respond in time",
	"ModelInvalidResponse":    "the summarization service returned a response that could not be used",
	"ModelContentRejected":    "the summarization service declined to summarize these articles",
	"ModelUnauthorized":       "the summarization service rejected the configured credentials",
	"TTSUnavailable":          "the speech service is currently unavailable",
	"TTSRateLimited":          "the speech service is rate limiting requests",
	"TTSTimeout":              "the speech service did not respond in time",
	"TTSQuotaExceeded":        "the speech service quota is exhausted",
	"TTSTextTooLong":          "the summary is too long for the speech service",
	"TTSInvalidResponse":      "the speech service returned unusable audio",
	"TTSUnauthorized":         "the speech service rejected the configured credentials",
	KindNoArticles:            "no articles were found for this topic",
	KindCanceled:              "the request was canceled",
	KindInternal:              "internal error",
	KindInvalidQuery:          "invalid query",
}

func messageFor(kind string) string {
	if m, ok := messages[kind]; ok {
		return m
	}
	return messages[KindInternal]
}

// UserMessage 返回某类错误对外展示的固定文案
func UserMessage(kind string) string {
	return messageFor(kind)
}
