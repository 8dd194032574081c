package search

import (
	"fmt"
	"io"
	"net/http"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
)

// maxErrorBody 错误响应只保留前面一段用于日志
const maxErrorBody = 512

// StatusError 非 200 响应转换为 ProviderError
func StatusError(provider string, res *http.Response) *fault.ProviderError {
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	pe := fault.FromStatus(fault.FamilySearch, provider, res.StatusCode,
		fmt.Errorf("%s api error (status %d): %s", provider, res.StatusCode, string(body)))
	if pe.Kind == fault.RateLimited {
		pe.RetryAfter = RetryAfter(res.Header)
	}
	return pe
}

// TransportError 网络层错误，一律视为服务不可用
func TransportError(provider string, err error) *fault.ProviderError {
	return fault.New(fault.FamilySearch, fault.Unavailable, provider, fmt.Errorf("request failed: %w", err))
}

// DecodeError 响应体无法解析
func DecodeError(provider string, err error) *fault.ProviderError {
	return fault.New(fault.FamilySearch, fault.InvalidResponse, provider, fmt.Errorf("decode response failed: %w", err))
}
