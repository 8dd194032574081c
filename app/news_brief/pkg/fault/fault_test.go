package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindTransient(t *testing.T) {
	assert.True(t, Unavailable.Transient())
	assert.True(t, RateLimited.Transient())
	assert.True(t, Timeout.Transient())
	assert.False(t, InvalidResponse.Transient())
	assert.False(t, ContentRejected.Transient())
	assert.False(t, TextTooLong.Transient())
	assert.False(t, QuotaExceeded.Transient())
	assert.False(t, Unauthorized.Transient())
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{429, "ProviderRateLimited"},
		{401, "ProviderUnauthorized"},
		{403, "ProviderUnauthorized"},
		{504, "ProviderTimeout"},
		{500, "ProviderUnavailable"},
		{503, "ProviderUnavailable"},
		{400, "ProviderInvalidResponse"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			pe := FromStatus(FamilySearch, "serper", tt.status, nil)
			assert.Equal(t, tt.want, pe.Name())
			assert.Equal(t, tt.status, pe.StatusCode)
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	pe := New(FamilyTTS, QuotaExceeded, "elevenlabs", errors.New("quota"))
	wrapped := fmt.Errorf("render: %w", pe)
	assert.Equal(t, "TTSQuotaExceeded", KindOf(wrapped))
	assert.False(t, IsTransient(wrapped))
	assert.Equal(t, KindCanceled, KindOf(fmt.Errorf("x: %w", context.Canceled)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "", KindOf(nil))
}

func TestFailureHidesProviderDetail(t *testing.T) {
	cause := New(FamilyModel, RateLimited, "openai", errors.New("api key sk-secret exceeded"))
	f := NewFailure("run-1", "Summarizing", cause)

	assert.Equal(t, "ModelRateLimited", f.Kind)
	assert.Equal(t, "Summarizing", f.Stage)
	assert.NotContains(t, f.Message, "sk-secret")
	assert.ErrorIs(t, f, cause)

	got, ok := AsFailure(fmt.Errorf("wrap: %w", f))
	assert.True(t, ok)
	assert.Equal(t, "ModelRateLimited", KindOf(got))
}

func TestInvalid(t *testing.T) {
	f := Invalid("r", "Validating", "topic must not be empty")
	assert.Equal(t, KindInvalidQuery, f.Kind)
	assert.Equal(t, "topic must not be empty", f.Message)
	assert.Nil(t, f.Unwrap())
}
