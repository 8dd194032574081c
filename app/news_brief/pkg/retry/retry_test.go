package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/news_brief/app/news_brief/pkg/fault"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDoRetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), fault.FamilySearch, "stub", nil, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fault.New(fault.FamilySearch, fault.Unavailable, "stub", errors.New("503"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), fault.FamilyModel, "stub", nil, func(ctx context.Context) error {
		calls++
		return fault.New(fault.FamilyModel, fault.RateLimited, "stub", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "ModelRateLimited", fault.KindOf(err))
}

func TestDoDoesNotRetryPermanent(t *testing.T) {
	for _, kind := range []fault.Kind{fault.InvalidResponse, fault.ContentRejected, fault.TextTooLong, fault.Unauthorized, fault.QuotaExceeded} {
		t.Run(string(kind), func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), fastPolicy(), fault.FamilyModel, "stub", nil, func(ctx context.Context) error {
				calls++
				return fault.New(fault.FamilyModel, kind, "stub", nil)
			})
			require.Error(t, err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestDoAttemptTimeoutBecomesTimeoutKind(t *testing.T) {
	p := fastPolicy()
	p.AttemptTimeout = 10 * time.Millisecond
	p.TotalTimeout = time.Second
	calls := 0
	err := Do(context.Background(), p, fault.FamilySearch, "stub", nil, func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, "ProviderTimeout", fault.KindOf(err))
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}
	calls := 0

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, p, fault.FamilySearch, "stub", nil, func(ctx context.Context) error {
			calls++
			return fault.New(fault.FamilySearch, fault.Unavailable, "stub", nil)
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestDoHonorsRetryAfterCappedByMaxDelay(t *testing.T) {
	p := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 30 * time.Millisecond}
	calls := 0
	start := time.Now()
	err := Do(context.Background(), p, fault.FamilySearch, "stub", nil, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			pe := fault.New(fault.FamilySearch, fault.RateLimited, "stub", nil)
			pe.RetryAfter = time.Minute
			return pe
		}
		return nil
	})
	require.NoError(t, err)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestPolicyBackoffAndTotal(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second, AttemptTimeout: 5 * time.Second}
	assert.Equal(t, 2*time.Second, p.backoff(1))
	assert.Equal(t, 4*time.Second, p.backoff(2))
	assert.Equal(t, 8*time.Second, p.backoff(3))
	assert.Equal(t, 10*time.Second, p.backoff(4))
	assert.Equal(t, 4*5*time.Second+(2+4+8)*time.Second, p.Total())

	p.TotalTimeout = time.Second
	assert.Equal(t, time.Second, p.Total())
}
