package gateway

import (
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/pkg/llm"
	"ai-tutoring-be/pkg/llm/mock"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}
}

func spec() PromptSpec {
	return PromptSpec{
		Purpose:  "test",
		System:   "answer briefly",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
	}
}

func TestModelGateway_RetriesTransientThenSucceeds(t *testing.T) {
	provider := mock.NewProvider(
		mock.Reply{Err: &llm.ErrProviderUnavailable{Provider: "mock", StatusCode: 502}},
		mock.Reply{Err: errors.New("connection reset")},
		mock.Reply{Content: "ok"},
	)
	gw := NewModelGateway(provider, nil, fastPolicy(), 0, logger.NewNopLogger())

	out, err := gw.Complete(context.Background(), spec(), 128, 0.2, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, provider.CallCount())

	last := provider.LastCall()
	require.Len(t, last.History, 2)
	assert.Equal(t, llm.RoleSystem, last.History[0].Role)
	assert.Equal(t, 128, last.Options.MaxTokens)
	assert.InDelta(t, 0.2, last.Options.Temperature, 1e-9)
}

func TestModelGateway_ExhaustedRetriesIsUnavailable(t *testing.T) {
	provider := mock.NewProvider()
	provider.Handler = func([]llm.Message) mock.Reply {
		return mock.Reply{Err: &llm.ErrProviderUnavailable{Provider: "mock", StatusCode: 503}}
	}
	gw := NewModelGateway(provider, nil, fastPolicy(), 0, logger.NewNopLogger())

	_, err := gw.Complete(context.Background(), spec(), 64, 0, time.Second)

	var unavail *llm.ErrProviderUnavailable
	require.True(t, errors.As(err, &unavail))
	assert.Equal(t, 3, unavail.Attempts)
	assert.Equal(t, 3, provider.CallCount())
}

func TestModelGateway_ConfigurationErrorIsNotRetried(t *testing.T) {
	provider := mock.NewProvider(mock.Reply{Err: &llm.ErrConfiguration{Provider: "mock", Missing: []string{"API_KEY"}}})
	gw := NewModelGateway(provider, nil, fastPolicy(), 0, logger.NewNopLogger())

	_, err := gw.Complete(context.Background(), spec(), 64, 0, time.Second)
	assert.True(t, llm.IsConfiguration(err))
	assert.Equal(t, 1, provider.CallCount())
}

func TestModelGateway_MissingProviderFailsWithoutCall(t *testing.T) {
	cfgErr := &llm.ErrConfiguration{Provider: "openai", Missing: []string{"OPENAI_API_KEY"}}
	gw := NewModelGateway(nil, cfgErr, fastPolicy(), 0, logger.NewNopLogger())

	assert.Equal(t, cfgErr, gw.Ready())
	_, err := gw.Complete(context.Background(), spec(), 64, 0, time.Second)
	assert.True(t, llm.IsConfiguration(err))
}

func TestModelGateway_AttemptTimeoutIsRetried(t *testing.T) {
	provider := mock.NewProvider(
		mock.Reply{Content: "late", Delay: time.Second},
		mock.Reply{Content: "on time"},
	)
	gw := NewModelGateway(provider, nil, fastPolicy(), 0, logger.NewNopLogger())

	out, err := gw.Complete(context.Background(), spec(), 64, 0, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "on time", out)
	assert.Equal(t, 2, provider.CallCount())
}

func TestModelGateway_AllAttemptsTimeOut(t *testing.T) {
	provider := mock.NewProvider()
	provider.Handler = func([]llm.Message) mock.Reply {
		return mock.Reply{Content: "late", Delay: time.Second}
	}
	gw := NewModelGateway(provider, nil, RetryPolicy{MaxAttempts: 2, InitialWait: time.Millisecond}, 0, logger.NewNopLogger())

	_, err := gw.Complete(context.Background(), spec(), 64, 0, 10*time.Millisecond)

	var timeout *llm.ErrProviderTimeout
	assert.True(t, errors.As(err, &timeout), "the last cause should be the attempt timeout")
	assert.True(t, llm.IsTransient(err))
}

func TestModelGateway_CancelledParentIsNotRetried(t *testing.T) {
	provider := mock.NewProvider(mock.Reply{Content: "late", Delay: time.Second})
	gw := NewModelGateway(provider, nil, fastPolicy(), 0, logger.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := gw.Complete(ctx, spec(), 64, 0, time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, provider.CallCount())
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialWait: 100 * time.Millisecond, MaxWait: 300 * time.Millisecond, Multiplier: 2}

	first := p.Backoff(0, errors.New("x"))
	assert.GreaterOrEqual(t, first, 80*time.Millisecond)
	assert.LessOrEqual(t, first, 120*time.Millisecond)

	capped := p.Backoff(4, errors.New("x"))
	assert.LessOrEqual(t, capped, 360*time.Millisecond)

	rl := p.Backoff(0, &llm.ErrRateLimit{RetryAfter: 2 * time.Second})
	assert.Equal(t, 2*time.Second, rl)
}
