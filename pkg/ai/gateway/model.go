package gateway

import (
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/pkg/llm"
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const modelModule = "ModelGateway"

// PromptSpec is one rendered prompt. Purpose names the workflow for logs and spans.
type PromptSpec struct {
	Purpose  string
	System   string
	Messages []llm.Message
}

func (p PromptSpec) history() []llm.Message {
	history := make([]llm.Message, 0, len(p.Messages)+1)
	if p.System != "" {
		history = append(history, llm.Message{Role: llm.RoleSystem, Content: p.System})
	}
	return append(history, p.Messages...)
}

// ModelGateway issues completions with a per-attempt timeout and bounded
// retries. It is fail-closed: a caller gets text or a typed error.
type ModelGateway interface {
	Complete(ctx context.Context, spec PromptSpec, maxTokens int, temperature float64, timeout time.Duration) (string, error)
	// Ready returns the configuration error that prevents any completion, or nil.
	Ready() error
}

type modelGateway struct {
	provider    llm.LLMProvider
	providerErr error
	policy      RetryPolicy
	limiter     *rate.Limiter
	logger      logger.ILogger
}

// NewModelGateway wraps provider. providerErr is the construction error of the
// provider, if any; it is returned from every Complete without a network call.
// rpm <= 0 disables rate limiting.
func NewModelGateway(provider llm.LLMProvider, providerErr error, policy RetryPolicy, rpm int, log logger.ILogger) ModelGateway {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if provider == nil && providerErr == nil {
		providerErr = &llm.ErrConfiguration{Provider: "llm", Missing: []string{"LLM_PROVIDER"}}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if rpm > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
	}

	return &modelGateway{
		provider:    provider,
		providerErr: providerErr,
		policy:      policy,
		limiter:     limiter,
		logger:      log,
	}
}

func (g *modelGateway) Ready() error {
	return g.providerErr
}

func (g *modelGateway) Complete(ctx context.Context, spec PromptSpec, maxTokens int, temperature float64, timeout time.Duration) (string, error) {
	if g.providerErr != nil {
		g.logger.Error(modelModule, "Provider not configured", map[string]interface{}{
			"purpose": spec.Purpose,
			"error":   g.providerErr.Error(),
		})
		return "", g.providerErr
	}

	ctx, span := otel.Tracer("ai-tutoring-be/gateway").Start(ctx, "ModelGateway.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", g.provider.Name()),
		attribute.String("llm.purpose", spec.Purpose),
		attribute.Int("llm.max_tokens", maxTokens),
	)

	history := spec.history()
	var lastErr error

	for attempt := 0; attempt < g.policy.MaxAttempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}

		text, err := g.attempt(ctx, history, maxTokens, temperature, timeout)
		if err == nil {
			span.SetAttributes(attribute.Int("llm.attempts", attempt+1))
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			span.SetStatus(codes.Error, ctx.Err().Error())
			return "", ctx.Err()
		}
		if !retryable(err) {
			span.SetStatus(codes.Error, err.Error())
			g.logger.Error(modelModule, "Completion failed permanently", map[string]interface{}{
				"purpose": spec.Purpose,
				"attempt": attempt + 1,
				"error":   err.Error(),
			})
			return "", err
		}
		if attempt == g.policy.MaxAttempts-1 {
			break
		}

		wait := g.policy.Backoff(attempt, err)
		g.logger.Warn(modelModule, "Transient provider error, retrying", map[string]interface{}{
			"purpose": spec.Purpose,
			"attempt": attempt + 1,
			"wait_ms": wait.Milliseconds(),
			"error":   err.Error(),
		})

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}

	err := &llm.ErrProviderUnavailable{
		Provider: g.provider.Name(),
		Attempts: g.policy.MaxAttempts,
		Err:      lastErr,
	}
	span.SetStatus(codes.Error, err.Error())
	g.logger.Error(modelModule, "Provider unavailable after retries", map[string]interface{}{
		"purpose":  spec.Purpose,
		"attempts": g.policy.MaxAttempts,
		"error":    lastErr.Error(),
	})
	return "", err
}

// attempt runs one provider call under its own deadline. Only the attempt's
// deadline becomes ErrProviderTimeout; a cancelled parent is returned as is.
func (g *modelGateway) attempt(ctx context.Context, history []llm.Message, maxTokens int, temperature float64, timeout time.Duration) (string, error) {
	callCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	opts := []llm.Option{llm.WithTemperature(temperature)}
	if maxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(maxTokens))
	}

	text, err := g.provider.Chat(callCtx, history, opts...)
	if err == nil {
		return text, nil
	}
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return "", &llm.ErrProviderTimeout{Provider: g.provider.Name(), Timeout: timeout, Err: err}
	}
	return "", err
}
