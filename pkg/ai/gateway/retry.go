package gateway

import (
	"ai-tutoring-be/pkg/llm"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy is the backoff schedule for transient provider errors.
type RetryPolicy struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     8 * time.Second,
		Multiplier:  2.0,
	}
}

// Backoff returns the wait before the attempt following attempt (0-based).
func (p RetryPolicy) Backoff(attempt int, err error) time.Duration {
	var rl *llm.ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	wait := float64(p.InitialWait) * math.Pow(multiplier, float64(attempt))
	if p.MaxWait > 0 && wait > float64(p.MaxWait) {
		wait = float64(p.MaxWait)
	}

	// ±20% jitter
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

// retryable reports whether another attempt may succeed.
func retryable(err error) bool {
	if llm.IsConfiguration(err) {
		return false
	}
	var bad *llm.ErrBadRequest
	if errors.As(err, &bad) {
		return false
	}
	if llm.IsTransient(err) {
		return true
	}
	// untyped errors are usually network failures
	return true
}
