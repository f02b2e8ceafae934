package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrConfiguration indicates the provider cannot be used because required
// settings are missing. It is never retried.
type ErrConfiguration struct {
	Provider string
	Missing  []string
}

func (e *ErrConfiguration) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("%s is not configured", e.Provider)
	}
	return fmt.Sprintf("%s is not configured: missing %s", e.Provider, strings.Join(e.Missing, ", "))
}

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrProviderTimeout indicates a single attempt exceeded its deadline.
type ErrProviderTimeout struct {
	Provider string
	Timeout  time.Duration
	Err      error
}

func (e *ErrProviderTimeout) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Provider, e.Timeout)
}

func (e *ErrProviderTimeout) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down or unreachable.
// Attempts is set once the retry budget is spent.
type ErrProviderUnavailable struct {
	Provider   string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *ErrProviderUnavailable) Error() string {
	msg := "LLM provider unavailable"
	if e.Provider != "" {
		msg = e.Provider + " unavailable"
	}
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrBadRequest is a non-transient 4xx answer (bad model name, oversized prompt).
type ErrBadRequest struct {
	StatusCode int
	Err        error
}

func (e *ErrBadRequest) Error() string {
	return fmt.Sprintf("provider rejected request (status %d): %v", e.StatusCode, e.Err)
}

func (e *ErrBadRequest) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth another attempt.
func IsTransient(err error) bool {
	var rl *ErrRateLimit
	var to *ErrProviderTimeout
	var un *ErrProviderUnavailable
	return errors.As(err, &rl) || errors.As(err, &to) || errors.As(err, &un)
}

// IsConfiguration reports whether err is a configuration failure.
func IsConfiguration(err error) bool {
	var cfg *ErrConfiguration
	return errors.As(err, &cfg)
}

// StatusError maps an HTTP status from a raw REST provider to the typed errors.
func StatusError(provider string, resp *http.Response, body []byte) error {
	cause := fmt.Errorf("%s error: status %d, body: %s", provider, resp.StatusCode, truncate(string(body), 300))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &ErrConfiguration{Provider: provider, Missing: []string{"valid credentials"}}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ErrRateLimit{RetryAfter: retryAfter(resp.Header.Get("Retry-After")), Err: cause}
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500:
		return &ErrProviderUnavailable{Provider: provider, StatusCode: resp.StatusCode, Err: cause}
	default:
		return &ErrBadRequest{StatusCode: resp.StatusCode, Err: cause}
	}
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		return time.Until(at)
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
