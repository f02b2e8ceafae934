package ollama

import (
	"ai-tutoring-be/pkg/llm"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.Equal(t, 256, req.Options.NumPredict)
		assert.Len(t, req.Messages, 2)

		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:   req.Model,
			Message: ollamaMessage{Role: "assistant", Content: "What do you think?"},
			Done:    true,
		})
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "llama3")
	out, err := provider.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "be socratic"},
		{Role: llm.RoleUser, Content: "hi"},
	}, llm.WithMaxTokens(256))

	require.NoError(t, err)
	assert.Equal(t, "What do you think?", out)
}

func TestOllamaProvider_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "server error is unavailable",
			status: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				var unavail *llm.ErrProviderUnavailable
				assert.True(t, errors.As(err, &unavail))
				assert.True(t, llm.IsTransient(err))
			},
		},
		{
			name:   "429 is rate limit with retry-after",
			status: http.StatusTooManyRequests,
			header: "2",
			check: func(t *testing.T, err error) {
				var rl *llm.ErrRateLimit
				require.True(t, errors.As(err, &rl))
				assert.Equal(t, 2*time.Second, rl.RetryAfter)
			},
		},
		{
			name:   "401 is configuration",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.True(t, llm.IsConfiguration(err))
				assert.False(t, llm.IsTransient(err))
			},
		},
		{
			name:   "404 is a permanent bad request",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				var bad *llm.ErrBadRequest
				assert.True(t, errors.As(err, &bad))
				assert.False(t, llm.IsTransient(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					w.Header().Set("Retry-After", tt.header)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			_, err := NewOllamaProvider(server.URL, "llama3").Generate(context.Background(), "hi")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestOllamaProvider_UnreachableIsUnavailable(t *testing.T) {
	provider := NewOllamaProvider("http://127.0.0.1:1", "llama3")
	provider.Client.Timeout = time.Second

	_, err := provider.Generate(context.Background(), "hi")
	var unavail *llm.ErrProviderUnavailable
	assert.True(t, errors.As(err, &unavail))
}
