package factory

import (
	"context"
	"testing"

	"ai-tutoring-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMProvider_MissingKeys(t *testing.T) {
	tests := []struct {
		provider string
		missing  string
	}{
		{"openai", "OPENAI_API_KEY"},
		{"anthropic", "ANTHROPIC_API_KEY"},
		{"gemini", "GOOGLE_GEMINI_API_KEY"},
		{"", "LLM_PROVIDER"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			provider, err := NewLLMProvider(context.Background(), ProviderConfig{Provider: tt.provider})

			require.Error(t, err)
			assert.Nil(t, provider)
			assert.True(t, llm.IsConfiguration(err))
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestNewLLMProvider_Unsupported(t *testing.T) {
	_, err := NewLLMProvider(context.Background(), ProviderConfig{Provider: "cobol"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported: cobol")
}

func TestNewLLMProvider_OllamaNeedsNoKey(t *testing.T) {
	provider, err := NewLLMProvider(context.Background(), ProviderConfig{Provider: "ollama", Model: "llama3"})

	require.NoError(t, err)
	assert.Equal(t, "ollama", provider.Name())
}
