package factory

import (
	"ai-tutoring-be/pkg/llm"
	"ai-tutoring-be/pkg/llm/anthropic"
	"ai-tutoring-be/pkg/llm/gemini"
	"ai-tutoring-be/pkg/llm/huggingface"
	"ai-tutoring-be/pkg/llm/ollama"
	"ai-tutoring-be/pkg/llm/openai"
	"context"
	"fmt"
)

type ProviderConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// NewLLMProvider builds the configured backend. Missing credentials come back
// as *llm.ErrConfiguration so callers can keep serving non-AI routes.
func NewLLMProvider(ctx context.Context, cfg ProviderConfig) (llm.LLMProvider, error) {
	var (
		provider llm.LLMProvider
		err      error
	)
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model), nil
	case "openai":
		provider, err = openai.NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "anthropic":
		provider, err = anthropic.NewAnthropicProvider(cfg.APIKey, cfg.Model)
	case "gemini":
		provider, err = gemini.NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
	case "huggingface":
		provider, err = huggingface.NewHuggingFaceProvider(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "":
		return nil, &llm.ErrConfiguration{Provider: "llm", Missing: []string{"LLM_PROVIDER"}}
	default:
		return nil, &llm.ErrConfiguration{Provider: "llm", Missing: []string{fmt.Sprintf("LLM_PROVIDER (unsupported: %s)", cfg.Provider)}}
	}
	// keep a failed constructor's typed nil out of the interface
	if err != nil {
		return nil, err
	}
	return provider, nil
}
