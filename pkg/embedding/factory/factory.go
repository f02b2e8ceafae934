package factory

import (
	"ai-tutoring-be/pkg/embedding"
	"ai-tutoring-be/pkg/embedding/jina"
	"ai-tutoring-be/pkg/llm"
	"fmt"
)

type ProviderConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// NewEmbeddingProvider mirrors the LLM factory: missing credentials are a
// *llm.ErrConfiguration, never a panic.
func NewEmbeddingProvider(cfg ProviderConfig) (embedding.EmbeddingProvider, error) {
	switch cfg.Provider {
	case "ollama":
		if cfg.BaseURL == "" {
			return nil, &llm.ErrConfiguration{Provider: "embedding", Missing: []string{"OLLAMA_BASE_URL"}}
		}
		return embedding.NewOllamaProvider(cfg.BaseURL, cfg.Model), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, &llm.ErrConfiguration{Provider: "embedding", Missing: []string{"GOOGLE_GEMINI_API_KEY"}}
		}
		return embedding.NewGeminiProvider(cfg.APIKey, cfg.Model), nil
	case "jina":
		if cfg.APIKey == "" {
			return nil, &llm.ErrConfiguration{Provider: "embedding", Missing: []string{"JINA_API_KEY"}}
		}
		return jina.NewJinaProvider(cfg.APIKey, cfg.Model), nil
	case "hashing":
		return embedding.NewHashingProvider(embedding.Dimensions), nil
	case "":
		return nil, &llm.ErrConfiguration{Provider: "embedding", Missing: []string{"EMBEDDING_PROVIDER"}}
	default:
		return nil, &llm.ErrConfiguration{Provider: "embedding", Missing: []string{fmt.Sprintf("EMBEDDING_PROVIDER (unsupported: %s)", cfg.Provider)}}
	}
}
