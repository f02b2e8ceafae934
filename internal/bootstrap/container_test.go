package bootstrap

import (
	"context"
	"testing"

	"ai-tutoring-be/internal/config"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/pkg/llm"
	"ai-tutoring-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offlineConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{QueueWorkers: 2},
		Ai: config.AIConfig{
			LLMProvider:       "ollama",
			OllamaBaseURL:     "http://localhost:11434",
			EmbeddingProvider: "hashing",
			VectorStoreURL:    "memory://",
		},
		Tuning: config.DefaultTuning(),
	}
}

func TestNewContainer_InMemory(t *testing.T) {
	c, err := NewContainer(context.Background(), offlineConfig(), logger.NewNopLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.GeneratorController)
	assert.NotNil(t, c.TutorController)
	assert.NotNil(t, c.AnalyticsController)
	assert.NotNil(t, c.HealthController)
	assert.NotNil(t, c.JobEventsHandler)
	assert.NotNil(t, c.ConsumerService)
	assert.NotNil(t, c.WebSocketHub)
}

func TestNewContainer_MissingKeysDoNotFailStartup(t *testing.T) {
	cfg := offlineConfig()
	cfg.Ai.LLMProvider = "anthropic"
	cfg.Ai.EmbeddingProvider = "jina"
	cfg.Ai.VectorStoreURL = ""

	c, err := NewContainer(context.Background(), cfg, logger.NewNopLogger())
	require.NoError(t, err)
	c.Close()
}

func TestNewRetrieval_ReportsMissingStore(t *testing.T) {
	cfg := offlineConfig()
	cfg.Ai.VectorStoreURL = ""

	retrieval, err := NewRetrieval(cfg, nil, logger.NewNopLogger())
	require.NoError(t, err)

	ready := retrieval.Ready()
	require.Error(t, ready)
	assert.True(t, llm.IsConfiguration(ready))
	assert.Contains(t, ready.Error(), "VECTOR_STORE_URL")
}

func TestNewVectorStore(t *testing.T) {
	cfg := offlineConfig()

	store, err := newVectorStore(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &vectorstore.MemoryStore{}, store)

	cfg.Ai.VectorStoreURL = "pgvector"
	store, err = newVectorStore(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, store, "pgvector without a database is left unconfigured")
}

func TestProviderKeys(t *testing.T) {
	cfg := offlineConfig()
	cfg.Ai.OpenAIKey = "sk-openai"
	cfg.Ai.GeminiKey = "gm-key"
	cfg.Ai.JinaKey = "jn-key"

	cfg.Ai.LLMProvider = "openai"
	assert.Equal(t, "sk-openai", llmKey(cfg))
	assert.Equal(t, "", llmBaseURL(cfg))

	cfg.Ai.LLMProvider = "ollama"
	assert.Equal(t, "", llmKey(cfg))
	assert.Equal(t, "http://localhost:11434", llmBaseURL(cfg))

	cfg.Ai.EmbeddingProvider = "gemini"
	assert.Equal(t, "gm-key", embeddingKey(cfg))
	cfg.Ai.EmbeddingProvider = "jina"
	assert.Equal(t, "jn-key", embeddingKey(cfg))
}
