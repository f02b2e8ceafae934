package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTuning_EmptyPathReturnsDefaults(t *testing.T) {
	tuning, err := LoadTuning("")
	require.NoError(t, err)
	assert.Equal(t, 1000, tuning.Chunking.Size)
	assert.Equal(t, 200, tuning.Chunking.Overlap)
	assert.Equal(t, 0.5, tuning.Diagnostic.LowConfidenceThreshold)
}

func TestLoadTuning_OverridesSubset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.toml")
	content := `
[chunking]
size = 800
overlap = 100

[chunking.per_source_type.pdf]
size = 1200
overlap = 150

[model]
max_attempts = 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tuning, err := LoadTuning(path)
	require.NoError(t, err)

	assert.Equal(t, 800, tuning.Chunking.Size)
	assert.Equal(t, 5, tuning.Model.MaxAttempts)
	// untouched sections keep their defaults
	assert.Equal(t, 4, tuning.Retrieval.TopK)

	size, overlap := tuning.Chunking.ChunkWindowFor("pdf")
	assert.Equal(t, 1200, size)
	assert.Equal(t, 150, overlap)

	size, overlap = tuning.Chunking.ChunkWindowFor("html")
	assert.Equal(t, 800, size)
	assert.Equal(t, 100, overlap)
}

func TestLoadTuning_RejectsOverlapLargerThanSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chunking]\nsize = 100\noverlap = 100\n"), 0o600))

	tuning, err := LoadTuning(path)
	assert.Error(t, err)
	assert.Equal(t, DefaultTuning().Chunking, tuning.Chunking)
}

func TestConfig_Readiness(t *testing.T) {
	cfg := &Config{Ai: AIConfig{LLMProvider: "openai", EmbeddingProvider: "hashing"}}
	assert.ElementsMatch(t, []string{"OPENAI_API_KEY", "VECTOR_STORE_URL"}, cfg.Readiness())

	cfg.Ai.OpenAIKey = "sk-test"
	cfg.Ai.VectorStoreURL = "memory://"
	assert.Empty(t, cfg.Readiness())

	cfg.Ai.VectorStoreURL = "pgvector"
	assert.Equal(t, []string{"DB_CONNECTION_STRING"}, cfg.Readiness())
}
