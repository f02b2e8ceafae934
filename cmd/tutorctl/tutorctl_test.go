package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ai-tutoring-be/internal/config"
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/pkg/ai/gateway"
	"ai-tutoring-be/pkg/embedding"
	"ai-tutoring-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runParse(t *testing.T, shape, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	parseCmd.SetOut(&out)
	parseCmd.SetIn(strings.NewReader(input))
	require.NoError(t, parseCmd.Flags().Set("shape", shape))

	err := parseCmd.RunE(parseCmd, nil)
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	t.Run("strict reply", func(t *testing.T) {
		out, err := runParse(t, "reply", `{"reply":"What repeats here?"}`)

		require.NoError(t, err)
		assert.Contains(t, out, "strict")
		assert.Contains(t, out, "What repeats here?")
	})

	t.Run("missing fields fail the command", func(t *testing.T) {
		out, err := runParse(t, "report", `{"category":"logic"}`)

		require.Error(t, err)
		assert.Contains(t, out, "diagnosis")
	})

	t.Run("unknown shape", func(t *testing.T) {
		_, err := runParse(t, "poem", `{}`)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown shape")
	})
}

func TestIngestFiles(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "loops.md")
	require.NoError(t, os.WriteFile(notes, []byte("# Loops\n\nA for loop repeats a block once per item.\n\nA while loop repeats until its condition is false."), 0o644))
	binary := filepath.Join(dir, "blob.bin")
	require.NoError(t, os.WriteFile(binary, []byte{0xff, 0xfe, 0x00, 0x01}, 0o644))

	store := vectorstore.NewMemoryStore()
	retrieval := gateway.NewRetrievalGateway(store, embedding.NewHashingProvider(64), nil,
		gateway.RetrievalOptions{MinScore: -1}, logger.NewNopLogger())
	collection := gateway.CollectionKey("course-1")

	err := ingestFiles(context.Background(), retrieval, config.DefaultTuning().Chunking, collection, []string{notes, binary})
	require.Error(t, err, "the binary file cannot be extracted")
	assert.Contains(t, err.Error(), "1 files failed")

	found := retrieval.Query(context.Background(), collection, "while loop condition", 2)
	require.NotEmpty(t, found)
	assert.Equal(t, "loops", found[0].SourceKey)
}
