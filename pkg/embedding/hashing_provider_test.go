package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestHashingProvider_DeterministicAndNormalized(t *testing.T) {
	p := NewHashingProvider(0)

	first, err := p.Generate(context.Background(), "Variables store values", TaskRetrievalDocument)
	require.NoError(t, err)
	second, err := p.Generate(context.Background(), "Variables store values", TaskRetrievalQuery)
	require.NoError(t, err)

	assert.Len(t, first.Embedding.Values, Dimensions)
	assert.Equal(t, first.Embedding.Values, second.Embedding.Values)
	assert.InDelta(t, 1.0, math.Sqrt(cosine(first.Embedding.Values, first.Embedding.Values)), 1e-5)
}

func TestHashingProvider_SimilarTextScoresHigher(t *testing.T) {
	p := NewHashingProvider(256)
	ctx := context.Background()

	query, _ := p.Generate(ctx, "how do loops repeat code", TaskRetrievalQuery)
	near, _ := p.Generate(ctx, "loops repeat a block of code several times", TaskRetrievalDocument)
	far, _ := p.Generate(ctx, "a dictionary maps keys to values", TaskRetrievalDocument)

	assert.Greater(t,
		cosine(query.Embedding.Values, near.Embedding.Values),
		cosine(query.Embedding.Values, far.Embedding.Values))
}

func TestHashingProvider_EmptyText(t *testing.T) {
	res, err := NewHashingProvider(16).Generate(context.Background(), "  ", TaskRetrievalQuery)
	require.NoError(t, err)
	assert.Len(t, res.Embedding.Values, 16)
}
