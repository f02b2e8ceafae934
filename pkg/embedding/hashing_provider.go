package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashingProvider embeds text locally with signed feature hashing over word
// unigrams and bigrams. It needs no network and is deterministic, which makes
// it the embedder for offline runs and tests.
type HashingProvider struct {
	Dimensions int
}

func NewHashingProvider(dimensions int) *HashingProvider {
	if dimensions <= 0 {
		dimensions = Dimensions
	}
	return &HashingProvider{Dimensions: dimensions}
}

func (p *HashingProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, p.Dimensions)
	tokens := tokenize(text)
	for i, tok := range tokens {
		p.add(vec, tok, 1.0)
		if i > 0 {
			p.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	return &EmbeddingResponse{
		Embedding: EmbeddingResponseEmbedding{Values: normalizeVector(vec)},
	}, nil
}

func (p *HashingProvider) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(p.Dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
