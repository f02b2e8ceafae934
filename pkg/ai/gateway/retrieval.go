package gateway

import (
	"ai-tutoring-be/internal/pkg/logger"
	"ai-tutoring-be/pkg/embedding"
	"ai-tutoring-be/pkg/llm"
	"ai-tutoring-be/pkg/vectorstore"
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/blake2b"
)

const retrievalModule = "RetrievalGateway"

// Snippet is one retrieved chunk with its similarity score.
type Snippet struct {
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	SourceKey  string  `json:"source_key"`
	ChunkIndex int     `json:"chunk_index"`
}

// RetrievalContext is ordered by descending score. Empty means "no augmentation".
type RetrievalContext []Snippet

// Texts returns the snippet texts in order.
func (rc RetrievalContext) Texts() []string {
	texts := make([]string, len(rc))
	for i, s := range rc {
		texts[i] = s.Text
	}
	return texts
}

// CollectionKey names the collection for an owning scope (course or activity).
func CollectionKey(scopeID string) string {
	return "scope:" + scopeID
}

// ChunkID is deterministic in (collection, sourceKey, index) so re-indexing
// overwrites, and the same source key in another collection never shares an id.
func ChunkID(collection, sourceKey string, index int) string {
	sum := blake2b.Sum256([]byte(collection + "\x00" + sourceKey + "\x00" + strconv.Itoa(index)))
	return hex.EncodeToString(sum[:16])
}

// RetrievalGateway is fail-open on Query: failures come back as an empty
// context and a warning log, never as an error.
type RetrievalGateway interface {
	// Index replaces every chunk previously indexed for sourceKey in collection.
	Index(ctx context.Context, collection, sourceKey string, chunks []string) (int, error)
	Query(ctx context.Context, collection, text string, k int) RetrievalContext
	Ready() error
}

type RetrievalOptions struct {
	MinScore float64
	CacheTTL time.Duration
}

type retrievalGateway struct {
	store       vectorstore.Store
	embedder    embedding.EmbeddingProvider
	embedderErr error
	opts        RetrievalOptions
	cache       *cache.Cache
	logger      logger.ILogger
}

// NewRetrievalGateway wires an embedder to a store. embedderErr is the
// embedder's construction error, if any.
func NewRetrievalGateway(store vectorstore.Store, embedder embedding.EmbeddingProvider, embedderErr error, opts RetrievalOptions, log logger.ILogger) RetrievalGateway {
	if embedder == nil && embedderErr == nil {
		embedderErr = &llm.ErrConfiguration{Provider: "embedding", Missing: []string{"EMBEDDING_PROVIDER"}}
	}
	if store == nil && embedderErr == nil {
		embedderErr = &llm.ErrConfiguration{Provider: "vector store", Missing: []string{"VECTOR_STORE_URL"}}
	}

	var c *cache.Cache
	if opts.CacheTTL > 0 {
		c = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}

	return &retrievalGateway{
		store:       store,
		embedder:    embedder,
		embedderErr: embedderErr,
		opts:        opts,
		cache:       c,
		logger:      log,
	}
}

func (g *retrievalGateway) Ready() error {
	return g.embedderErr
}

func (g *retrievalGateway) Index(ctx context.Context, collection, sourceKey string, chunks []string) (int, error) {
	if g.embedderErr != nil {
		return 0, g.embedderErr
	}

	ctx, span := otel.Tracer("ai-tutoring-be/gateway").Start(ctx, "RetrievalGateway.Index")
	defer span.End()
	span.SetAttributes(
		attribute.String("retrieval.collection", collection),
		attribute.Int("retrieval.chunks", len(chunks)),
	)

	records := make([]vectorstore.Record, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		res, err := g.embedder.Generate(ctx, chunk, embedding.TaskRetrievalDocument)
		if err != nil {
			return 0, &ErrRetrievalUnavailable{Collection: collection, Err: fmt.Errorf("embed chunk %d: %w", i, err)}
		}
		records = append(records, vectorstore.Record{
			ChunkID:   ChunkID(collection, sourceKey, i),
			SourceKey: sourceKey,
			Index:     i,
			Text:      chunk,
			Embedding: res.Embedding.Values,
		})
	}

	if err := g.store.Index(ctx, collection, sourceKey, records); err != nil {
		return 0, &ErrRetrievalUnavailable{Collection: collection, Err: err}
	}
	g.invalidate(collection)

	g.logger.Info(retrievalModule, "Indexed source", map[string]interface{}{
		"collection": collection,
		"source_key": sourceKey,
		"chunks":     len(records),
	})
	return len(records), nil
}

func (g *retrievalGateway) Query(ctx context.Context, collection, text string, k int) RetrievalContext {
	if k <= 0 || strings.TrimSpace(text) == "" {
		return RetrievalContext{}
	}
	if g.embedderErr != nil {
		g.warn(collection, "Retrieval not configured, continuing without context", g.embedderErr)
		return RetrievalContext{}
	}

	key := cacheKey(collection, k, text)
	if g.cache != nil {
		if hit, ok := g.cache.Get(key); ok {
			return hit.(RetrievalContext)
		}
	}

	ctx, span := otel.Tracer("ai-tutoring-be/gateway").Start(ctx, "RetrievalGateway.Query")
	defer span.End()
	span.SetAttributes(attribute.String("retrieval.collection", collection), attribute.Int("retrieval.k", k))

	res, err := g.embedder.Generate(ctx, text, embedding.TaskRetrievalQuery)
	if err != nil {
		g.warn(collection, "Query embedding failed, continuing without context", err)
		return RetrievalContext{}
	}

	matches, err := g.store.Query(ctx, collection, res.Embedding.Values, k)
	if err != nil {
		g.warn(collection, "Vector store query failed, continuing without context", err)
		return RetrievalContext{}
	}

	out := make(RetrievalContext, 0, len(matches))
	for _, m := range matches {
		if m.Score < g.opts.MinScore {
			continue
		}
		out = append(out, Snippet{Text: m.Text, Score: m.Score, SourceKey: m.SourceKey, ChunkIndex: m.Index})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkIndex < out[j].ChunkIndex
	})

	span.SetAttributes(attribute.Int("retrieval.results", len(out)))
	if g.cache != nil {
		g.cache.SetDefault(key, out)
	}
	return out
}

func (g *retrievalGateway) invalidate(collection string) {
	if g.cache == nil {
		return
	}
	prefix := collection + "\x00"
	for key := range g.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			g.cache.Delete(key)
		}
	}
}

func (g *retrievalGateway) warn(collection, msg string, err error) {
	g.logger.Warn(retrievalModule, msg, map[string]interface{}{
		"collection": collection,
		"error":      err.Error(),
	})
}

func cacheKey(collection string, k int, text string) string {
	return collection + "\x00" + strconv.Itoa(k) + "\x00" + text
}
