package vectorstore

import (
	"context"
	"sort"
	"sync"
)

type collection struct {
	order   []string // source keys in first-indexed order
	sources map[string][]Record
}

// MemoryStore keeps chunks in process. Used for "memory://" deployments and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*collection)}
}

func (s *MemoryStore) Index(ctx context.Context, name, sourceKey string, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &collection{sources: make(map[string][]Record)}
		s.collections[name] = c
	}
	if _, seen := c.sources[sourceKey]; !seen {
		c.order = append(c.order, sourceKey)
	}

	copied := make([]Record, len(records))
	copy(copied, records)
	c.sources[sourceKey] = copied
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, name string, embedding []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok || k <= 0 {
		return nil, nil
	}

	var matches []Match
	for _, key := range c.order {
		for _, r := range c.sources[key] {
			matches = append(matches, Match{
				ChunkID:   r.ChunkID,
				SourceKey: r.SourceKey,
				Index:     r.Index,
				Text:      r.Text,
				Score:     cosineSimilarity(embedding, r.Embedding),
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Len reports the number of records stored for a collection.
func (s *MemoryStore) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return 0
	}
	n := 0
	for _, records := range c.sources {
		n += len(records)
	}
	return n
}
