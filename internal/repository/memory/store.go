// Package memory holds go-cache backed repositories for DB-less runs and tests.
// Records are stored as deep copies so callers never share state with the store.
package memory

import (
	"sync"

	"github.com/patrickmn/go-cache"
)

// Store is the shared backing cache. Entries never expire.
type Store struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewStore() *Store {
	return &Store{cache: cache.New(cache.NoExpiration, 0)}
}

func key(kind, id string) string {
	return kind + ":" + id
}
