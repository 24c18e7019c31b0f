package receipt

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUStore is an in-memory LRU cache that delegates to a backing Store on miss.
type LRUStore struct {
	cache *lru.Cache[string, *Receipt]
	back  Store
}

// NewLRUStore creates an LRU cache with the given capacity that delegates
// to back on cache misses. Capacity below 1 is raised to 1.
func NewLRUStore(size int, back Store) *LRUStore {
	if size < 1 {
		size = 1
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, *Receipt](size)
	return &LRUStore{cache: cache, back: back}
}

// Save caches the receipt and writes it through to the backing store.
func (s *LRUStore) Save(r *Receipt) error {
	s.cache.Add(r.ID, r)
	return s.back.Save(r)
}

// Load checks the cache first. On miss it loads from the backing store and
// promotes the receipt into the cache.
func (s *LRUStore) Load(id string) (*Receipt, error) {
	if r, ok := s.cache.Get(id); ok {
		return r, nil
	}
	r, err := s.back.Load(id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, r)
	return r, nil
}

// Len returns the number of cached receipts.
func (s *LRUStore) Len() int {
	return s.cache.Len()
}
