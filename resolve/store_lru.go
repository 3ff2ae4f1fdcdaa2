package resolve

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/twinmesh/twinmesh/types"
)

// LRUStoreFactory creates LRU entry stores.
type LRUStoreFactory struct {
	maxEntries int
}

// NewLRUStoreFactory creates a new LRU store factory.
func NewLRUStoreFactory(maxEntries int) EntryStoreFactory {
	return &LRUStoreFactory{maxEntries: maxEntries}
}

// Create creates a new LRU store instance.
func (f *LRUStoreFactory) Create() (EntryStore, error) {
	return NewLRUStore(f.maxEntries)
}

// LRUStore is an entry store backed by golang-lru. Sets are synchronous,
// which makes it the engine of choice for tests and for callers that
// cannot tolerate ristretto's buffered admission.
type LRUStore struct {
	cache      *lru.Cache[string, types.CacheEntry]
	hits       int64
	misses     int64
	evictions  int64
	maxEntries int64
}

// NewLRUStore creates a new LRU-backed entry store.
func NewLRUStore(maxEntries int) (*LRUStore, error) {
	s := &LRUStore{maxEntries: int64(maxEntries)}

	cache, err := lru.NewWithEvict[string, types.CacheEntry](maxEntries, func(string, types.CacheEntry) {
		atomic.AddInt64(&s.evictions, 1)
	})
	if err != nil {
		return nil, err
	}

	s.cache = cache
	return s, nil
}

// Get retrieves an entry from the store.
func (s *LRUStore) Get(key string) (types.CacheEntry, bool) {
	entry, found := s.cache.Get(key)
	if found {
		atomic.AddInt64(&s.hits, 1)
	} else {
		atomic.AddInt64(&s.misses, 1)
	}
	return entry, found
}

// Set stores an entry.
func (s *LRUStore) Set(key string, entry types.CacheEntry) bool {
	s.cache.Add(key, entry)
	return true
}

// Delete removes an entry from the store.
func (s *LRUStore) Delete(key string) {
	s.cache.Remove(key)
}

// Clear removes all entries from the store.
func (s *LRUStore) Clear() {
	s.cache.Purge()
}

// Close closes the store.
func (s *LRUStore) Close() {
	s.cache.Purge()
}

// Metrics returns store metrics.
func (s *LRUStore) Metrics() StoreMetrics {
	return StoreMetrics{
		Hits:      atomic.LoadInt64(&s.hits),
		Misses:    atomic.LoadInt64(&s.misses),
		Evictions: atomic.LoadInt64(&s.evictions),
		Size:      s.maxEntries,
	}
}
