package resolve

import (
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/twinmesh/twinmesh/types"
)

// LFUStoreFactory creates ristretto-backed entry stores.
type LFUStoreFactory struct {
	maxEntries int
	ttl        time.Duration
}

// NewLFUStoreFactory creates a new ristretto store factory. ttl of zero
// means entries never expire.
func NewLFUStoreFactory(maxEntries int, ttl time.Duration) EntryStoreFactory {
	return &LFUStoreFactory{maxEntries: maxEntries, ttl: ttl}
}

// Create creates a new ristretto store instance.
func (f *LFUStoreFactory) Create() (EntryStore, error) {
	return NewLFUStore(f.maxEntries, f.ttl)
}

// LFUStore is an entry store backed by ristretto's TinyLFU admission.
type LFUStore struct {
	cache     *ristretto.Cache
	ttl       time.Duration
	hits      int64
	misses    int64
	evictions int64
}

// NewLFUStore creates a new ristretto-backed entry store.
func NewLFUStore(maxEntries int, ttl time.Duration) (*LFUStore, error) {
	s := &LFUStore{ttl: ttl}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        int64(maxEntries) * 10,
		MaxCost:            int64(maxEntries),
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict: func(item *ristretto.Item) {
			atomic.AddInt64(&s.evictions, 1)
		},
	})
	if err != nil {
		return nil, err
	}

	s.cache = cache
	return s, nil
}

// Get retrieves an entry from the store.
func (s *LFUStore) Get(key string) (types.CacheEntry, bool) {
	value, found := s.cache.Get(key)
	if !found {
		atomic.AddInt64(&s.misses, 1)
		return types.CacheEntry{}, false
	}
	atomic.AddInt64(&s.hits, 1)
	return value.(types.CacheEntry), true
}

// Set stores an entry. Admission is asynchronous; a rejected entry only
// costs a future reload.
func (s *LFUStore) Set(key string, entry types.CacheEntry) bool {
	if s.ttl > 0 {
		return s.cache.SetWithTTL(key, entry, 1, s.ttl)
	}
	return s.cache.Set(key, entry, 1)
}

// Delete removes an entry from the store.
func (s *LFUStore) Delete(key string) {
	s.cache.Del(key)
}

// Clear removes all entries from the store.
func (s *LFUStore) Clear() {
	s.cache.Clear()
}

// Close closes the store.
func (s *LFUStore) Close() {
	s.cache.Close()
}

// Metrics returns store metrics.
func (s *LFUStore) Metrics() StoreMetrics {
	return StoreMetrics{
		Hits:      atomic.LoadInt64(&s.hits),
		Misses:    atomic.LoadInt64(&s.misses),
		Evictions: atomic.LoadInt64(&s.evictions),
		Size:      int64(s.cache.MaxCost()),
	}
}

// Wait blocks until buffered sets have been applied. Intended for tests
// and shutdown paths that need deterministic visibility.
func (s *LFUStore) Wait() {
	s.cache.Wait()
}
