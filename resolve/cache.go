package resolve

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/twinmesh/twinmesh/types"
)

// EntryLoader resolves a cache miss to an entry. *Loader is the production
// implementation.
type EntryLoader interface {
	Load(ctx context.Context, key types.ResolutionKey) (types.CacheEntry, error)
}

// EntryStore is the engine holding materialized entries. Eviction and
// expiry policy live entirely in the engine.
type EntryStore interface {
	// Get retrieves an entry from the store.
	Get(key string) (types.CacheEntry, bool)

	// Set stores an entry. The return value reports whether the engine
	// accepted it; a dropped set only costs a future reload.
	Set(key string, entry types.CacheEntry) bool

	// Delete removes an entry from the store.
	Delete(key string)

	// Clear removes all entries from the store.
	Clear()

	// Close closes the store.
	Close()

	// Metrics returns store metrics.
	Metrics() StoreMetrics
}

// StoreMetrics represents entry-store metrics.
type StoreMetrics struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int64
}

// EntryStoreFactory creates entry-store instances.
type EntryStoreFactory interface {
	// Create creates a new entry store.
	Create() (EntryStore, error)
}

// Stats represents resolution cache statistics.
type Stats struct {
	Hits         int64
	Misses       int64
	Loads        int64
	LoadFailures int64
}

// Cache is an asynchronous load-through resolution cache. Misses are
// delegated to the loader with at most one in-flight load per key:
// concurrent callers for the same absent key share a single loader
// invocation and its outcome. Failed loads are never stored, so the next
// Get after a failure retries instead of replaying it.
type Cache struct {
	loader EntryLoader
	store  EntryStore
	flight singleflight.Group
	logger Logger
	opts   Options
	closed int32
	stats  Stats
}

// NewCache creates a resolution cache over the given loader.
func NewCache(loader EntryLoader, opts Options) (*Cache, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if opts.StoreFactory == nil {
		opts.StoreFactory = NewLFUStoreFactory(opts.MaxEntries, opts.TTL)
	}
	if opts.Logger == nil {
		opts.Logger = NewNoOpLogger()
	}

	store, err := opts.StoreFactory.Create()
	if err != nil {
		return nil, err
	}

	return &Cache{
		loader: loader,
		store:  store,
		logger: opts.Logger,
		opts:   opts,
	}, nil
}

// Get returns the entry for key, loading it through the loader on a miss.
// The caller blocks while a load is outstanding; all callers waiting on
// the same flight receive the same entry or the same error.
func (c *Cache) Get(ctx context.Context, key types.ResolutionKey) (types.CacheEntry, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return types.CacheEntry{}, ErrCacheClosed
	}

	k := key.String()

	if entry, found := c.store.Get(k); found {
		atomic.AddInt64(&c.stats.Hits, 1)
		if c.opts.DebugMode {
			c.logger.Debug("Get: found in store", "key", k)
		}
		return entry, nil
	}

	atomic.AddInt64(&c.stats.Misses, 1)
	if c.opts.DebugMode {
		c.logger.Debug("Get: miss, joining load flight", "key", k)
	}

	v, err, shared := c.flight.Do(k, func() (any, error) {
		// A racing flight may have populated the store between the miss
		// and this callback.
		if entry, found := c.store.Get(k); found {
			return entry, nil
		}

		atomic.AddInt64(&c.stats.Loads, 1)
		entry, err := c.loader.Load(ctx, key)
		if err != nil {
			atomic.AddInt64(&c.stats.LoadFailures, 1)
			return nil, err
		}

		c.store.Set(k, entry)
		return entry, nil
	})
	if err != nil {
		if c.opts.DebugMode {
			c.logger.Debug("Get: load failed", "key", k, "shared", shared, "error", err)
		}
		return types.CacheEntry{}, err
	}

	if c.opts.DebugMode {
		c.logger.Debug("Get: load completed", "key", k, "shared", shared)
	}
	return v.(types.CacheEntry), nil
}

// Invalidate removes the entry for key. The next Get reloads it.
func (c *Cache) Invalidate(key types.ResolutionKey) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return
	}
	c.store.Delete(key.String())
	if c.opts.DebugMode {
		c.logger.Debug("Invalidate: removed entry", "key", key.String())
	}
}

// InvalidateAll removes every entry.
func (c *Cache) InvalidateAll() {
	if atomic.LoadInt32(&c.closed) != 0 {
		return
	}
	c.store.Clear()
	if c.opts.DebugMode {
		c.logger.Debug("InvalidateAll: cleared store")
	}
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:         atomic.LoadInt64(&c.stats.Hits),
		Misses:       atomic.LoadInt64(&c.stats.Misses),
		Loads:        atomic.LoadInt64(&c.stats.Loads),
		LoadFailures: atomic.LoadInt64(&c.stats.LoadFailures),
	}
}

// StoreMetrics returns the underlying engine's metrics.
func (c *Cache) StoreMetrics() StoreMetrics {
	return c.store.Metrics()
}

// Close closes the cache and its store. Closing twice is a no-op.
func (c *Cache) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.store.Close()
	return nil
}
