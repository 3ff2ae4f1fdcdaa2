package resolve

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/twinmesh/twinmesh/types"
)

// countingLoader counts invocations and answers from a script.
type countingLoader struct {
	calls int64
	delay time.Duration
	err   error
	entry types.CacheEntry
	mu    sync.Mutex
}

func (cl *countingLoader) Load(ctx context.Context, key types.ResolutionKey) (types.CacheEntry, error) {
	atomic.AddInt64(&cl.calls, 1)
	if cl.delay > 0 {
		time.Sleep(cl.delay)
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.err != nil {
		return types.CacheEntry{}, cl.err
	}
	return cl.entry, nil
}

func (cl *countingLoader) setErr(err error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.err = err
}

func testOptions() Options {
	opts := DefaultOptions()
	// The LRU engine sets synchronously, which keeps these tests
	// deterministic.
	opts.StoreFactory = NewLRUStoreFactory(opts.MaxEntries)
	return opts
}

func TestCacheGetLoadsOnMiss(t *testing.T) {
	target := types.NewResolutionKey("twin", "device-1")
	loader := &countingLoader{entry: types.ExistentEntry(4, target)}

	c, err := NewCache(loader, testOptions())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer c.Close()

	entry, err := c.Get(context.Background(), target)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !entry.Exists || entry.Target != target {
		t.Fatalf("Unexpected entry: %+v", entry)
	}
	if n := atomic.LoadInt64(&loader.calls); n != 1 {
		t.Fatalf("Expected 1 load, got %d", n)
	}
}

func TestCacheGetServesHitWithoutLoading(t *testing.T) {
	key := types.NewResolutionKey("twin", "device-1")
	loader := &countingLoader{entry: types.ExistentEntry(4, key)}

	c, err := NewCache(loader, testOptions())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer c.Close()

	for i := 0; i < 5; i++ {
		if _, err := c.Get(context.Background(), key); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}
	if n := atomic.LoadInt64(&loader.calls); n != 1 {
		t.Fatalf("Expected 1 load across repeated gets, got %d", n)
	}

	stats := c.Stats()
	if stats.Hits != 4 || stats.Misses != 1 || stats.Loads != 1 {
		t.Fatalf("Unexpected stats: %+v", stats)
	}
}

func TestCacheAtMostOneConcurrentLoad(t *testing.T) {
	for _, concurrency := range []int{1, 10, 100} {
		key := types.NewResolutionKey("twin", "device-1")
		loader := &countingLoader{
			entry: types.ExistentEntry(4, key),
			delay: 50 * time.Millisecond,
		}

		c, err := NewCache(loader, testOptions())
		if err != nil {
			t.Fatalf("Failed to create cache: %v", err)
		}

		var wg sync.WaitGroup
		entries := make([]types.CacheEntry, concurrency)
		errs := make([]error, concurrency)

		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				entries[i], errs[i] = c.Get(context.Background(), key)
			}(i)
		}
		wg.Wait()

		for i := 0; i < concurrency; i++ {
			if errs[i] != nil {
				t.Fatalf("concurrency=%d: Get %d failed: %v", concurrency, i, errs[i])
			}
			if entries[i] != entries[0] {
				t.Fatalf("concurrency=%d: callers observed different entries", concurrency)
			}
		}
		if n := atomic.LoadInt64(&loader.calls); n != 1 {
			t.Fatalf("concurrency=%d: expected exactly 1 load, got %d", concurrency, n)
		}

		c.Close()
	}
}

func TestCacheFailedLoadIsRetried(t *testing.T) {
	key := types.NewResolutionKey("twin", "device-1")
	loader := &countingLoader{entry: types.ExistentEntry(4, key)}
	loader.setErr(ErrLookupTimeout)

	c, err := NewCache(loader, testOptions())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer c.Close()

	if _, err := c.Get(context.Background(), key); !errors.Is(err, ErrLookupTimeout) {
		t.Fatalf("Expected ErrLookupTimeout, got %v", err)
	}

	// The failure must not be cached: a later Get re-attempts the load.
	loader.setErr(nil)

	entry, err := c.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get after failed load should retry, got %v", err)
	}
	if !entry.Exists {
		t.Fatal("Retried load should return the entry")
	}
	if n := atomic.LoadInt64(&loader.calls); n != 2 {
		t.Fatalf("Expected 2 loads (failure then retry), got %d", n)
	}
}

func TestCacheConcurrentFailuresShareOneLoad(t *testing.T) {
	key := types.NewResolutionKey("twin", "device-1")
	loader := &countingLoader{delay: 50 * time.Millisecond}
	loader.setErr(ErrTransport)

	c, err := NewCache(loader, testOptions())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer c.Close()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Get(context.Background(), key)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrTransport) {
			t.Fatalf("Caller %d: expected shared ErrTransport, got %v", i, err)
		}
	}
	if n := atomic.LoadInt64(&loader.calls); n != 1 {
		t.Fatalf("Expected 1 shared load, got %d", n)
	}
}

func TestCacheInvalidateForcesReload(t *testing.T) {
	key := types.NewResolutionKey("twin", "device-1")
	loader := &countingLoader{entry: types.ExistentEntry(4, key)}

	c, err := NewCache(loader, testOptions())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer c.Close()

	if _, err := c.Get(context.Background(), key); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	c.Invalidate(key)

	if _, err := c.Get(context.Background(), key); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if n := atomic.LoadInt64(&loader.calls); n != 2 {
		t.Fatalf("Expected reload after invalidate, got %d loads", n)
	}
}

func TestCacheInvalidateAll(t *testing.T) {
	loader := &countingLoader{entry: types.ExistentEntry(1, types.NewResolutionKey("twin", "x"))}

	c, err := NewCache(loader, testOptions())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer c.Close()

	keys := []types.ResolutionKey{
		types.NewResolutionKey("twin", "a"),
		types.NewResolutionKey("twin", "b"),
	}
	for _, k := range keys {
		if _, err := c.Get(context.Background(), k); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}

	c.InvalidateAll()

	for _, k := range keys {
		if _, err := c.Get(context.Background(), k); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}
	if n := atomic.LoadInt64(&loader.calls); n != 4 {
		t.Fatalf("Expected all keys reloaded, got %d loads", n)
	}
}

func TestCacheNonexistentEntryIsCached(t *testing.T) {
	key := types.NewResolutionKey("twin", "ghost")
	loader := &countingLoader{entry: types.NonexistentEntry()}

	c, err := NewCache(loader, testOptions())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer c.Close()

	for i := 0; i < 3; i++ {
		entry, err := c.Get(context.Background(), key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if entry.Exists {
			t.Fatal("Entry should be nonexistent")
		}
	}
	// Confirmed absence is a terminal resolution, not a failure to retry.
	if n := atomic.LoadInt64(&loader.calls); n != 1 {
		t.Fatalf("Expected nonexistent entry to be cached, got %d loads", n)
	}
}

func TestCacheClosed(t *testing.T) {
	loader := &countingLoader{entry: types.ExistentEntry(1, types.NewResolutionKey("twin", "x"))}

	c, err := NewCache(loader, testOptions())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Second close should be a no-op, got %v", err)
	}

	if _, err := c.Get(context.Background(), types.NewResolutionKey("twin", "x")); !errors.Is(err, ErrCacheClosed) {
		t.Fatalf("Expected ErrCacheClosed, got %v", err)
	}
}

func TestCacheInvalidOptions(t *testing.T) {
	loader := &countingLoader{}

	opts := testOptions()
	opts.AskTimeout = 0

	if _, err := NewCache(loader, opts); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("Expected ErrInvalidOptions, got %v", err)
	}
}
