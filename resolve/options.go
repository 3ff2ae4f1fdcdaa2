package resolve

import "time"

// Options configures a resolution Cache instance.
type Options struct {
	// AskTimeout bounds every remote lookup issued on a cache miss.
	AskTimeout time.Duration

	// MaxEntries is the maximum number of cached entries. For the LFU
	// engine it feeds the cost/counter sizing; for the LRU engine it is
	// the hard size limit.
	MaxEntries int

	// TTL is the lifetime of a cached entry (LFU engine only). Zero means
	// entries never expire; they only leave via eviction or invalidation.
	TTL time.Duration

	// StoreFactory creates the entry-store engine.
	// If nil, defaults to the LFU (ristretto) factory.
	StoreFactory EntryStoreFactory

	// Logger is the logger for debug logging.
	// If nil, defaults to no-op logger.
	Logger Logger

	// DebugMode enables debug logging.
	DebugMode bool
}

// DefaultOptions returns default cache options.
func DefaultOptions() Options {
	return Options{
		AskTimeout:   5 * time.Second,
		MaxEntries:   10000,
		TTL:          0,
		StoreFactory: nil, // Will default to LFU in NewCache()
		Logger:       nil, // Will default to no-op in NewCache()
		DebugMode:    false,
	}
}

// Validate validates the options.
func (o *Options) Validate() error {
	if o.AskTimeout <= 0 {
		return ErrInvalidOptions
	}
	if o.MaxEntries <= 0 {
		return ErrInvalidOptions
	}
	if o.TTL < 0 {
		return ErrInvalidOptions
	}
	return nil
}
