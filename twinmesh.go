// Package twinmesh is distributed digital-twin middleware: cluster
// processes resolve entity state through an asynchronous load-through
// cache and route per-entity work to session workers by stable hashing
// over the known membership.
package twinmesh

import (
	"context"
	"time"

	"github.com/twinmesh/twinmesh/affinity"
	"github.com/twinmesh/twinmesh/channel"
	"github.com/twinmesh/twinmesh/resolve"
)

// Config configures one twinmesh node.
type Config struct {
	// NodeID is the unique identifier for this process. It namespaces
	// reply channels and identifies this worker in the session.
	NodeID string

	// AdvertiseAddr is the address other workers reach this node on.
	// Carried in the node's worker handle; may be empty.
	AdvertiseAddr string

	// AskTimeout bounds every remote lookup issued on a cache miss.
	AskTimeout time.Duration

	// MaxEntries is the maximum number of cached resolution entries.
	MaxEntries int

	// TTL is the lifetime of a cached entry. Zero disables expiry.
	TTL time.Duration

	// StoreFactory creates the cache's entry-store engine.
	// If nil, defaults to the LFU (ristretto) factory.
	StoreFactory resolve.EntryStoreFactory

	// Strategies maps each supported resource type to its lookup
	// strategy. Must not be empty.
	Strategies map[string]resolve.Strategy

	// RedisAddr is the Redis server address (e.g., "localhost:6379").
	RedisAddr string

	// RedisPassword is the optional Redis password.
	RedisPassword string

	// RedisDB is the Redis database number.
	RedisDB int

	// ChannelPrefix namespaces the lookup request/reply channels.
	ChannelPrefix string

	// MembershipChannel is the pub/sub channel for worker join/leave
	// events.
	MembershipChannel string

	// Logger is the logger for debug logging.
	// If nil, defaults to no-op logger.
	Logger resolve.Logger

	// DebugMode enables debug logging.
	DebugMode bool

	// OnError is called when an error occurs in background operations.
	OnError func(error)
}

// DefaultConfig returns default node configuration.
func DefaultConfig() Config {
	return Config{
		NodeID:            "default-node",
		AskTimeout:        5 * time.Second,
		MaxEntries:        10000,
		RedisAddr:         "localhost:6379",
		RedisDB:           0,
		ChannelPrefix:     "twinmesh:lookup",
		MembershipChannel: "twinmesh:membership",
		Logger:            nil, // Will default to no-op in New()
		DebugMode:         false,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return ErrInvalidConfig
	}
	if len(c.Strategies) == 0 {
		return ErrInvalidConfig
	}
	if c.RedisAddr == "" {
		return ErrInvalidConfig
	}
	if c.ChannelPrefix == "" || c.MembershipChannel == "" {
		return ErrInvalidConfig
	}
	return nil
}

// Node wires the resolution cache, the affinity registry, and their Redis
// collaborators together for one process.
type Node struct {
	// Cache resolves entity keys to their authoritative targets.
	Cache *resolve.Cache

	// Registry routes hash keys to the session's live workers.
	Registry *affinity.Registry

	channel *channel.RedisChannel
	feed    *channel.MembershipFeed
	cfg     Config
}

// New creates a twinmesh node: a lookup channel, the resolution cache on
// top of it, the affinity registry, and the membership feed that drives
// the registry.
func New(cfg Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ch, err := channel.NewRedisChannel(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ChannelPrefix, cfg.NodeID)
	if err != nil {
		return nil, err
	}

	opts := resolve.Options{
		AskTimeout:   cfg.AskTimeout,
		MaxEntries:   cfg.MaxEntries,
		TTL:          cfg.TTL,
		StoreFactory: cfg.StoreFactory,
		Logger:       cfg.Logger,
		DebugMode:    cfg.DebugMode,
	}

	loader := resolve.NewLoader(ch, cfg.AskTimeout, cfg.Strategies, cfg.Logger)
	cache, err := resolve.NewCache(loader, opts)
	if err != nil {
		ch.Close()
		return nil, err
	}

	registry := affinity.NewRegistry()
	feed := channel.NewMembershipFeed(ch.Client(), cfg.MembershipChannel, registry, cfg.OnError)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.AskTimeout)
	defer cancel()

	if err := feed.Subscribe(ctx); err != nil {
		cache.Close()
		ch.Close()
		return nil, err
	}

	return &Node{
		Cache:    cache,
		Registry: registry,
		channel:  ch,
		feed:     feed,
		cfg:      cfg,
	}, nil
}

// Handle returns this node's worker handle.
func (n *Node) Handle() affinity.WorkerHandle {
	return affinity.WorkerHandle{ID: n.cfg.NodeID, Addr: n.cfg.AdvertiseAddr}
}

// Join announces this node to the session. The local registry learns of
// the join through the feed like every other worker.
func (n *Node) Join(ctx context.Context) error {
	return n.feed.Announce(ctx, channel.MembershipEvent{
		Action: channel.ActionJoin,
		Worker: n.Handle(),
		Sender: n.cfg.NodeID,
	})
}

// Leave announces this node's departure from the session.
func (n *Node) Leave(ctx context.Context) error {
	return n.feed.Announce(ctx, channel.MembershipEvent{
		Action: channel.ActionLeave,
		Worker: n.Handle(),
		Sender: n.cfg.NodeID,
	})
}

// Serve answers lookup requests for a partition this node owns.
func (n *Node) Serve(ctx context.Context, partitionKey string, handler channel.Handler) error {
	return n.channel.Serve(ctx, partitionKey, handler)
}

// Close releases the node's resources.
func (n *Node) Close() error {
	var errs []error

	if err := n.feed.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := n.Cache.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := n.channel.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
