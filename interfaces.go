package twinmesh

import (
	"github.com/twinmesh/twinmesh/affinity"
	"github.com/twinmesh/twinmesh/resolve"
	"github.com/twinmesh/twinmesh/types"
)

// Logger is an alias for resolve.Logger.
type Logger = resolve.Logger

// Strategy is an alias for resolve.Strategy.
type Strategy = resolve.Strategy

// LookupChannel is an alias for resolve.LookupChannel.
type LookupChannel = resolve.LookupChannel

// EntryStore is an alias for resolve.EntryStore.
type EntryStore = resolve.EntryStore

// EntryStoreFactory is an alias for resolve.EntryStoreFactory.
type EntryStoreFactory = resolve.EntryStoreFactory

// ResolutionKey is an alias for types.ResolutionKey.
type ResolutionKey = types.ResolutionKey

// CacheEntry is an alias for types.CacheEntry.
type CacheEntry = types.CacheEntry

// WorkerHandle is an alias for affinity.WorkerHandle.
type WorkerHandle = affinity.WorkerHandle

// Stats is an alias for resolve.Stats.
type Stats = resolve.Stats
