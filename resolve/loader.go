package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twinmesh/twinmesh/types"
)

// LookupChannel sends a typed request to the current owner of an entity
// and returns its classified answer. partitionKey selects the owning
// shard/partition, usually the entity ID. Implementations must honor the
// context deadline.
type LookupChannel interface {
	Request(ctx context.Context, partitionKey string, req types.LookupRequest) (types.LookupResult, error)
}

// Strategy maps one resource type onto the lookup protocol: how to build
// the owner request for a key, and how to turn the owner's descriptor into
// a cache entry. New resource types register a strategy instead of touching
// the loader.
type Strategy struct {
	// BuildRequest constructs the owner request for a key.
	BuildRequest func(key types.ResolutionKey) types.LookupRequest

	// Interpret turns a successful lookup descriptor into a cache entry.
	// It returns ErrMalformedResponse (wrapped, with a reason) when the
	// descriptor lacks required fields.
	Interpret func(key types.ResolutionKey, desc *types.EntityDescriptor) (types.CacheEntry, error)
}

// NewTwinStrategy creates the strategy for digital-twin entities. A twin
// carrying its own access-control data resolves to itself; a twin
// delegating to a policy resolves to that policy's key under
// policyResourceType. The delegation is re-derived on every load, never
// assumed stable.
func NewTwinStrategy(resourceType, policyResourceType string) Strategy {
	return Strategy{
		BuildRequest: func(key types.ResolutionKey) types.LookupRequest {
			return types.LookupRequest{
				Command:      "retrieve",
				ResourceType: key.ResourceType,
				EntityID:     key.EntityID,
			}
		},
		Interpret: func(key types.ResolutionKey, desc *types.EntityDescriptor) (types.CacheEntry, error) {
			if desc.EntityID == "" {
				return types.CacheEntry{}, fmt.Errorf("%w: no entity id", ErrMalformedResponse)
			}
			if desc.Revision <= 0 {
				return types.CacheEntry{}, fmt.Errorf("%w: no accessible revision", ErrMalformedResponse)
			}
			if desc.HasACL {
				target := types.NewResolutionKey(resourceType, desc.EntityID)
				return types.ExistentEntry(desc.Revision, target), nil
			}
			if desc.PolicyID != "" {
				target := types.NewResolutionKey(policyResourceType, desc.PolicyID)
				return types.ExistentEntry(desc.Revision, target), nil
			}
			return types.CacheEntry{}, fmt.Errorf("%w: no policy or ACL", ErrMalformedResponse)
		},
	}
}

// NewPolicyStrategy creates the strategy for policy entities. A policy is
// always its own access-control authority.
func NewPolicyStrategy(resourceType string) Strategy {
	return Strategy{
		BuildRequest: func(key types.ResolutionKey) types.LookupRequest {
			return types.LookupRequest{
				Command:      "retrieve",
				ResourceType: key.ResourceType,
				EntityID:     key.EntityID,
			}
		},
		Interpret: func(key types.ResolutionKey, desc *types.EntityDescriptor) (types.CacheEntry, error) {
			if desc.EntityID == "" {
				return types.CacheEntry{}, fmt.Errorf("%w: no entity id", ErrMalformedResponse)
			}
			if desc.Revision <= 0 {
				return types.CacheEntry{}, fmt.Errorf("%w: no accessible revision", ErrMalformedResponse)
			}
			target := types.NewResolutionKey(resourceType, desc.EntityID)
			return types.ExistentEntry(desc.Revision, target), nil
		},
	}
}

// Loader resolves cache misses by asking the owning node over a
// LookupChannel with a bounded timeout. It is stateless and reentrant;
// concurrent loads for different keys proceed independently.
type Loader struct {
	channel    LookupChannel
	strategies map[string]Strategy
	askTimeout time.Duration
	logger     Logger
}

// NewLoader creates a loader over the given channel. strategies maps each
// supported resource type to its request/interpret pair.
func NewLoader(ch LookupChannel, askTimeout time.Duration, strategies map[string]Strategy, logger Logger) *Loader {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &Loader{
		channel:    ch,
		strategies: strategies,
		askTimeout: askTimeout,
		logger:     logger,
	}
}

// Load resolves a single key by asking its owner. It returns
// ErrUnknownResourceType for unregistered types, ErrLookupTimeout when the
// owner does not answer in time, ErrTransport for channel failures, and
// ErrMalformedResponse when the answer cannot be interpreted.
func (l *Loader) Load(ctx context.Context, key types.ResolutionKey) (types.CacheEntry, error) {
	strategy, ok := l.strategies[key.ResourceType]
	if !ok {
		return types.CacheEntry{}, fmt.Errorf("%w: %q", ErrUnknownResourceType, key.ResourceType)
	}

	ctx, cancel := context.WithTimeout(ctx, l.askTimeout)
	defer cancel()

	result, err := l.channel.Request(ctx, key.EntityID, strategy.BuildRequest(key))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return types.CacheEntry{}, fmt.Errorf("%w: no answer for %s within %s", ErrLookupTimeout, key, l.askTimeout)
		}
		return types.CacheEntry{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	switch result.Kind {
	case types.NotFound:
		return types.NonexistentEntry(), nil
	case types.Found:
		if result.Descriptor == nil {
			l.logger.Error("lookup answer has no descriptor", "key", key.String())
			return types.CacheEntry{}, fmt.Errorf("%w: found without descriptor", ErrMalformedResponse)
		}
		entry, err := strategy.Interpret(key, result.Descriptor)
		if err != nil {
			l.logger.Error("lookup answer could not be interpreted", "key", key.String(), "error", err)
			return types.CacheEntry{}, err
		}
		return entry, nil
	default:
		l.logger.Error("lookup answer has unrecognized kind", "key", key.String(), "kind", string(result.Kind))
		return types.CacheEntry{}, fmt.Errorf("%w: unrecognized result kind %q", ErrMalformedResponse, result.Kind)
	}
}
