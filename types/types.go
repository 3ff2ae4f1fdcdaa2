package types

import "fmt"

// ResolutionKey identifies the resource a caller wants to resolve for
// authorization or consistency purposes. It is immutable and usable as a
// map key.
type ResolutionKey struct {
	ResourceType string `json:"resourceType"`
	EntityID     string `json:"entityId"`
}

// NewResolutionKey creates a resolution key for the given resource type and
// entity ID.
func NewResolutionKey(resourceType, entityID string) ResolutionKey {
	return ResolutionKey{ResourceType: resourceType, EntityID: entityID}
}

// String renders the key as "resourceType:entityId". The rendered form is
// used as the cache key and as input to the stable hash.
func (k ResolutionKey) String() string {
	return fmt.Sprintf("%s:%s", k.ResourceType, k.EntityID)
}

// IsZero reports whether the key has no resource type and no entity ID.
func (k ResolutionKey) IsZero() bool {
	return k.ResourceType == "" && k.EntityID == ""
}

// CacheEntry is the result of resolving a key: either the authoritative
// target with the revision observed at lookup time, or a confirmed-absent
// marker. Entries are immutable; the cache replaces them wholesale and
// never mutates one in place.
type CacheEntry struct {
	// Exists is true for a resolved entry and false for confirmed absence.
	Exists bool `json:"exists"`

	// Revision is the version stamp of the underlying resource at lookup
	// time. Advisory only: the cache never revalidates it.
	Revision int64 `json:"revision,omitempty"`

	// Target is the authoritative resource for the looked-up key. It may
	// differ from the lookup key when the entity delegates access control
	// to another resource.
	Target ResolutionKey `json:"target,omitempty"`
}

// ExistentEntry creates an entry for a resolved resource.
func ExistentEntry(revision int64, target ResolutionKey) CacheEntry {
	return CacheEntry{Exists: true, Revision: revision, Target: target}
}

// NonexistentEntry creates an entry marking the resource as confirmed
// absent. Absence is a valid terminal resolution, not an error.
func NonexistentEntry() CacheEntry {
	return CacheEntry{}
}

// ResultKind classifies a lookup response.
type ResultKind string

const (
	// Found means the owner returned a payload describing the entity.
	Found ResultKind = "found"

	// NotFound means the owner explicitly signalled that the entity does
	// not exist. Distinct from a transport failure or an unparseable
	// response.
	NotFound ResultKind = "not-found"
)

// EntityDescriptor is the generic payload shape returned by an owner for a
// successful lookup. Per-resource-type interpreters decide how a
// descriptor maps to a cache entry.
type EntityDescriptor struct {
	// EntityID is the ID of the described entity.
	EntityID string `json:"entityId"`

	// Revision is the entity's revision at the time of the lookup.
	// Revisions start at 1; zero means the owner did not report one.
	Revision int64 `json:"revision"`

	// HasACL is true when the entity carries its own access-control data.
	HasACL bool `json:"hasAcl,omitempty"`

	// PolicyID references the policy the entity delegates access control
	// to. Empty when the entity does not delegate.
	PolicyID string `json:"policyId,omitempty"`
}

// LookupRequest asks the owner of an entity to describe it.
type LookupRequest struct {
	Command      string `json:"command"`
	ResourceType string `json:"resourceType"`
	EntityID     string `json:"entityId"`
}

// LookupResult is the three-way classification of an owner's answer:
// found-with-descriptor or explicit not-found. Transport failures surface
// as Go errors from the channel, not as a result kind.
type LookupResult struct {
	Kind       ResultKind        `json:"kind"`
	Descriptor *EntityDescriptor `json:"descriptor,omitempty"`
}

// FoundResult creates a successful lookup result carrying a descriptor.
func FoundResult(descriptor *EntityDescriptor) LookupResult {
	return LookupResult{Kind: Found, Descriptor: descriptor}
}

// NotFoundResult creates an explicit not-found result.
func NotFoundResult() LookupResult {
	return LookupResult{Kind: NotFound}
}
