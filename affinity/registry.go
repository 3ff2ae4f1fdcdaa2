// Package affinity deterministically routes hash keys to live peer
// workers of one logical session. The registry keeps the locally known
// membership as a sorted snapshot and maps a key to exactly one worker by
// stable hash modulo membership size.
//
// The mapping is a pure function of the local snapshot, not a coordinated
// hash ring: two processes agree on a key's worker only while their
// membership views are identical. Callers needing strict agreement must
// let membership updates propagate before relying on Resolve.
package affinity

import (
	"sort"
	"sync"
	"sync/atomic"
)

// WorkerHandle identifies one peer worker process. Identity and sort
// order are on ID; Addr is carried for the caller's benefit and does not
// participate in identity.
type WorkerHandle struct {
	ID   string `json:"id"`
	Addr string `json:"addr,omitempty"`
}

// Registry tracks the live peer workers of one session and routes hash
// keys to them. Mutations rebuild an immutable sorted snapshot under a
// mutex; reads go through an atomic pointer and never lock, so they never
// observe a torn membership set.
//
// A Registry is private to one session. Lifecycle of the workers
// themselves is driven entirely by external join/leave notifications.
type Registry struct {
	mu     sync.Mutex
	byID   map[string]WorkerHandle
	sorted atomic.Pointer[[]WorkerHandle]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{byID: make(map[string]WorkerHandle)}
	r.sorted.Store(&[]WorkerHandle{})
	return r
}

// Add inserts a worker keyed by its ID and rebuilds the sorted snapshot.
// Re-adding a known ID replaces the stored handle.
func (r *Registry) Add(h WorkerHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[h.ID] = h
	r.rebuild()
}

// Remove deletes a worker and rebuilds the sorted snapshot. Removing an
// unknown worker is a no-op, not an error.
func (r *Registry) Remove(h WorkerHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, known := r.byID[h.ID]; !known {
		return
	}
	delete(r.byID, h.ID)
	r.rebuild()
}

// Clear removes all workers.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]WorkerHandle)
	r.rebuild()
}

// rebuild recomputes the sorted snapshot from byID. Callers must hold mu.
func (r *Registry) rebuild() {
	sorted := make([]WorkerHandle, 0, len(r.byID))
	for _, h := range r.byID {
		sorted = append(sorted, h)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	r.sorted.Store(&sorted)
}

// Snapshot returns the current membership in sorted order. The returned
// slice is shared and must not be modified.
func (r *Registry) Snapshot() []WorkerHandle {
	return *r.sorted.Load()
}

// Len returns the number of registered workers.
func (r *Registry) Len() int {
	return len(*r.sorted.Load())
}

// Others returns the registered workers other than the one given,
// preserving sort order. Used to fan a message out to every peer except
// the caller.
func (r *Registry) Others(h WorkerHandle) []WorkerHandle {
	snapshot := *r.sorted.Load()
	others := make([]WorkerHandle, 0, len(snapshot))
	for _, w := range snapshot {
		if w.ID != h.ID {
			others = append(others, w)
		}
	}
	return others
}

// Resolve maps a hash key to the worker responsible for it, usually to
// preserve per-entity ordering of work across the session's workers. It
// returns false when no workers are registered; an empty registry is an
// expected transient state, not an error.
func (r *Registry) Resolve(hashKey string) (WorkerHandle, bool) {
	snapshot := *r.sorted.Load()
	if len(snapshot) == 0 {
		return WorkerHandle{}, false
	}
	return snapshot[StableHash(hashKey)%uint64(len(snapshot))], true
}

// OnWorkerJoined implements the membership notification interface.
func (r *Registry) OnWorkerJoined(h WorkerHandle) {
	r.Add(h)
}

// OnWorkerLeft implements the membership notification interface.
func (r *Registry) OnWorkerLeft(h WorkerHandle) {
	r.Remove(h)
}
