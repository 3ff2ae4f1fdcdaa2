package affinity

import "github.com/cespare/xxhash/v2"

// HashVersion identifies the stable hash in use. Every process in a
// cluster must run the same version, otherwise identical keys map to
// different workers. Bump only with a coordinated rollout.
const HashVersion = 1

// StableHash hashes a key with xxhash64. The function is fully specified
// and independent of Go's randomized map hashing, so all processes compute
// identical values for identical keys.
func StableHash(key string) uint64 {
	return xxhash.Sum64String(key)
}
