package twinmesh

import (
	"errors"

	"github.com/twinmesh/twinmesh/resolve"
)

// ErrInvalidConfig is returned when the node configuration is invalid.
var ErrInvalidConfig = errors.New("invalid node configuration")

// ErrLookupTimeout is returned when an owner does not answer in time.
var ErrLookupTimeout = resolve.ErrLookupTimeout

// ErrTransport is returned when the lookup channel fails.
var ErrTransport = resolve.ErrTransport

// ErrMalformedResponse is returned when an owner's answer cannot be
// interpreted. Non-retryable.
var ErrMalformedResponse = resolve.ErrMalformedResponse

// ErrCacheClosed is returned when operations are performed on a closed
// cache.
var ErrCacheClosed = resolve.ErrCacheClosed
