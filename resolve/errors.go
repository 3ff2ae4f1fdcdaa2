package resolve

import "errors"

// ErrLookupTimeout is returned when the owner does not answer within the
// configured ask timeout. Retryable.
var ErrLookupTimeout = errors.New("lookup timed out")

// ErrTransport is returned when the lookup channel fails before an answer
// arrives. Retryable, same policy as a timeout.
var ErrTransport = errors.New("lookup transport failure")

// ErrMalformedResponse is returned when the owner's answer is neither a
// recognized payload nor an explicit not-found signal. Non-retryable: it
// indicates a protocol mismatch between this process and the owner, and is
// never downgraded to a nonexistent entry.
var ErrMalformedResponse = errors.New("malformed lookup response")

// ErrUnknownResourceType is returned when no strategy is registered for a
// key's resource type.
var ErrUnknownResourceType = errors.New("unknown resource type")

// ErrCacheClosed is returned when operations are performed on a closed
// cache.
var ErrCacheClosed = errors.New("resolution cache is closed")

// ErrInvalidOptions is returned when cache options are invalid.
var ErrInvalidOptions = errors.New("invalid resolution cache options")
