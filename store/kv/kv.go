// Package kv abstracts the shared coordination store used for instance
// heartbeats, session ownership and cached model snapshots.
//
// The interface deliberately exposes only single-key operations: the backing
// store (Redis in production) guarantees atomicity per key and nothing across
// keys. Callers that perform multi-key update sequences must tolerate racing
// readers observing partial state.
package kv

import (
	"context"
	"time"
)

// Store is the coordination store contract.
//
// Set with a zero TTL stores the value without expiry. SetAdd, SetRemove and
// SetMembers operate on an unordered string set held at key; on Redis they map
// to SADD/SREM/SMEMBERS, which are atomic per call and therefore safe for
// concurrent membership updates from multiple instances.
type Store interface {
	// Get retrieves a value. The second return is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value, overwriting any previous one. ttl of zero means
	// no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// SetAdd adds members to the set at key, creating it if needed.
	SetAdd(ctx context.Context, key string, members ...string) error

	// SetRemove removes members from the set at key.
	SetRemove(ctx context.Context, key string, members ...string) error

	// SetMembers returns all members of the set at key. An absent key
	// yields an empty slice.
	SetMembers(ctx context.Context, key string) ([]string, error)

	// Expire attaches or refreshes a TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	Close() error
}
