// Package cache stores raw provider responses for a short time so that
// repeated refreshes of the same artifact do not re-fetch unchanged data.
//
// Four backends implement [Cache]:
//   - [NullCache] disables caching
//   - [FileCache] keeps entries on local disk for CLI runs
//   - [LRUCache] keeps a bounded set of entries in process memory
//   - [RedisCache] shares entries between workers
//
// Keys are opaque strings; callers usually pass [Hash] of a prefixed URL.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the stored value and true, or false on a miss or expiry.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl <= 0 means the entry does not expire.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
