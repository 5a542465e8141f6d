// Package cache implements the cache-aside layer for extraction results: a
// small key-value store abstraction, its Redis and file-backed
// implementations, and a gateway that absorbs every store fault.
package cache

import "context"

// KeyPrefix is the fixed namespace for persisted race winners.
const KeyPrefix = "manifest:"

// Key returns the cache key for a video's extraction result.
func Key(videoID string) string {
	return KeyPrefix + videoID
}

// Store is the minimal key-value contract the gateway builds on. Values are
// opaque bytes; expiry is the store's responsibility.
type Store interface {
	// Name identifies the backend for stats and logs.
	Name() string

	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores the value with the given time-to-live in seconds.
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error

	// Delete removes the key. Removing an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// CountPrefix returns the number of live keys under the prefix.
	CountPrefix(ctx context.Context, prefix string) (int, error)

	// Ping reports store reachability.
	Ping(ctx context.Context) error
}
