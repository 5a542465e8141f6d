package cache

import (
	"context"
	"encoding/json"

	"github.com/samber/mo"

	"github.com/hlsgate/hlsgate/extractor"
	"github.com/hlsgate/hlsgate/log"
)

// Gateway is the cache-aside wrapper every caller goes through. The cache is
// an optimization only: a miss, a decode failure and an unreachable store all
// collapse into "not cached", and write failures never propagate. Store
// faults are logged and discarded here so that calling code structurally
// cannot turn them into request failures.
type Gateway struct {
	store Store
	ttl   int
}

// NewGateway wraps a store with the given entry time-to-live in seconds.
func NewGateway(store Store, ttlSeconds int) *Gateway {
	return &Gateway{store: store, ttl: ttlSeconds}
}

// Lookup returns the cached extraction result for the key, or None on miss,
// deserialization failure or store unavailability.
func (g *Gateway) Lookup(ctx context.Context, key string) mo.Option[extractor.Result] {
	payload, found, err := g.store.Get(ctx, key)
	if err != nil {
		log.Warnf("cache get failed for %s: %v", key, err)
		return mo.None[extractor.Result]()
	}
	if !found {
		return mo.None[extractor.Result]()
	}

	var result extractor.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		log.Warnf("cache entry for %s is corrupt, treating as miss: %v", key, err)
		return mo.None[extractor.Result]()
	}

	return mo.Some(result)
}

// Save persists a race winner best-effort. A failed write must not fail the
// request that produced the value, so errors are logged and swallowed.
func (g *Gateway) Save(ctx context.Context, key string, result extractor.Result) {
	payload, err := json.Marshal(result)
	if err != nil {
		log.Warnf("cache encode failed for %s: %v", key, err)
		return
	}
	if err := g.store.Set(ctx, key, payload, g.ttl); err != nil {
		log.Warnf("cache set failed for %s: %v", key, err)
	}
}

// Invalidate removes the entry for the key. Removing an absent entry is a
// no-op; a store fault is logged and reported as false.
func (g *Gateway) Invalidate(ctx context.Context, key string) bool {
	if err := g.store.Delete(ctx, key); err != nil {
		log.Warnf("cache delete failed for %s: %v", key, err)
		return false
	}
	return true
}

// Count returns the number of live entries under the manifest prefix, zero
// when the store cannot answer.
func (g *Gateway) Count(ctx context.Context) int {
	count, err := g.store.CountPrefix(ctx, KeyPrefix)
	if err != nil {
		log.Warnf("cache count failed: %v", err)
		return 0
	}
	return count
}

// Healthy reports store reachability for the health and stats surfaces.
func (g *Gateway) Healthy(ctx context.Context) bool {
	return g.store.Ping(ctx) == nil
}

// TTL returns the configured entry time-to-live in seconds.
func (g *Gateway) TTL() int {
	return g.ttl
}

// StoreName identifies the backing store.
func (g *Gateway) StoreName() string {
	return g.store.Name()
}
