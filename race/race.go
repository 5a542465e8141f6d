// Package race implements the multi-source extraction race: all configured
// backends are invoked concurrently for one video, the first success wins,
// stragglers are abandoned, and the winner is persisted through the cache
// gateway.
package race

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/hlsgate/hlsgate/cache"
	"github.com/hlsgate/hlsgate/extractor"
	"github.com/hlsgate/hlsgate/log"
)

// Outcome is the per-request result of one resolution: the winning
// extraction annotated with total race latency and cache provenance.
// It is never persisted; the cache stores only the embedded Result.
type Outcome struct {
	extractor.Result

	// TotalTime is the wall-clock duration of the whole resolution in
	// milliseconds, including the cache lookup.
	TotalTime int64
	// FromCache is true when the outcome was served without invoking any
	// backend.
	FromCache bool
}

// Coordinator owns the racing policy. It is constructed once at process
// start and shared across requests; it holds no cross-request state.
type Coordinator struct {
	extractors []extractor.Extractor
	gateway    *cache.Gateway
	timeout    time.Duration
}

// New creates a coordinator over the given backends. With a single backend
// configured the race degenerates into the degraded single-adapter pipeline.
func New(extractors []extractor.Extractor, gateway *cache.Gateway, timeout time.Duration) *Coordinator {
	return &Coordinator{
		extractors: extractors,
		gateway:    gateway,
		timeout:    timeout,
	}
}

// Names returns the backend identifiers in configuration order.
func (c *Coordinator) Names() []string {
	return lo.Map(c.extractors, func(e extractor.Extractor, _ int) string {
		return e.Name()
	})
}

// Timeout returns the configured race deadline.
func (c *Coordinator) Timeout() time.Duration {
	return c.timeout
}

// Resolve returns the first successful extraction for the video.
//
// The cache is consulted first; on a hit no backend is invoked at all. On a
// miss every backend runs concurrently and the first Success observed wins.
// Which backend that is depends on upstream latency and deliberately varies
// between calls. Results arriving after the winner are discarded, never
// double-cached. Resolve fails with *AllFailedError when every backend
// reports a failure and with *TimeoutError when the deadline passes first.
func (c *Coordinator) Resolve(ctx context.Context, videoID string) (*Outcome, error) {
	start := time.Now()
	raceID := uuid.New().String()[:8]
	key := cache.Key(videoID)

	if cached, ok := c.gateway.Lookup(ctx, key).Get(); ok {
		log.WithFields(log.Fields{"race": raceID, "video": videoID, "source": cached.Source}).
			Debug("served from cache")
		return &Outcome{
			Result:    cached,
			TotalTime: time.Since(start).Milliseconds(),
			FromCache: true,
		}, nil
	}

	raceCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Buffered to the field size so abandoned backends never block on send.
	results := make(chan extractor.Result, len(c.extractors))
	for _, e := range c.extractors {
		go func(e extractor.Extractor) {
			results <- e.Extract(raceCtx, videoID)
		}(e)
	}

	log.WithFields(log.Fields{"race": raceID, "video": videoID, "backends": len(c.extractors)}).
		Debug("race started")

	reasons := make(map[string]string, len(c.extractors))
	for pending := len(c.extractors); pending > 0; pending-- {
		select {
		case result := <-results:
			if !result.Success {
				log.WithFields(log.Fields{"race": raceID, "video": videoID, "source": result.Source}).
					Debugf("backend failed: %s", result.Error)
				reasons[result.Source] = result.Error
				continue
			}

			// First success wins; stop waiting and let cancel() signal
			// whatever is still in flight.
			c.gateway.Save(ctx, key, result)
			log.WithFields(log.Fields{
				"race":   raceID,
				"video":  videoID,
				"source": result.Source,
				"ms":     result.ExtractTime,
			}).Info("race won")
			return &Outcome{
				Result:    result,
				TotalTime: time.Since(start).Milliseconds(),
			}, nil

		case <-raceCtx.Done():
			if ctx.Err() != nil {
				// The caller went away; not a race timeout.
				return nil, ctx.Err()
			}
			log.WithFields(log.Fields{"race": raceID, "video": videoID}).
				Warnf("race timed out after %s with %d backend(s) pending", c.timeout, pending)
			return nil, &TimeoutError{VideoID: videoID, Timeout: c.timeout}
		}
	}

	// Backends that honor cancellation report failures when the caller goes
	// away; surface the cancellation itself, not an exhaustion error.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"race": raceID, "video": videoID}).
		Warn("all backends failed")
	return nil, &AllFailedError{VideoID: videoID, Reasons: reasons}
}
