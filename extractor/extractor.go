// Package extractor defines the backend adapter contract for obtaining stream
// metadata from the upstream provider, together with the concrete adapters.
//
// Every adapter presents the same shape to the race coordinator: Extract never
// returns an error. Network faults, malformed payloads and missing formats are
// all captured as Result{Success: false} so that a single misbehaving backend
// can never take the race down with it.
package extractor

import (
	"context"
	"time"
)

// Kind identifies the shape of a successful extraction.
type Kind string

const (
	// KindHLS means the result carries a ready-made HLS manifest URL.
	KindHLS Kind = "hls"
	// KindDASH means the result carries a DASH manifest URL, with adaptive
	// formats as supplementary data.
	KindDASH Kind = "dash"
	// KindFormats means the result carries only independently addressable
	// adaptive formats and a playlist must be synthesized.
	KindFormats Kind = "formats"
)

// Format describes one adaptive rendition of a video.
type Format struct {
	// ID is the upstream format identifier, unique within a result.
	ID string `json:"format_id"`
	// Bitrate in bits per second.
	Bitrate int64 `json:"bitrate"`
	Width   int   `json:"width,omitempty"`
	Height  int   `json:"height,omitempty"`
	// HasVideo and HasAudio describe the tracks present in this rendition.
	// A video-only adaptive rendition has HasVideo && !HasAudio.
	HasVideo bool   `json:"has_video"`
	HasAudio bool   `json:"has_audio"`
	MimeType string `json:"mime_type,omitempty"`
	// ContentLength in bytes, zero when the upstream did not report it.
	ContentLength int64 `json:"content_length,omitempty"`
	// URL is the direct stream location. Formats without one are excluded
	// from synthesis.
	URL string `json:"url"`
}

// Result is the canonical backend output consumed by the race coordinator
// and persisted by the cache gateway.
type Result struct {
	Success bool   `json:"success"`
	Source  string `json:"source"`
	VideoID string `json:"video_id"`

	Kind        Kind     `json:"kind,omitempty"`
	ManifestURL string   `json:"manifest_url,omitempty"`
	Formats     []Format `json:"formats,omitempty"`

	Title string `json:"title,omitempty"`
	// Duration of the video in seconds.
	Duration float64 `json:"duration,omitempty"`

	// ExtractTime is the elapsed extraction latency in milliseconds.
	ExtractTime int64 `json:"extract_time_ms"`

	// Error carries the human-readable failure reason when Success is false.
	Error string `json:"error,omitempty"`
}

// Extractor is one strategy for resolving stream metadata.
type Extractor interface {
	// Name returns the unique identifier of the backend.
	Name() string

	// Extract resolves stream metadata for the given video.
	// It never panics and never returns an error: all failures are folded
	// into Result{Success: false, Error: ...} with the elapsed latency set.
	Extract(ctx context.Context, videoID string) Result
}

// Prober is implemented by backends that can report best-effort liveness.
type Prober interface {
	// Probe reports whether the backend looks reachable. The answer is
	// advisory only and never gates extraction.
	Probe(ctx context.Context) bool
}

// fail builds the canonical failure result for an adapter.
func fail(source, videoID string, start time.Time, msg string) Result {
	return Result{
		Source:      source,
		VideoID:     videoID,
		ExtractTime: time.Since(start).Milliseconds(),
		Error:       msg,
	}
}
