package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hlsgate/hlsgate/cache"
	"github.com/hlsgate/hlsgate/extractor"
	"github.com/hlsgate/hlsgate/log"
	"github.com/hlsgate/hlsgate/manifest"
	"github.com/hlsgate/hlsgate/race"
)

// playlistContentType is the canonical HLS playlist MIME type.
const playlistContentType = "application/vnd.apple.mpegurl"

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warnf("write response: %v", err)
	}
}

// annotate attaches the diagnostic extraction headers to a playlist response.
func annotate(w http.ResponseWriter, outcome *race.Outcome) {
	w.Header().Set("X-Extractor-Source", outcome.Source)
	w.Header().Set("X-Extract-Time-Ms", strconv.FormatInt(outcome.ExtractTime, 10))
	w.Header().Set("X-From-Cache", strconv.FormatBool(outcome.FromCache))
}

// trimPlaylistExt strips the mandatory .m3u8 suffix of a path element,
// returning ok=false when the suffix is missing.
func trimPlaylistExt(file string) (string, bool) {
	stem := strings.TrimSuffix(file, ".m3u8")
	return stem, stem != file && stem != ""
}

// handleManifest serves GET /api/manifest/{videoId}.m3u8.
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	videoID, ok := trimPlaylistExt(r.PathValue("file"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected {videoId}.m3u8"})
		return
	}

	outcome, err := s.coordinator.Resolve(r.Context(), videoID)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	playlist, err := s.synthesizer.Render(r.Context(), outcome, baseURL(r))
	if err != nil {
		writeResolveError(w, err)
		return
	}

	annotate(w, outcome)
	w.Header().Set("Content-Type", playlistContentType)
	_, _ = w.Write([]byte(playlist))
}

// handleStream serves GET /api/stream/{videoId}/{formatId}.m3u8 with the
// synthesized per-rendition VOD playlist.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("videoId")
	formatID, ok := trimPlaylistExt(r.PathValue("file"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expected {formatId}.m3u8"})
		return
	}

	outcome, err := s.coordinator.Resolve(r.Context(), videoID)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	playlist, err := manifest.RenderMedia(outcome.Result, formatID, baseURL(r))
	if err != nil {
		writeResolveError(w, err)
		return
	}

	annotate(w, outcome)
	w.Header().Set("Content-Type", playlistContentType)
	_, _ = w.Write([]byte(playlist))
}

// handleInfo serves GET /api/info/{videoId}.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("videoId")

	outcome, err := s.coordinator.Resolve(r.Context(), videoID)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	info := map[string]any{
		"id":            outcome.VideoID,
		"title":         outcome.Title,
		"duration":      outcome.Duration,
		"manifestType":  outcome.Kind,
		"source":        outcome.Source,
		"fromCache":     outcome.FromCache,
		"extractTimeMs": outcome.ExtractTime,
	}
	if outcome.ManifestURL != "" {
		info["manifestUrl"] = outcome.ManifestURL
	}
	writeJSON(w, http.StatusOK, info)
}

// handleFormats serves GET /api/formats/{videoId} with the raw format list.
func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("videoId")

	outcome, err := s.coordinator.Resolve(r.Context(), videoID)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	formats := outcome.Formats
	if formats == nil {
		formats = []extractor.Format{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"video_id": outcome.VideoID,
		"formats":  formats,
	})
}

// handleCacheDelete serves DELETE /api/cache/{videoId}. Invalidation is
// unconditional: deleting an absent entry still reports success.
func (s *Server) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("videoId")

	ok := s.gateway.Invalidate(r.Context(), cache.Key(videoID))
	message := "cache entry invalidated"
	if !ok {
		message = "cache store unavailable, nothing invalidated"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": ok,
		"message": message,
	})
}

// handleStats serves GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	status := "unavailable"
	if s.gateway.Healthy(r.Context()) {
		status = "connected"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cacheSize":        s.gateway.Count(r.Context()),
		"cacheTTL":         s.gateway.TTL(),
		"raceTimeoutMs":    s.coordinator.Timeout().Milliseconds(),
		"cacheStore":       s.gateway.StoreName(),
		"cacheStoreStatus": status,
		"extractorNames":   s.coordinator.Names(),
	})
}

// handleHealth serves GET /health. Backend liveness is probed best-effort and
// concurrently; a slow probe never holds the endpoint past its deadline.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	type probeResult struct {
		name  string
		alive bool
	}
	probes := make(chan probeResult, len(s.extractors))
	for _, e := range s.extractors {
		go func(e extractor.Extractor) {
			alive := true
			if p, ok := e.(extractor.Prober); ok {
				alive = p.Probe(ctx)
			}
			probes <- probeResult{name: e.Name(), alive: alive}
		}(e)
	}

	services := make(map[string]bool, len(s.extractors)+1)
	for range s.extractors {
		p := <-probes
		services[p.name] = p.alive
	}
	services["cacheStore"] = s.gateway.Healthy(ctx)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}
