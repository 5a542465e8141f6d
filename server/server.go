// Package server exposes the HTTP surface: manifest and media playlists,
// video info, cache management, stats, health and the byte-range proxy.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hlsgate/hlsgate/cache"
	"github.com/hlsgate/hlsgate/extractor"
	"github.com/hlsgate/hlsgate/log"
	"github.com/hlsgate/hlsgate/manifest"
	"github.com/hlsgate/hlsgate/race"
)

// Server wires the coordinator, synthesizer and gateway onto HTTP routes.
// It is constructed once at startup; all fields are read-only afterwards.
type Server struct {
	coordinator *race.Coordinator
	synthesizer *manifest.Synthesizer
	gateway     *cache.Gateway
	extractors  []extractor.Extractor
	client      *http.Client

	host string
	port int
}

// New assembles a server over the given collaborators.
func New(
	coordinator *race.Coordinator,
	synthesizer *manifest.Synthesizer,
	gateway *cache.Gateway,
	extractors []extractor.Extractor,
	client *http.Client,
	host string,
	port int,
) *Server {
	return &Server{
		coordinator: coordinator,
		synthesizer: synthesizer,
		gateway:     gateway,
		extractors:  extractors,
		client:      client,
		host:        host,
		port:        port,
	}
}

// Router builds the route table.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/manifest/{file}", s.handleManifest)
	mux.HandleFunc("GET /api/stream/{videoId}/{file}", s.handleStream)
	mux.HandleFunc("GET /api/info/{videoId}", s.handleInfo)
	mux.HandleFunc("GET /api/formats/{videoId}", s.handleFormats)
	mux.HandleFunc("DELETE /api/cache/{videoId}", s.handleCacheDelete)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/proxy", s.handleProxy)
	return mux
}

// Run serves until ctx is cancelled, then drains connections gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(s.host, strconv.Itoa(s.port)),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", srv.Addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// baseURL reconstructs the externally visible base URL of the request so
// that rewritten playlist URLs point back at this proxy.
func baseURL(r *http.Request) string {
	scheme := "http"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// writeResolveError maps coordinator and synthesis failures onto their
// distinct statuses: exhaustion is 500, a race deadline is 504, a winner
// without renderable content is 404.
func writeResolveError(w http.ResponseWriter, err error) {
	var (
		allFailed *race.AllFailedError
		timedOut  *race.TimeoutError
		upstream  *manifest.UpstreamError
	)
	switch {
	case errors.As(err, &timedOut):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": timedOut.Error()})
	case errors.As(err, &allFailed):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": allFailed.Error()})
	case errors.Is(err, manifest.ErrNoRenderableContent):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no renderable content"})
	case errors.As(err, &upstream):
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": upstream.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
