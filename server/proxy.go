package server

import (
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/hlsgate/hlsgate/constant"
	"github.com/hlsgate/hlsgate/log"
)

// byteRange validates the optional range query parameter, e.g. "0-1048575".
var byteRange = regexp.MustCompile(`^\d+-\d+$`)

// handleProxy serves GET /api/proxy?url={encoded}[&range=start-end]. Every
// rewritten playlist URL funnels back through here, so the handler streams
// the upstream body without buffering and forwards byte-range slices for the
// synthesized VOD segments.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing url parameter"})
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid url: %v", err)})
		return
	}

	req.Header.Set("User-Agent", constant.UserAgent)

	if rng := r.URL.Query().Get("range"); rng != "" && byteRange.MatchString(rng) {
		req.Header.Set("Range", "bytes="+rng)
	} else if rng := r.Header.Get("Range"); rng != "" {
		// The player may request its own slices of a proxied resource.
		req.Header.Set("Range", rng)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("upstream fetch failed: %v", err)})
		return
	}
	defer resp.Body.Close()

	for _, header := range []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges"} {
		if value := resp.Header.Get(header); value != "" {
			w.Header().Set(header, value)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		// The client hanging up mid-stream is routine for seeking players.
		log.Debugf("proxy stream interrupted: %v", err)
	}
}
