// Package manifest turns a race outcome into HLS playlist text: either a
// rewritten pass-through of the upstream manifest or a master playlist
// synthesized from adaptive formats.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/hlsgate/hlsgate/extractor"
	"github.com/hlsgate/hlsgate/race"
)

// ErrNoRenderableContent is returned when the outcome carries neither a
// manifest URL nor any usable format after filtering.
var ErrNoRenderableContent = errors.New("no renderable content")

// UpstreamError wraps a failed fetch of the upstream manifest.
type UpstreamError struct {
	URL string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("fetch upstream manifest %s: %v", e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// maxVariants caps the number of renditions in a synthesized master playlist.
const maxVariants = 5

// absoluteURL matches every absolute URL occurrence in playlist text. This is
// a deliberate blanket match, not an HLS-aware parse: URLs inside comment
// lines and metadata tags are rewritten too, which keeps every downstream
// fetch funneled through the proxy uniformly.
var absoluteURL = regexp.MustCompile(`https?://[^\s"']+`)

// Synthesizer renders playlists for race outcomes.
type Synthesizer struct {
	client *http.Client
}

// NewSynthesizer creates a synthesizer fetching upstream manifests with client.
func NewSynthesizer(client *http.Client) *Synthesizer {
	return &Synthesizer{client: client}
}

// Render produces the playlist body for an outcome. Outcomes carrying a
// manifest URL take the pass-through path; format-only outcomes get a master
// playlist synthesized.
func (s *Synthesizer) Render(ctx context.Context, outcome *race.Outcome, baseURL string) (string, error) {
	switch {
	case outcome.ManifestURL != "":
		return s.passthrough(ctx, outcome.ManifestURL, baseURL)
	case len(outcome.Formats) > 0:
		return renderMaster(outcome.Result, baseURL)
	default:
		return "", ErrNoRenderableContent
	}
}

// passthrough fetches the upstream playlist and rewrites every absolute URL
// into a proxied form, preserving all other playlist syntax verbatim.
func (s *Synthesizer) passthrough(ctx context.Context, manifestURL, baseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return "", &UpstreamError{URL: manifestURL, Err: err}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &UpstreamError{URL: manifestURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{URL: manifestURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return "", &UpstreamError{URL: manifestURL, Err: err}
	}

	return Rewrite(string(body), baseURL), nil
}

// Rewrite replaces every absolute URL occurrence in playlist text with its
// proxied equivalent {base}/api/proxy?url={escaped original}.
func Rewrite(playlist, baseURL string) string {
	return absoluteURL.ReplaceAllStringFunc(playlist, func(match string) string {
		return ProxyURL(baseURL, match)
	})
}

// ProxyURL builds the proxied form of a single upstream URL.
func ProxyURL(baseURL, upstream string) string {
	return fmt.Sprintf("%s/api/proxy?url=%s", baseURL, url.QueryEscape(upstream))
}

// videoOnly selects renditions carrying a video track and no audio track,
// excluding formats without a usable source URL.
func videoOnly(formats []extractor.Format) []extractor.Format {
	return lo.Filter(formats, func(f extractor.Format, _ int) bool {
		return f.HasVideo && !f.HasAudio && f.URL != ""
	})
}

// renderMaster synthesizes a master playlist over the top video-only
// renditions, descending by bitrate, each variant pointing at the
// per-rendition media playlist endpoint.
func renderMaster(result extractor.Result, baseURL string) (string, error) {
	candidates := videoOnly(result.Formats)
	if len(candidates) == 0 {
		return "", ErrNoRenderableContent
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Bitrate > candidates[j].Bitrate
	})
	candidates = lo.Slice(candidates, 0, maxVariants)

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	for _, f := range candidates {
		b.WriteString(fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d", f.Bitrate))
		if f.Width > 0 && f.Height > 0 {
			b.WriteString(fmt.Sprintf(",RESOLUTION=%dx%d", f.Width, f.Height))
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s/api/stream/%s/%s.m3u8\n", baseURL, result.VideoID, f.ID))
	}
	return b.String(), nil
}
