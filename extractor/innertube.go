package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	playerEndpoint = "https://www.youtube.com/youtubei/v1/player?prettyPrint=false"
	probeEndpoint  = "https://www.youtube.com/generate_204"
)

// clientProfile describes one InnerTube client identity. Different identities
// receive different streaming payloads: the ios profile typically yields a
// ready-made HLS manifest, android and web yield adaptive formats.
type clientProfile struct {
	Name      string
	ID        string
	Version   string
	UserAgent string
}

var profiles = map[string]clientProfile{
	"android": {
		Name:      "android",
		ID:        "ANDROID",
		Version:   "19.09.37",
		UserAgent: "com.google.android.youtube/19.09.37 (Linux; U; Android 11) gzip",
	},
	"ios": {
		Name:      "ios",
		ID:        "IOS",
		Version:   "19.09.3",
		UserAgent: "com.google.ios.youtube/19.09.3 (iPhone14,3; U; CPU iOS 15_6 like Mac OS X)",
	},
	"web": {
		Name:      "web",
		ID:        "WEB",
		Version:   "2.20240304.00.00",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	},
}

// InnerTubeProfiles lists the client identities available for InnerTube adapters.
func InnerTubeProfiles() []string {
	return []string{"android", "ios", "web"}
}

// InnerTube extracts stream metadata straight from the youtubei/v1/player
// endpoint using a fixed client identity per instance.
type InnerTube struct {
	profile  clientProfile
	client   *http.Client
	endpoint string
	probeURL string
}

// NewInnerTube creates an InnerTube adapter for the named client profile.
func NewInnerTube(profile string, client *http.Client) (*InnerTube, error) {
	p, ok := profiles[profile]
	if !ok {
		return nil, fmt.Errorf("unknown innertube profile %q", profile)
	}
	return &InnerTube{
		profile:  p,
		client:   client,
		endpoint: playerEndpoint,
		probeURL: probeEndpoint,
	}, nil
}

// Name returns the backend identifier, which is the profile name.
func (i *InnerTube) Name() string {
	return i.profile.Name
}

// playerRequest is the youtubei/v1/player request envelope.
type playerRequest struct {
	Context struct {
		Client struct {
			ClientName    string `json:"clientName"`
			ClientVersion string `json:"clientVersion"`
			HL            string `json:"hl"`
		} `json:"client"`
	} `json:"context"`
	VideoID        string `json:"videoId"`
	ContentCheckOK bool   `json:"contentCheckOk"`
}

// playerResponse is the subset of the youtubei/v1/player payload we consume.
type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		LengthSeconds string `json:"lengthSeconds"`
	} `json:"videoDetails"`
	StreamingData struct {
		HLSManifestURL  string            `json:"hlsManifestUrl"`
		DASHManifestURL string            `json:"dashManifestUrl"`
		AdaptiveFormats []innertubeFormat `json:"adaptiveFormats"`
	} `json:"streamingData"`
}

type innertubeFormat struct {
	Itag          int    `json:"itag"`
	URL           string `json:"url"`
	MimeType      string `json:"mimeType"`
	Bitrate       int64  `json:"bitrate"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	ContentLength string `json:"contentLength"`
}

// Extract implements the Extractor contract against the InnerTube API.
func (i *InnerTube) Extract(ctx context.Context, videoID string) Result {
	start := time.Now()

	var payload playerRequest
	payload.Context.Client.ClientName = i.profile.ID
	payload.Context.Client.ClientVersion = i.profile.Version
	payload.Context.Client.HL = "en"
	payload.VideoID = videoID
	payload.ContentCheckOK = true

	body, err := json.Marshal(payload)
	if err != nil {
		return fail(i.Name(), videoID, start, fmt.Sprintf("encode player request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint, bytes.NewReader(body))
	if err != nil {
		return fail(i.Name(), videoID, start, fmt.Sprintf("create player request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", i.profile.UserAgent)

	resp, err := i.client.Do(req)
	if err != nil {
		return fail(i.Name(), videoID, start, fmt.Sprintf("player request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fail(i.Name(), videoID, start, fmt.Sprintf("player endpoint returned status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return fail(i.Name(), videoID, start, fmt.Sprintf("read player response: %v", err))
	}

	var player playerResponse
	if err := json.Unmarshal(raw, &player); err != nil {
		return fail(i.Name(), videoID, start, fmt.Sprintf("parse player response: %v", err))
	}

	if status := player.PlayabilityStatus.Status; status != "" && status != "OK" {
		reason := player.PlayabilityStatus.Reason
		if reason == "" {
			reason = status
		}
		return fail(i.Name(), videoID, start, fmt.Sprintf("video not playable: %s", reason))
	}

	result := Result{
		Success:     true,
		Source:      i.Name(),
		VideoID:     videoID,
		Title:       player.VideoDetails.Title,
		ExtractTime: time.Since(start).Milliseconds(),
	}
	if secs, err := strconv.ParseFloat(player.VideoDetails.LengthSeconds, 64); err == nil {
		result.Duration = secs
	}

	formats := mapInnertubeFormats(player.StreamingData.AdaptiveFormats)

	switch {
	case player.StreamingData.HLSManifestURL != "":
		result.Kind = KindHLS
		result.ManifestURL = player.StreamingData.HLSManifestURL
	case player.StreamingData.DASHManifestURL != "":
		result.Kind = KindDASH
		result.ManifestURL = player.StreamingData.DASHManifestURL
		result.Formats = formats
	case len(formats) > 0:
		result.Kind = KindFormats
		result.Formats = formats
	default:
		return fail(i.Name(), videoID, start, "no manifest url and no usable formats in player response")
	}

	return result
}

// Probe implements best-effort liveness against the lightweight 204 endpoint.
func (i *InnerTube) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := i.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK
}

func mapInnertubeFormats(raw []innertubeFormat) []Format {
	formats := make([]Format, 0, len(raw))
	for _, f := range raw {
		if f.URL == "" {
			continue
		}
		length, _ := strconv.ParseInt(f.ContentLength, 10, 64)
		formats = append(formats, Format{
			ID:            strconv.Itoa(f.Itag),
			Bitrate:       f.Bitrate,
			Width:         f.Width,
			Height:        f.Height,
			HasVideo:      strings.HasPrefix(f.MimeType, "video/"),
			HasAudio:      strings.HasPrefix(f.MimeType, "audio/") || strings.Contains(f.MimeType, "mp4a"),
			MimeType:      f.MimeType,
			ContentLength: length,
			URL:           f.URL,
		})
	}
	return formats
}
