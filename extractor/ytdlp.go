package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// YtdlpService extracts stream metadata through the sidecar yt-dlp HTTP
// service. The sidecar keeps a persistent yt-dlp instance warm so repeated
// extractions skip interpreter startup; its wire format is the VideoInfo
// document of its /api/extract endpoint.
type YtdlpService struct {
	baseURL string
	client  *http.Client
}

// NewYtdlpService creates an adapter speaking to the yt-dlp service at baseURL.
func NewYtdlpService(baseURL string, client *http.Client) *YtdlpService {
	return &YtdlpService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Name returns the backend identifier.
func (y *YtdlpService) Name() string {
	return "ytdlp"
}

// ytdlpInfo mirrors the VideoInfo response of the yt-dlp service.
type ytdlpInfo struct {
	VideoID         string        `json:"video_id"`
	Title           string        `json:"title"`
	Duration        float64       `json:"duration"`
	Formats         []ytdlpFormat `json:"formats"`
	ManifestURL     string        `json:"manifest_url"`
	HLSManifestURL  string        `json:"hls_manifest_url"`
	DASHManifestURL string        `json:"dash_manifest_url"`
}

type ytdlpFormat struct {
	FormatID string  `json:"format_id"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Vcodec   string  `json:"vcodec"`
	Acodec   string  `json:"acodec"`
	Filesize int64   `json:"filesize"`
	TBR      float64 `json:"tbr"`
	URL      string  `json:"url"`
}

// Extract implements the Extractor contract over the service's REST surface.
// Transport errors, non-2xx responses and malformed payloads all map to the
// uniform Success=false result.
func (y *YtdlpService) Extract(ctx context.Context, videoID string) Result {
	start := time.Now()

	url := fmt.Sprintf("%s/api/extract/%s", y.baseURL, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(y.Name(), videoID, start, fmt.Sprintf("create extract request: %v", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return fail(y.Name(), videoID, start, fmt.Sprintf("yt-dlp service unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fail(y.Name(), videoID, start, fmt.Sprintf("yt-dlp service returned status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return fail(y.Name(), videoID, start, fmt.Sprintf("read yt-dlp response: %v", err))
	}

	var info ytdlpInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return fail(y.Name(), videoID, start, fmt.Sprintf("parse yt-dlp response: %v", err))
	}

	result := Result{
		Success:     true,
		Source:      y.Name(),
		VideoID:     videoID,
		Title:       info.Title,
		Duration:    info.Duration,
		ExtractTime: time.Since(start).Milliseconds(),
	}

	formats := mapYtdlpFormats(info.Formats)

	switch {
	case info.HLSManifestURL != "":
		result.Kind = KindHLS
		result.ManifestURL = info.HLSManifestURL
	case info.DASHManifestURL != "":
		result.Kind = KindDASH
		result.ManifestURL = info.DASHManifestURL
		result.Formats = formats
	case len(formats) > 0:
		result.Kind = KindFormats
		result.Formats = formats
	default:
		return fail(y.Name(), videoID, start, "yt-dlp returned neither a manifest url nor usable formats")
	}

	return result
}

// Probe checks the service's /health endpoint.
func (y *YtdlpService) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := y.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func mapYtdlpFormats(raw []ytdlpFormat) []Format {
	formats := make([]Format, 0, len(raw))
	for _, f := range raw {
		if f.URL == "" {
			continue
		}
		formats = append(formats, Format{
			ID: f.FormatID,
			// tbr is reported in kbit/s.
			Bitrate:       int64(f.TBR * 1000),
			Width:         f.Width,
			Height:        f.Height,
			HasVideo:      f.Vcodec != "" && f.Vcodec != "none",
			HasAudio:      f.Acodec != "" && f.Acodec != "none",
			ContentLength: f.Filesize,
			URL:           f.URL,
		})
	}
	return formats
}
