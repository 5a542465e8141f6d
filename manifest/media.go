package manifest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"

	"github.com/hlsgate/hlsgate/extractor"
)

// segmentSeconds is the nominal slice length of synthesized VOD playlists.
const segmentSeconds = 10.0

// RenderMedia synthesizes the per-rendition VOD media playlist for one
// format: the nominal duration is sliced into fixed 10-second segments, each
// mapped onto a byte range of the progressive source proportional to its
// position. The cut points are approximations, not keyframe-aligned.
func RenderMedia(result extractor.Result, formatID, baseURL string) (string, error) {
	format, found := lo.Find(result.Formats, func(f extractor.Format) bool {
		return f.ID == formatID
	})
	if !found || format.URL == "" {
		return "", ErrNoRenderableContent
	}
	if result.Duration <= 0 {
		return "", ErrNoRenderableContent
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", int(segmentSeconds)))
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")

	duration := result.Duration
	for begin := 0.0; begin < duration; begin += segmentSeconds {
		end := begin + segmentSeconds
		if end > duration {
			end = duration
		}
		b.WriteString(fmt.Sprintf("#EXTINF:%.3f,\n", end-begin))
		b.WriteString(segmentURL(baseURL, format, begin, end, duration))
		b.WriteString("\n")
	}

	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String(), nil
}

// segmentURL maps one time slice onto a proxied byte-range request. Without a
// reported content length the whole resource is referenced for every slice
// and the player's own range handling takes over.
func segmentURL(baseURL string, format extractor.Format, begin, end, duration float64) string {
	proxied := fmt.Sprintf("%s/api/proxy?url=%s", baseURL, url.QueryEscape(format.URL))
	if format.ContentLength <= 0 {
		return proxied
	}

	startByte := int64(float64(format.ContentLength) * begin / duration)
	endByte := int64(float64(format.ContentLength)*end/duration) - 1
	if endByte >= format.ContentLength {
		endByte = format.ContentLength - 1
	}
	return fmt.Sprintf("%s&range=%d-%d", proxied, startByte, endByte)
}
