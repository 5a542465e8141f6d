package manifest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hlsgate/hlsgate/extractor"
	"github.com/hlsgate/hlsgate/race"
)

const base = "http://proxy.local:3000"

func TestRewrite(t *testing.T) {
	Convey("Rewrite", t, func() {
		Convey("Should replace every absolute URL with its proxied form", func() {
			playlist := "#EXTM3U\n" +
				"#EXT-X-STREAM-INF:BANDWIDTH=800000\n" +
				"https://cdn.example/hi.m3u8\n" +
				"#EXT-X-STREAM-INF:BANDWIDTH=100000\n" +
				"http://cdn.example/lo.m3u8?sig=a%2Fb&x=1\n"

			rewritten := Rewrite(playlist, base)

			So(rewritten, ShouldNotContainSubstring, "\nhttps://cdn.example")
			So(rewritten, ShouldContainSubstring, base+"/api/proxy?url=")
			// Non-URL playlist syntax survives verbatim.
			So(rewritten, ShouldContainSubstring, "#EXT-X-STREAM-INF:BANDWIDTH=800000\n")
		})

		Convey("Should round-trip each original URL through the url query parameter", func() {
			originals := []string{
				"https://cdn.example/seg/0001.ts",
				"http://cdn.example/lo.m3u8?sig=a%2Fb&x=1",
				"https://cdn.example/path%20with/escapes?a=b&c=d%26e",
			}
			playlist := strings.Join(originals, "\n")

			for _, line := range strings.Split(Rewrite(playlist, base), "\n") {
				proxied, err := url.Parse(strings.TrimPrefix(line, base))
				So(err, ShouldBeNil)
				decoded := proxied.Query().Get("url")
				So(originals, ShouldContain, decoded)
			}
		})

		Convey("Should rewrite URLs inside comment lines too", func() {
			// Known limitation of the blanket pattern match, kept on purpose:
			// downstream behavior relies on every URL funneling through the proxy.
			rewritten := Rewrite("# fetched from https://origin.example/src.m3u8\n", base)
			So(rewritten, ShouldNotContainSubstring, " https://origin.example")
			So(rewritten, ShouldContainSubstring, "/api/proxy?url=")
		})
	})
}

func formatsOutcome(formats []extractor.Format) *race.Outcome {
	return &race.Outcome{Result: extractor.Result{
		Success: true,
		VideoID: "abc123",
		Kind:    extractor.KindFormats,
		Formats: formats,
	}}
}

func videoFormat(id string, kbps int64) extractor.Format {
	return extractor.Format{
		ID:       id,
		Bitrate:  kbps * 1000,
		Width:    1280,
		Height:   720,
		HasVideo: true,
		URL:      "https://cdn.example/" + id,
	}
}

func TestRenderMaster(t *testing.T) {
	Convey("Render over adaptive formats", t, func() {
		synthesizer := NewSynthesizer(http.DefaultClient)
		ctx := context.Background()

		Convey("Should keep the top five renditions in descending bitrate order", func() {
			kbps := []int64{100, 500, 200, 900, 50, 700, 300}
			formats := make([]extractor.Format, 0, len(kbps))
			for i, rate := range kbps {
				formats = append(formats, videoFormat(fmt.Sprintf("f%d", i), rate))
			}

			playlist, err := synthesizer.Render(ctx, formatsOutcome(formats), base)
			So(err, ShouldBeNil)

			var bandwidths []string
			for _, line := range strings.Split(playlist, "\n") {
				if strings.HasPrefix(line, "#EXT-X-STREAM-INF:") {
					bandwidths = append(bandwidths, line)
				}
			}
			So(bandwidths, ShouldHaveLength, 5)
			for i, want := range []string{"900000", "700000", "500000", "300000", "200000"} {
				So(bandwidths[i], ShouldContainSubstring, "BANDWIDTH="+want)
			}
		})

		Convey("Should keep video-only renditions and drop combined ones", func() {
			combined := videoFormat("combined", 800)
			combined.HasAudio = true
			formats := []extractor.Format{videoFormat("video", 400), combined}

			playlist, err := synthesizer.Render(ctx, formatsOutcome(formats), base)
			So(err, ShouldBeNil)
			So(playlist, ShouldContainSubstring, "/api/stream/abc123/video.m3u8")
			So(playlist, ShouldNotContainSubstring, "combined.m3u8")
		})

		Convey("Should emit RESOLUTION and the media playlist endpoint per variant", func() {
			playlist, err := synthesizer.Render(ctx, formatsOutcome([]extractor.Format{videoFormat("137", 4500)}), base)
			So(err, ShouldBeNil)
			So(playlist, ShouldStartWith, "#EXTM3U\n")
			So(playlist, ShouldContainSubstring, "RESOLUTION=1280x720")
			So(playlist, ShouldContainSubstring, base+"/api/stream/abc123/137.m3u8")
		})

		Convey("Should fail with no renderable content when nothing survives filtering", func() {
			audio := extractor.Format{ID: "140", Bitrate: 128000, HasAudio: true, URL: "https://cdn.example/140"}
			noURL := extractor.Format{ID: "137", Bitrate: 4500000, HasVideo: true}

			_, err := synthesizer.Render(ctx, formatsOutcome([]extractor.Format{audio, noURL}), base)
			So(err, ShouldEqual, ErrNoRenderableContent)
		})
	})
}

func TestRenderPassthrough(t *testing.T) {
	Convey("Render over a manifest URL", t, func() {
		ctx := context.Background()

		Convey("Should fetch the upstream playlist and rewrite it", func() {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "#EXTM3U\nhttps://cdn.example/seg/0001.ts\n")
			}))
			defer upstream.Close()

			outcome := &race.Outcome{Result: extractor.Result{
				Success:     true,
				Kind:        extractor.KindHLS,
				ManifestURL: upstream.URL + "/index.m3u8",
			}}

			playlist, err := NewSynthesizer(upstream.Client()).Render(ctx, outcome, base)
			So(err, ShouldBeNil)
			So(playlist, ShouldContainSubstring, base+"/api/proxy?url="+url.QueryEscape("https://cdn.example/seg/0001.ts"))
		})

		Convey("Should surface an upstream failure distinctly", func() {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "gone", http.StatusGone)
			}))
			defer upstream.Close()

			outcome := &race.Outcome{Result: extractor.Result{
				Success:     true,
				Kind:        extractor.KindHLS,
				ManifestURL: upstream.URL + "/index.m3u8",
			}}

			_, err := NewSynthesizer(upstream.Client()).Render(ctx, outcome, base)
			So(err, ShouldHaveSameTypeAs, &UpstreamError{})
		})

		Convey("Should fail with no renderable content for an empty outcome", func() {
			_, err := NewSynthesizer(http.DefaultClient).Render(ctx, &race.Outcome{}, base)
			So(err, ShouldEqual, ErrNoRenderableContent)
		})
	})
}

func TestRenderMedia(t *testing.T) {
	Convey("RenderMedia", t, func() {
		result := extractor.Result{
			Success:  true,
			VideoID:  "abc123",
			Kind:     extractor.KindFormats,
			Duration: 25,
			Formats: []extractor.Format{{
				ID:            "137",
				Bitrate:       4500000,
				HasVideo:      true,
				ContentLength: 1000,
				URL:           "https://cdn.example/137",
			}},
		}

		Convey("Should slice the duration into fixed ten-second segments", func() {
			playlist, err := RenderMedia(result, "137", base)
			So(err, ShouldBeNil)

			So(playlist, ShouldContainSubstring, "#EXT-X-PLAYLIST-TYPE:VOD")
			So(playlist, ShouldContainSubstring, "#EXT-X-TARGETDURATION:10")
			So(strings.Count(playlist, "#EXTINF:"), ShouldEqual, 3)
			// The trailing slice covers the 5-second remainder.
			So(playlist, ShouldContainSubstring, "#EXTINF:5.000,")
			So(playlist, ShouldEndWith, "#EXT-X-ENDLIST\n")
		})

		Convey("Should map segments onto proportional byte ranges", func() {
			playlist, err := RenderMedia(result, "137", base)
			So(err, ShouldBeNil)

			// 25s over 1000 bytes: 10s ≈ 400 bytes per full segment.
			So(playlist, ShouldContainSubstring, "&range=0-399")
			So(playlist, ShouldContainSubstring, "&range=400-799")
			So(playlist, ShouldContainSubstring, "&range=800-999")
		})

		Convey("Should omit ranges when the content length is unknown", func() {
			unknown := result
			unknown.Formats = []extractor.Format{{
				ID: "137", HasVideo: true, URL: "https://cdn.example/137",
			}}

			playlist, err := RenderMedia(unknown, "137", base)
			So(err, ShouldBeNil)
			So(playlist, ShouldNotContainSubstring, "&range=")
		})

		Convey("Should fail for an unknown format id", func() {
			_, err := RenderMedia(result, "999", base)
			So(err, ShouldEqual, ErrNoRenderableContent)
		})

		Convey("Should fail without a positive duration", func() {
			zero := result
			zero.Duration = 0
			_, err := RenderMedia(zero, "137", base)
			So(err, ShouldEqual, ErrNoRenderableContent)
		})
	})
}
