package extractor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestYtdlpServiceExtract(t *testing.T) {
	Convey("YtdlpService.Extract", t, func() {
		Convey("Should map an HLS response onto a manifest result", func(c C) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c.So(r.URL.Path, ShouldEqual, "/api/extract/abc123")
				fmt.Fprint(w, `{
					"video_id": "abc123",
					"title": "Some Video",
					"duration": 212,
					"hls_manifest_url": "https://upstream.example/master.m3u8",
					"formats": []
				}`)
			}))
			defer srv.Close()

			result := NewYtdlpService(srv.URL, srv.Client()).Extract(context.Background(), "abc123")

			So(result.Success, ShouldBeTrue)
			So(result.Source, ShouldEqual, "ytdlp")
			So(result.Kind, ShouldEqual, KindHLS)
			So(result.ManifestURL, ShouldEqual, "https://upstream.example/master.m3u8")
			So(result.Formats, ShouldBeEmpty)
			So(result.Title, ShouldEqual, "Some Video")
			So(result.Duration, ShouldEqual, 212)
			So(result.ExtractTime, ShouldBeGreaterThanOrEqualTo, 0)
		})

		Convey("Should map a formats-only response onto adaptive formats", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{
					"video_id": "abc123",
					"formats": [
						{"format_id": "137", "width": 1920, "height": 1080, "vcodec": "avc1", "acodec": "none", "tbr": 4500, "filesize": 1000000, "url": "https://cdn.example/137"},
						{"format_id": "140", "vcodec": "none", "acodec": "mp4a", "tbr": 128, "url": "https://cdn.example/140"},
						{"format_id": "18", "vcodec": "avc1", "acodec": "mp4a", "tbr": 700, "url": ""}
					]
				}`)
			}))
			defer srv.Close()

			result := NewYtdlpService(srv.URL, srv.Client()).Extract(context.Background(), "abc123")

			So(result.Success, ShouldBeTrue)
			So(result.Kind, ShouldEqual, KindFormats)
			So(result.ManifestURL, ShouldBeEmpty)
			// The url-less format is excluded entirely.
			So(result.Formats, ShouldHaveLength, 2)

			video := result.Formats[0]
			So(video.ID, ShouldEqual, "137")
			So(video.HasVideo, ShouldBeTrue)
			So(video.HasAudio, ShouldBeFalse)
			So(video.Bitrate, ShouldEqual, 4500000)
			So(video.ContentLength, ShouldEqual, 1000000)

			audio := result.Formats[1]
			So(audio.HasVideo, ShouldBeFalse)
			So(audio.HasAudio, ShouldBeTrue)
		})

		Convey("Should fold a non-2xx response into a failure result", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "not found", http.StatusNotFound)
			}))
			defer srv.Close()

			result := NewYtdlpService(srv.URL, srv.Client()).Extract(context.Background(), "missing")

			So(result.Success, ShouldBeFalse)
			So(result.Error, ShouldContainSubstring, "status 404")
			So(result.ManifestURL, ShouldBeEmpty)
			So(result.Formats, ShouldBeEmpty)
		})

		Convey("Should fold a malformed payload into a failure result", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "<html>definitely not json</html>")
			}))
			defer srv.Close()

			result := NewYtdlpService(srv.URL, srv.Client()).Extract(context.Background(), "abc123")

			So(result.Success, ShouldBeFalse)
			So(result.Error, ShouldContainSubstring, "parse yt-dlp response")
		})

		Convey("Should fold an unreachable service into a failure result", func() {
			result := NewYtdlpService("http://127.0.0.1:1", http.DefaultClient).Extract(context.Background(), "abc123")

			So(result.Success, ShouldBeFalse)
			So(result.Error, ShouldContainSubstring, "unreachable")
		})

		Convey("Should fail when neither manifest nor formats are present", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"video_id": "abc123", "formats": []}`)
			}))
			defer srv.Close()

			result := NewYtdlpService(srv.URL, srv.Client()).Extract(context.Background(), "abc123")

			So(result.Success, ShouldBeFalse)
			So(result.Error, ShouldContainSubstring, "neither a manifest url nor usable formats")
		})
	})
}

func TestYtdlpServiceProbe(t *testing.T) {
	Convey("YtdlpService.Probe", t, func() {
		Convey("Should report true when /health answers 200", func(c C) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c.So(r.URL.Path, ShouldEqual, "/health")
				fmt.Fprint(w, `{"status":"ok"}`)
			}))
			defer srv.Close()

			So(NewYtdlpService(srv.URL, srv.Client()).Probe(context.Background()), ShouldBeTrue)
		})

		Convey("Should report false when the service is down", func() {
			So(NewYtdlpService("http://127.0.0.1:1", http.DefaultClient).Probe(context.Background()), ShouldBeFalse)
		})
	})
}
