package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/hlsgate/hlsgate/extractor"
	"github.com/hlsgate/hlsgate/filesystem"
)

func TestKey(t *testing.T) {
	Convey("Key", t, func() {
		Convey("Should apply the fixed manifest prefix", func() {
			So(Key("abc123"), ShouldEqual, "manifest:abc123")
		})
	})
}

func TestFileStore(t *testing.T) {
	Convey("fileStore", t, func() {
		filesystem.SetMemMapFs()
		Reset(filesystem.SetOsFs)

		ctx := context.Background()
		store := NewFileStore("/cache")

		Convey("Should round-trip a value", func() {
			So(store.Set(ctx, "manifest:a", []byte(`{"x":1}`), 60), ShouldBeNil)

			value, found, err := store.Get(ctx, "manifest:a")
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
			So(string(value), ShouldEqual, `{"x":1}`)
		})

		Convey("Should miss on an absent key", func() {
			_, found, err := store.Get(ctx, "manifest:nope")
			So(err, ShouldBeNil)
			So(found, ShouldBeFalse)
		})

		Convey("Should expire entries after their TTL", func() {
			fs := store.(*fileStore)
			So(fs.Set(ctx, "manifest:a", []byte("v"), 60), ShouldBeNil)

			fs.now = func() time.Time { return time.Now().Add(61 * time.Second) }
			_, found, err := fs.Get(ctx, "manifest:a")
			So(err, ShouldBeNil)
			So(found, ShouldBeFalse)
		})

		Convey("Should delete entries, tolerating absent keys", func() {
			So(store.Set(ctx, "manifest:a", []byte("v"), 60), ShouldBeNil)
			So(store.Delete(ctx, "manifest:a"), ShouldBeNil)
			So(store.Delete(ctx, "manifest:a"), ShouldBeNil)

			_, found, _ := store.Get(ctx, "manifest:a")
			So(found, ShouldBeFalse)
		})

		Convey("Should count live keys under a prefix only", func() {
			So(store.Set(ctx, "manifest:a", []byte("v"), 60), ShouldBeNil)
			So(store.Set(ctx, "manifest:b", []byte("v"), 60), ShouldBeNil)
			So(store.Set(ctx, "other:c", []byte("v"), 60), ShouldBeNil)

			count, err := store.CountPrefix(ctx, KeyPrefix)
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 2)
		})

		Convey("Should answer Ping", func() {
			So(store.Ping(ctx), ShouldBeNil)
		})
	})
}

// brokenStore fails every operation, standing in for an unreachable backend.
type brokenStore struct{}

func (brokenStore) Name() string { return "broken" }
func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("store down")
}
func (brokenStore) Set(context.Context, string, []byte, int) error { return errors.New("store down") }
func (brokenStore) Delete(context.Context, string) error           { return errors.New("store down") }
func (brokenStore) CountPrefix(context.Context, string) (int, error) {
	return 0, errors.New("store down")
}
func (brokenStore) Ping(context.Context) error { return errors.New("store down") }

func TestGateway(t *testing.T) {
	Convey("Gateway", t, func() {
		ctx := context.Background()

		Convey("Over a working store", func() {
			filesystem.SetMemMapFs()
			Reset(filesystem.SetOsFs)

			gateway := NewGateway(NewFileStore("/cache"), 3600)
			winner := extractor.Result{
				Success:     true,
				Source:      "android",
				VideoID:     "abc123",
				Kind:        extractor.KindHLS,
				ManifestURL: "https://upstream.example/index.m3u8",
			}

			Convey("Should round-trip a result through Save and Lookup", func() {
				gateway.Save(ctx, Key("abc123"), winner)

				cached, ok := gateway.Lookup(ctx, Key("abc123")).Get()
				So(ok, ShouldBeTrue)
				So(cached, ShouldResemble, winner)
			})

			Convey("Should return None for an absent key", func() {
				So(gateway.Lookup(ctx, Key("nope")).IsAbsent(), ShouldBeTrue)
			})

			Convey("Should treat a corrupt entry as a miss", func() {
				store := NewFileStore("/cache")
				So(store.Set(ctx, Key("abc123"), []byte("{not json"), 60), ShouldBeNil)

				So(NewGateway(store, 3600).Lookup(ctx, Key("abc123")).IsAbsent(), ShouldBeTrue)
			})

			Convey("Should count saved entries", func() {
				gateway.Save(ctx, Key("a"), winner)
				gateway.Save(ctx, Key("b"), winner)
				So(gateway.Count(ctx), ShouldEqual, 2)
			})

			Convey("Should invalidate entries", func() {
				gateway.Save(ctx, Key("abc123"), winner)
				So(gateway.Invalidate(ctx, Key("abc123")), ShouldBeTrue)
				So(gateway.Lookup(ctx, Key("abc123")).IsAbsent(), ShouldBeTrue)
			})

			Convey("Should report a healthy store", func() {
				So(gateway.Healthy(ctx), ShouldBeTrue)
			})
		})

		Convey("Over a broken store every fault is absorbed", func() {
			gateway := NewGateway(brokenStore{}, 3600)

			So(gateway.Lookup(ctx, Key("abc123")).IsAbsent(), ShouldBeTrue)
			So(func() { gateway.Save(ctx, Key("abc123"), extractor.Result{}) }, ShouldNotPanic)
			So(gateway.Invalidate(ctx, Key("abc123")), ShouldBeFalse)
			So(gateway.Count(ctx), ShouldEqual, 0)
			So(gateway.Healthy(ctx), ShouldBeFalse)
		})
	})
}
