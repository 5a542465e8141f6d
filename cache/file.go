package cache

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/metafates/gache"

	"github.com/hlsgate/hlsgate/filesystem"
)

// document is the on-disk format of the file store: one gache-managed JSON
// file holding every entry with its own expiry timestamp.
type document struct {
	Entries map[string]entry `json:"entries"`
}

type entry struct {
	Payload   json.RawMessage `json:"payload"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// fileStore is the zero-dependency deployment backend: cache entries live in
// a single JSON document under the user cache directory, persisted through
// gache over the swappable filesystem layer. Suitable for single-instance
// deployments; multi-instance setups should use the Redis store.
type fileStore struct {
	internal *gache.Cache[*document]
	mu       sync.Mutex
	now      func() time.Time
}

// NewFileStore creates a file-backed cache store rooted at dir.
func NewFileStore(dir string) Store {
	return &fileStore{
		internal: gache.New[*document](&gache.Options{
			Path:       filepath.Join(dir, "manifests.json"),
			FileSystem: &filesystem.GacheFs{},
		}),
		now: time.Now,
	}
}

func (f *fileStore) Name() string {
	return "file"
}

// load returns the current document, substituting an empty one for a missing
// or expired file.
func (f *fileStore) load() (*document, error) {
	doc, expired, err := f.internal.Get()
	if err != nil {
		return nil, err
	}
	if expired || doc == nil || doc.Entries == nil {
		return &document{Entries: make(map[string]entry)}, nil
	}
	return doc, nil
}

func (f *fileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, false, err
	}

	e, ok := doc.Entries[key]
	if !ok || f.now().After(e.ExpiresAt) {
		return nil, false, nil
	}
	return e.Payload, true, nil
}

func (f *fileStore) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}

	doc.Entries[key] = entry{
		Payload:   json.RawMessage(value),
		ExpiresAt: f.now().Add(time.Duration(ttlSeconds) * time.Second),
	}
	return f.internal.Set(doc)
}

func (f *fileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}

	if _, ok := doc.Entries[key]; !ok {
		return nil
	}
	delete(doc.Entries, key)
	return f.internal.Set(doc)
}

func (f *fileStore) CountPrefix(ctx context.Context, prefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return 0, err
	}

	count := 0
	for key, e := range doc.Entries {
		if strings.HasPrefix(key, prefix) && f.now().Before(e.ExpiresAt) {
			count++
		}
	}
	return count, nil
}

func (f *fileStore) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, err := f.load()
	return err
}
