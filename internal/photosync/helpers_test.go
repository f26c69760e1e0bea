package photosync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/photoframe/internal/blob/blobtest"
	"github.com/openmined/photoframe/internal/cache"
	"github.com/openmined/photoframe/internal/manifest"
	"github.com/openmined/photoframe/internal/remote"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const testRoot = "/frame/cache"

var testTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	fs     afero.Fs
	cache  *cache.Cache
	store  *manifest.Store
	blob   *blobtest.MemClient
	engine *Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fs := afero.NewMemMapFs()
	c := cache.New(fs, testRoot)
	require.NoError(t, c.Setup())

	store := manifest.NewStore(fs, testRoot)
	client := blobtest.NewMemClient("frame")
	invoker := remote.NewLocalInvoker(remote.NewHandler(remote.NewLister(client), "frame"))

	return &testEnv{
		fs:     fs,
		cache:  c,
		store:  store,
		blob:   client,
		engine: NewEngine(store, c, client, invoker, &EngineConfig{Container: "frame", DownloadConcurrency: 2}),
	}
}

// seedLocal writes a cached file and returns its manifest entry.
func (e *testEnv) seedLocal(t *testing.T, key, content string) manifest.Entry {
	t.Helper()
	require.NoError(t, afero.WriteFile(e.fs, filepath.Join(testRoot, key), []byte(content), 0o644))
	return manifest.Entry{
		URL:          manifest.URLFor(key),
		Key:          key,
		LastModified: testTime.Format(time.RFC3339),
		Size:         int64(len(content)),
	}
}

func (e *testEnv) readCached(t *testing.T, key string) string {
	t.Helper()
	data, err := afero.ReadFile(e.fs, filepath.Join(testRoot, key))
	require.NoError(t, err)
	return string(data)
}

func (e *testEnv) manifestFile(t *testing.T) []byte {
	t.Helper()
	data, err := afero.ReadFile(e.fs, e.store.Path())
	require.NoError(t, err)
	return data
}

func keysOf(m manifest.Manifest) []string {
	keys := make([]string, 0, len(m))
	for _, e := range m {
		keys = append(keys, e.Key)
	}
	return keys
}

// invokerFunc adapts a function to remote.Invoker.
type invokerFunc func(ctx context.Context, current manifest.Manifest, container string) (*remote.DiffResponse, error)

func (f invokerFunc) Diff(ctx context.Context, current manifest.Manifest, container string) (*remote.DiffResponse, error) {
	return f(ctx, current, container)
}
