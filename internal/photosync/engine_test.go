package photosync

import (
	"context"
	"errors"
	"testing"

	"github.com/openmined/photoframe/internal/manifest"
	"github.com/openmined/photoframe/internal/remote"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_SyncAddsAndRemoves(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedLocal(t, "a.jpg", "aaa")
	b := env.seedLocal(t, "b.jpg", "bbb")
	require.NoError(t, env.store.Save(manifest.Manifest{a, b}))

	env.blob.Seed("b.jpg", []byte("bbb"), testTime)
	env.blob.Seed("c.jpg", []byte("ccc"), testTime)

	m, err := env.engine.Sync(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b.jpg", "c.jpg"}, keysOf(m))

	assert.False(t, env.cache.Exists("a.jpg"))
	assert.Equal(t, "ccc", env.readCached(t, "c.jpg"))

	persisted, err := env.store.Load()
	require.NoError(t, err)
	assert.Equal(t, m, persisted)

	// second pass is a no-op
	report, err := env.engine.SyncReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Downloaded)
	assert.Equal(t, 0, report.Deleted)
	assert.ElementsMatch(t, []string{"b.jpg", "c.jpg"}, keysOf(report.Manifest))
}

func TestEngine_EntryFields(t *testing.T) {
	env := newTestEnv(t)
	env.blob.Seed("samples/pexels.jpg", []byte("12345"), testTime)

	m, err := env.engine.Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, m, 1)

	assert.Equal(t, manifest.Entry{
		URL:          "cache/samples/pexels.jpg",
		Key:          "samples/pexels.jpg",
		LastModified: "2024-01-01T00:00:00Z",
		Size:         5,
	}, m[0])
	assert.Equal(t, "12345", env.readCached(t, "samples/pexels.jpg"))
}

func TestEngine_FailedDownloadIsOmitted(t *testing.T) {
	env := newTestEnv(t)
	env.blob.Seed("c.jpg", []byte("c"), testTime)
	env.blob.Seed("d.jpg", []byte("d"), testTime)
	env.blob.GetErr["d.jpg"] = errors.New("throttled")

	report, err := env.engine.SyncReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c.jpg"}, keysOf(report.Manifest))
	assert.Equal(t, 1, report.Downloaded)
	assert.Equal(t, 1, report.Failed)
	assert.False(t, env.cache.Exists("d.jpg"))

	// the next pass retries it
	delete(env.blob.GetErr, "d.jpg")
	m, err := env.engine.Sync(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c.jpg", "d.jpg"}, keysOf(m))
}

func TestEngine_MalformedResponseLeavesManifestUnchanged(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedLocal(t, "a.jpg", "aaa")
	require.NoError(t, env.store.Save(manifest.Manifest{a}))
	before := env.manifestFile(t)

	env.engine.invoker = invokerFunc(func(ctx context.Context, current manifest.Manifest, container string) (*remote.DiffResponse, error) {
		return remote.DecodeResponse([]byte(`{"type":"diff.result","toDownload":"nope","toDelete":[]}`))
	})

	m, err := env.engine.Sync(context.Background())
	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.ErrorIs(t, err, remote.ErrMalformedResponse)

	// the cached manifest is the fallback
	assert.Equal(t, manifest.Manifest{a}, m)
	assert.Equal(t, before, env.manifestFile(t))
	assert.True(t, env.cache.Exists("a.jpg"))
}

func TestEngine_RemoteUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.blob.ListErr = errors.New("no route to host")

	m, err := env.engine.Sync(context.Background())
	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.ErrorIs(t, err, remote.ErrRemoteUnavailable)
	assert.Nil(t, m, "no fallback without a cached manifest")

	ok, _ := afero.Exists(env.fs, env.store.Path())
	assert.False(t, ok)
}

func TestEngine_EmptyRemoteDeletesEverything(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedLocal(t, "a.jpg", "a")
	b := env.seedLocal(t, "samples/b.jpg", "b")
	require.NoError(t, env.store.Save(manifest.Manifest{a, b}))

	m, err := env.engine.Sync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, m)
	assert.NotNil(t, m)
	assert.False(t, env.cache.Exists("a.jpg"))
	assert.False(t, env.cache.Exists("samples/b.jpg"))
	assert.JSONEq(t, `[]`, string(env.manifestFile(t)))
}

func TestEngine_DeleteRemovesBasenameCopy(t *testing.T) {
	env := newTestEnv(t)
	x := env.seedLocal(t, "selfies/x.jpg", "x")
	env.seedLocal(t, "x.jpg", "legacy copy")
	require.NoError(t, env.store.Save(manifest.Manifest{x}))

	_, err := env.engine.Sync(context.Background())
	require.NoError(t, err)
	assert.False(t, env.cache.Exists("selfies/x.jpg"))
	assert.False(t, env.cache.Exists("x.jpg"))
}

func TestEngine_DeleteKeepsLiveBasename(t *testing.T) {
	env := newTestEnv(t)
	nested := env.seedLocal(t, "selfies/x.jpg", "nested")
	top := env.seedLocal(t, "x.jpg", "top")
	require.NoError(t, env.store.Save(manifest.Manifest{nested, top}))
	env.blob.Seed("x.jpg", []byte("top"), testTime)

	m, err := env.engine.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x.jpg"}, keysOf(m))
	assert.False(t, env.cache.Exists("selfies/x.jpg"))
	assert.Equal(t, "top", env.readCached(t, "x.jpg"))
}

func TestEngine_CorruptManifestIsEmpty(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, afero.WriteFile(env.fs, env.store.Path(), []byte("{{{"), 0o644))
	env.blob.Seed("a.jpg", []byte("a"), testTime)

	m, err := env.engine.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, keysOf(m))
}

func TestEngine_EscapingKeyIsNotDownloaded(t *testing.T) {
	env := newTestEnv(t)
	env.engine.invoker = invokerFunc(func(ctx context.Context, current manifest.Manifest, container string) (*remote.DiffResponse, error) {
		return &remote.DiffResponse{
			Type:       remote.ResponseType,
			ToDownload: []manifest.Descriptor{{Key: "../../etc/evil.jpg"}},
			ToDelete:   []manifest.Entry{},
		}, nil
	})
	env.blob.Seed("../../etc/evil.jpg", []byte("x"), testTime)

	m, err := env.engine.Sync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestEngine_SyncWithEmptyRefetches(t *testing.T) {
	env := newTestEnv(t)
	env.blob.Seed("a.jpg", []byte("a"), testTime)

	_, err := env.engine.Sync(context.Background())
	require.NoError(t, err)
	env.blob.Gets = nil

	m, err := env.engine.SyncWith(context.Background(), manifest.Manifest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, keysOf(m))
	assert.Equal(t, []string{"a.jpg"}, env.blob.Gets)
}

func TestEngine_DiffReceivesContainerAndManifest(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedLocal(t, "a.jpg", "a")
	require.NoError(t, env.store.Save(manifest.Manifest{a}))

	var gotContainer string
	var gotManifest manifest.Manifest
	env.engine.invoker = invokerFunc(func(ctx context.Context, current manifest.Manifest, container string) (*remote.DiffResponse, error) {
		gotContainer, gotManifest = container, current
		return remote.NewDiffResponse(manifest.Diff(current, nil)), nil
	})

	_, err := env.engine.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "frame", gotContainer)
	assert.Equal(t, manifest.Manifest{a}, gotManifest)
}
