package photosync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/openmined/photoframe/internal/manifest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, env *testEnv) (*Service, context.Context) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	svc := NewService(
		&ServiceConfig{SyncInterval: time.Hour},
		env.engine,
		NewGC(env.cache, env.engine, clock),
		NewIngester(env.blob, env.cache, env.store, clock),
		NewRemover(env.blob, env.engine),
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		svc.Stop()
	})
	return svc, ctx
}

func waitEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestService_InitialSyncPublishes(t *testing.T) {
	env := newTestEnv(t)
	env.blob.Seed("a.jpg", []byte("a"), testTime)
	svc, ctx := newTestService(t, env)

	events := svc.Notifier().Subscribe()
	require.NoError(t, svc.Start(ctx))

	ev := waitEvent(t, events)
	assert.Equal(t, EventPhotosUpdated, ev.Type)
	assert.NotEmpty(t, ev.Task)
	assert.Equal(t, []string{"a.jpg"}, keysOf(ev.Photos))
	assert.Equal(t, []string{"a.jpg"}, keysOf(svc.Photos()))
}

func TestService_SyncErrorKeepsLastGood(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedLocal(t, "a.jpg", "a")
	require.NoError(t, env.store.Save(manifest.Manifest{a}))
	env.blob.ListErr = errors.New("offline")

	svc, ctx := newTestService(t, env)
	require.NoError(t, svc.Start(ctx))

	m, err := svc.Sync(ctx)
	assert.ErrorIs(t, err, ErrSyncFailed)
	assert.Equal(t, manifest.Manifest{a}, m)
	assert.Equal(t, manifest.Manifest{a}, svc.Photos())
}

func TestService_EventsCarryTaskID(t *testing.T) {
	env := newTestEnv(t)
	env.blob.Seed("a.jpg", []byte("a"), testTime)
	svc, ctx := newTestService(t, env)

	events := svc.Notifier().Subscribe()
	require.NoError(t, svc.Start(ctx))

	_, err := svc.Sync(ctx)
	require.NoError(t, err)

	// the initial periodic sync and the explicit one, in either order
	seen := make(map[string]bool)
	for range 2 {
		ev := waitEvent(t, events)
		assert.Equal(t, EventPhotosUpdated, ev.Type)
		require.NotEmpty(t, ev.Task)
		seen[ev.Task] = true
	}

	env.blob.ListErr = errors.New("offline")
	_, err = svc.Sync(ctx)
	require.ErrorIs(t, err, ErrSyncFailed)

	ev := waitEvent(t, events)
	assert.Equal(t, EventPhotosError, ev.Type)
	require.NotEmpty(t, ev.Task)
	seen[ev.Task] = true
	assert.Len(t, seen, 3)
}

func TestService_IngestUsesSelfieFolder(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, afero.WriteFile(env.fs, "/tmp/me.jpg", []byte("me"), 0o644))

	svc, ctx := newTestService(t, env)
	require.NoError(t, svc.Start(ctx))

	entry, err := svc.Ingest(ctx, "/tmp/me.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, "selfies/me.jpg", entry.Key)

	assert.Eventually(t, func() bool {
		return svc.Photos().Contains("selfies/me.jpg")
	}, time.Second, 10*time.Millisecond)
}

func TestService_RemoveDeletesRemoteThenSyncs(t *testing.T) {
	env := newTestEnv(t)
	env.blob.Seed("samples/a.jpg", []byte("a"), testTime)
	env.blob.Seed("samples/b.jpg", []byte("b"), testTime)

	svc, ctx := newTestService(t, env)
	require.NoError(t, svc.Start(ctx))

	_, err := svc.Sync(ctx)
	require.NoError(t, err)

	m, err := svc.Remove(ctx, []string{"samples/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, []string{"samples/b.jpg"}, keysOf(m))
	assert.False(t, env.blob.Has("samples/a.jpg"))
	assert.False(t, env.cache.Exists("samples/a.jpg"))
}

func TestService_OnNewPhotos(t *testing.T) {
	env := newTestEnv(t)
	// uploaded by the importer, so the initial sync keeps it
	env.blob.Seed("usb/a.jpg", []byte("a"), testTime)
	svc, ctx := newTestService(t, env)
	require.NoError(t, svc.Start(ctx))

	require.NoError(t, svc.OnNewPhotos(ctx, []manifest.Entry{{Key: "usb/a.jpg"}}))

	m, err := env.store.Load()
	require.NoError(t, err)
	assert.True(t, m.Contains("usb/a.jpg"))
}
