package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openmined/photoframe/internal/manifest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemCache(t *testing.T) *Cache {
	t.Helper()
	c := New(afero.NewMemMapFs(), "/frame/cache")
	require.NoError(t, c.Setup())
	return c
}

func TestCache_Path(t *testing.T) {
	c := New(afero.NewMemMapFs(), "/frame/cache")

	cases := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{"top level", "a.jpg", "/frame/cache/a.jpg", false},
		{"nested", "samples/a.jpg", "/frame/cache/samples/a.jpg", false},
		{"cleaned", "samples/./b/../a.jpg", "/frame/cache/samples/a.jpg", false},
		{"empty", "", "", true},
		{"folder marker", "samples/", "", true},
		{"parent escape", "../outside.jpg", "", true},
		{"nested escape", "samples/../../outside.jpg", "", true},
		{"absolute", "/etc/passwd", "", true},
		{"manifest", "photos.json", "", true},
		{"lock", ".photoframe.lock", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Path(tc.key)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tc.want), got)
		})
	}
}

func TestCache_WriteCreatesParents(t *testing.T) {
	c := newMemCache(t)

	n, err := c.Write("samples/deep/a.jpg", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.True(t, c.Exists("samples/deep/a.jpg"))

	data, err := afero.ReadFile(c.Fs(), "/frame/cache/samples/deep/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	entries, err := afero.ReadDir(c.Fs(), "/frame/cache/samples/deep")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestCache_WriteFailureLeavesNothing(t *testing.T) {
	c := newMemCache(t)

	_, err := c.Write("a.jpg", failingReader{})
	assert.ErrorIs(t, err, manifest.ErrLocalIO)
	assert.False(t, c.Exists("a.jpg"))

	entries, err := afero.ReadDir(c.Fs(), c.Root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCache_RemoveKeyAndBasename(t *testing.T) {
	c := newMemCache(t)
	_, err := c.Write("samples/a.jpg", bytes.NewReader([]byte("1")))
	require.NoError(t, err)
	_, err = c.Write("a.jpg", bytes.NewReader([]byte("2")))
	require.NoError(t, err)

	require.NoError(t, c.Remove("samples/a.jpg"))
	assert.False(t, c.Exists("samples/a.jpg"))
	assert.False(t, c.Exists("a.jpg"))

	// already gone is fine
	require.NoError(t, c.Remove("samples/a.jpg"))
}

func TestCache_RemoveExactKeepsBasename(t *testing.T) {
	c := newMemCache(t)
	_, err := c.Write("samples/a.jpg", bytes.NewReader([]byte("1")))
	require.NoError(t, err)
	_, err = c.Write("a.jpg", bytes.NewReader([]byte("2")))
	require.NoError(t, err)

	require.NoError(t, c.RemoveExact("samples/a.jpg"))
	assert.False(t, c.Exists("samples/a.jpg"))
	assert.True(t, c.Exists("a.jpg"))
}

func TestCache_RemoveNeverTouchesManifest(t *testing.T) {
	c := newMemCache(t)
	require.NoError(t, afero.WriteFile(c.Fs(), "/frame/cache/photos.json", []byte("[]"), 0o644))

	require.NoError(t, c.Remove("samples/photos.json"))

	ok, err := afero.Exists(c.Fs(), "/frame/cache/photos.json")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_CopyIn(t *testing.T) {
	c := newMemCache(t)
	require.NoError(t, afero.WriteFile(c.Fs(), "/home/pi/DCIM/img.jpg", []byte("jpeg"), 0o644))

	n, err := c.CopyIn("/home/pi/DCIM/img.jpg", "selfies/img.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.True(t, c.Exists("selfies/img.jpg"))

	_, err = c.CopyIn("/home/pi/DCIM/missing.jpg", "selfies/missing.jpg")
	assert.ErrorIs(t, err, manifest.ErrLocalIO)
}

func TestCache_Purge(t *testing.T) {
	c := newMemCache(t)
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	old := now.Add(-72 * time.Hour)
	fresh := now.Add(-1 * time.Hour)

	files := map[string]time.Time{
		"old.jpg":           old,
		"samples/old.jpg":   old,
		"samples/fresh.jpg": fresh,
		"photos.json":       old,
	}
	for name, mtime := range files {
		p := filepath.Join(c.Root, name)
		require.NoError(t, afero.WriteFile(c.Fs(), p, []byte("x"), 0o644))
		require.NoError(t, c.Fs().Chtimes(p, mtime, mtime))
	}

	removed, err := c.Purge(48*time.Hour, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"old.jpg", "samples/old.jpg"}, removed)

	assert.True(t, c.Exists("samples/fresh.jpg"))
	ok, _ := afero.Exists(c.Fs(), filepath.Join(c.Root, "photos.json"))
	assert.True(t, ok)
}

func TestCache_PurgeMissingRoot(t *testing.T) {
	c := New(afero.NewMemMapFs(), "/nowhere")

	removed, err := c.Purge(time.Hour, time.Now())
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestCacheLocking_SingleInstance(t *testing.T) {
	root := t.TempDir()

	c1, err := NewOnDisk(root)
	require.NoError(t, err)
	c2, err := NewOnDisk(root)
	require.NoError(t, err)

	require.NoError(t, c1.Lock())

	err = c2.Lock()
	require.ErrorIs(t, err, ErrCacheLocked)

	lockPath := filepath.Join(root, ".photoframe.lock")
	assert.FileExists(t, lockPath)

	require.NoError(t, c1.Unlock())
	_, statErr := os.Stat(lockPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)

	require.NoError(t, c2.Lock())
	t.Cleanup(func() { _ = c2.Unlock() })
}
