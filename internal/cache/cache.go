package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/openmined/photoframe/internal/manifest"
	"github.com/openmined/photoframe/internal/utils"
	"github.com/spf13/afero"
)

const (
	lockFile = ".photoframe.lock"
)

var (
	ErrCacheLocked = errors.New("cache locked by another process")
	ErrInvalidKey  = errors.New("invalid cache key")
)

// Cache is the directory holding downloaded photos and the manifest.
// Files live at <Root>/<key>.
type Cache struct {
	Root string

	fs    afero.Fs
	flock *flock.Flock
}

// New returns a cache rooted at root on the given filesystem. root must
// already be absolute.
func New(fsys afero.Fs, root string) *Cache {
	return &Cache{
		Root:  root,
		fs:    fsys,
		flock: flock.New(filepath.Join(root, lockFile)),
	}
}

// NewOnDisk resolves dir and returns a cache backed by the OS filesystem.
func NewOnDisk(dir string) (*Cache, error) {
	root, err := utils.ResolvePath(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", dir, err)
	}
	return New(afero.NewOsFs(), root), nil
}

func (c *Cache) Fs() afero.Fs {
	return c.fs
}

// Setup creates the cache directory.
func (c *Cache) Setup() error {
	if err := c.fs.MkdirAll(c.Root, 0o755); err != nil {
		return fmt.Errorf("%w: create cache dir %s: %w", manifest.ErrLocalIO, c.Root, err)
	}
	slog.Info("cache", "root", c.Root)
	return nil
}

// Lock takes an advisory lock so two daemons never share one cache.
// The lock always lives on the OS filesystem.
func (c *Cache) Lock() error {
	if err := utils.EnsureDir(c.Root); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.Root, err)
	}

	locked, err := c.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock cache: %w", err)
	}
	if !locked {
		return ErrCacheLocked
	}
	return nil
}

func (c *Cache) Unlock() error {
	// if this process hasn't locked the cache, then don't delete the lock file
	if !c.flock.Locked() {
		return nil
	}

	if err := c.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock cache: %w", err)
	}

	return os.Remove(c.flock.Path())
}

// Path returns the absolute location of key. Keys that would escape the cache
// or collide with the manifest are rejected.
func (c *Cache) Path(key string) (string, error) {
	if key == "" || strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	rel := filepath.FromSlash(path.Clean(key))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q escapes cache", ErrInvalidKey, key)
	}
	if isReserved(rel) {
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidKey, key)
	}

	return filepath.Join(c.Root, rel), nil
}

func (c *Cache) Exists(key string) bool {
	p, err := c.Path(key)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(c.fs, p)
	return err == nil && ok
}

// Write stores the contents of r at key, creating parent directories. The
// data lands in a temp file first so a failed transfer never leaves a
// truncated photo behind.
func (c *Cache) Write(key string, r io.Reader) (int64, error) {
	dst, err := c.Path(key)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(dst)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", manifest.ErrLocalIO, dir, err)
	}

	tmp, err := afero.TempFile(c.fs, dir, "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("%w: create temp file: %w", manifest.ErrLocalIO, err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		c.fs.Remove(tmpName)
		return n, fmt.Errorf("%w: write %s: %w", manifest.ErrLocalIO, key, err)
	}
	if err := tmp.Close(); err != nil {
		c.fs.Remove(tmpName)
		return n, fmt.Errorf("%w: close %s: %w", manifest.ErrLocalIO, key, err)
	}
	if err := c.fs.Rename(tmpName, dst); err != nil {
		c.fs.Remove(tmpName)
		return n, fmt.Errorf("%w: rename %s: %w", manifest.ErrLocalIO, key, err)
	}

	return n, nil
}

// CopyIn copies a local file into the cache at key.
func (c *Cache) CopyIn(src string, key string) (int64, error) {
	f, err := c.fs.Open(src)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", manifest.ErrLocalIO, src, err)
	}
	defer f.Close()

	return c.Write(key, f)
}

// Remove deletes the file at key and a file with the same basename at the
// cache root, which older layouts used. Missing files are not an error.
func (c *Cache) Remove(key string) error {
	paths := []string{key}
	if base := path.Base(key); base != key && !isReserved(base) {
		paths = append(paths, base)
	}
	return c.remove(paths...)
}

// RemoveExact deletes only the file at key.
func (c *Cache) RemoveExact(key string) error {
	return c.remove(key)
}

func (c *Cache) remove(keys ...string) error {
	var errs []error
	for _, key := range keys {
		p, err := c.Path(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		err = c.fs.Remove(p)
		switch {
		case err == nil:
			slog.Debug("cache file removed", "key", key)
		case !errors.Is(err, fs.ErrNotExist):
			errs = append(errs, fmt.Errorf("%w: remove %s: %w", manifest.ErrLocalIO, key, err))
		}
	}
	return errors.Join(errs...)
}

// Purge deletes every regular file whose modification time is older than
// maxAge. The manifest and the lock file are kept. It returns the removed
// paths relative to the cache root.
func (c *Cache) Purge(maxAge time.Duration, now time.Time) ([]string, error) {
	removed := make([]string, 0)
	cutoff := now.Add(-maxAge)

	err := afero.Walk(c.fs, c.Root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(c.Root, p)
		if err != nil {
			return err
		}
		if isReserved(rel) {
			return nil
		}

		if !info.ModTime().Before(cutoff) {
			return nil
		}

		if err := c.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("cache purge remove failed", "path", rel, "error", err)
			return nil
		}
		removed = append(removed, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("%w: purge %s: %w", manifest.ErrLocalIO, c.Root, err)
	}

	return removed, nil
}

func isReserved(rel string) bool {
	return rel == manifest.FileName || rel == lockFile
}
