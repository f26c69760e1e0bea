package photosync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jonboulle/clockwork"
	"github.com/openmined/photoframe/internal/blob"
	"github.com/openmined/photoframe/internal/cache"
	"github.com/openmined/photoframe/internal/manifest"
	"github.com/openmined/photoframe/internal/metrics"
	"github.com/openmined/photoframe/internal/utils"
	"github.com/spf13/afero"
)

// ImagePattern selects the files Import picks up. Paths are lowercased
// before matching.
const ImagePattern = "**/*.{jpg,jpeg,png,gif}"

// ImportResult summarizes an Import run.
type ImportResult struct {
	Imported []manifest.Entry
	Skipped  int
	Failed   int
}

// Ingester adds locally produced photos to the container and the cache.
type Ingester struct {
	blob  blob.Client
	cache *cache.Cache
	store *manifest.Store
	clock clockwork.Clock
}

func NewIngester(client blob.Client, cache *cache.Cache, store *manifest.Store, clock clockwork.Clock) *Ingester {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Ingester{
		blob:  client,
		cache: cache,
		store: store,
		clock: clock,
	}
}

// KeyFor returns the object key a local file is stored under.
func KeyFor(localPath, folder string) string {
	return path.Join(folder, filepath.Base(localPath))
}

// Ingest uploads localPath to <folder>/<basename>, copies it into the cache
// and records it in the manifest. The upload happens first: when it fails
// nothing local changes.
func (i *Ingester) Ingest(ctx context.Context, localPath, folder string) (manifest.Entry, error) {
	entry, err := i.ingestOne(ctx, localPath, KeyFor(localPath, folder))
	if err != nil {
		return manifest.Entry{}, err
	}

	current, err := i.store.Load()
	if err != nil {
		slog.Warn("manifest unreadable, starting fresh", "error", err)
	}

	next := current.Add(entry)
	if err := i.store.Save(next); err != nil {
		return manifest.Entry{}, err
	}
	metrics.ManifestEntries.Set(float64(len(next)))

	slog.Info("photo ingested", "key", entry.Key, "size", entry.Size)
	return entry, nil
}

// IngestEntries appends entries produced elsewhere (already uploaded and
// copied into the cache). Keys already in the manifest are skipped.
func (i *Ingester) IngestEntries(ctx context.Context, entries []manifest.Entry) (manifest.Manifest, error) {
	current, err := i.store.Load()
	if err != nil {
		slog.Warn("manifest unreadable, starting fresh", "error", err)
	}

	valid := make([]manifest.Entry, 0, len(entries))
	for _, e := range entries {
		if _, err := i.cache.Path(e.Key); err != nil {
			slog.Warn("ingest entry skipped", "key", e.Key, "url", e.URL, "error", err)
			continue
		}
		e.URL = manifest.URLFor(e.Key)
		valid = append(valid, e)
	}

	next := current.Add(valid...)
	if err := i.store.Save(next); err != nil {
		return nil, err
	}
	metrics.ManifestEntries.Set(float64(len(next)))

	slog.Info("manifest updated with new photos", "received", len(entries), "added", len(next)-len(current))
	return next, nil
}

// Import ingests every image below dir into folder. Files whose key is
// already in the manifest are skipped; per file failures are logged.
func (i *Ingester) Import(ctx context.Context, dir, folder string) (*ImportResult, error) {
	current, err := i.store.Load()
	if err != nil {
		slog.Warn("manifest unreadable, starting fresh", "error", err)
	}
	known := current.Keys()
	result := &ImportResult{Imported: make([]manifest.Entry, 0)}

	walkErr := afero.Walk(i.cache.Fs(), dir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if ok, _ := doublestar.Match(ImagePattern, strings.ToLower(filepath.ToSlash(rel))); !ok {
			return nil
		}

		key := KeyFor(p, folder)
		if known.Contains(key) {
			result.Skipped++
			return nil
		}

		entry, err := i.ingestOne(ctx, p, key)
		if err != nil {
			result.Failed++
			slog.Error("import error", "path", p, "error", err)
			return nil
		}
		known.Add(key)
		result.Imported = append(result.Imported, entry)
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		return result, fmt.Errorf("%w: scan %s: %w", manifest.ErrLocalIO, dir, walkErr)
	}

	if len(result.Imported) > 0 {
		next := current.Add(result.Imported...)
		if err := i.store.Save(next); err != nil {
			return result, err
		}
		metrics.ManifestEntries.Set(float64(len(next)))
	}

	slog.Info("import", "dir", dir, "folder", folder, "imported", len(result.Imported), "skipped", result.Skipped, "failed", result.Failed)
	return result, walkErr
}

// ingestOne uploads then caches a single file. It does not touch the manifest.
func (i *Ingester) ingestOne(ctx context.Context, localPath, key string) (manifest.Entry, error) {
	if _, err := i.cache.Path(key); err != nil {
		return manifest.Entry{}, err
	}

	f, err := i.cache.Fs().Open(localPath)
	if err != nil {
		return manifest.Entry{}, fmt.Errorf("%w: open %s: %w", manifest.ErrLocalIO, localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return manifest.Entry{}, fmt.Errorf("%w: stat %s: %w", manifest.ErrLocalIO, localPath, err)
	}

	if _, err := i.blob.PutObject(ctx, &blob.PutObjectParams{
		Key:         key,
		Size:        info.Size(),
		ContentType: utils.DetectContentType(key),
		Body:        f,
	}); err != nil {
		metrics.IngestsTotal.WithLabelValues(metrics.Fail).Inc()
		return manifest.Entry{}, fmt.Errorf("%w: %s: %w", ErrUploadFailed, key, err)
	}

	n, err := i.cache.CopyIn(localPath, key)
	if err != nil {
		metrics.IngestsTotal.WithLabelValues(metrics.Fail).Inc()
		return manifest.Entry{}, err
	}
	metrics.IngestsTotal.WithLabelValues(metrics.Ok).Inc()

	return manifest.Entry{
		URL:          manifest.URLFor(key),
		Key:          key,
		LastModified: i.clock.Now().UTC().Format(time.RFC3339),
		Size:         n,
	}, nil
}
