package photosync

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/photoframe/internal/blob"
	"github.com/openmined/photoframe/internal/cache"
	"github.com/openmined/photoframe/internal/manifest"
	"github.com/openmined/photoframe/internal/metrics"
	"github.com/openmined/photoframe/internal/remote"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDownloadConcurrency = 8
)

type EngineConfig struct {
	// Container is the bucket the diff boundary lists.
	Container           string
	DownloadConcurrency int
}

// Report summarizes one sync pass. Manifest is the manifest the display
// should show: the new one on success, the cached fallback on failure.
type Report struct {
	Manifest   manifest.Manifest
	Downloaded int
	Failed     int
	Deleted    int
	Duration   time.Duration
}

// Engine reconciles the local cache with the remote container.
type Engine struct {
	store   *manifest.Store
	cache   *cache.Cache
	blob    blob.Client
	invoker remote.Invoker
	config  *EngineConfig
	muSync  sync.Mutex
}

func NewEngine(
	store *manifest.Store,
	cache *cache.Cache,
	client blob.Client,
	invoker remote.Invoker,
	config *EngineConfig,
) *Engine {
	if config == nil {
		config = &EngineConfig{}
	}
	if config.DownloadConcurrency <= 0 {
		config.DownloadConcurrency = DefaultDownloadConcurrency
	}
	return &Engine{
		store:   store,
		cache:   cache,
		blob:    client,
		invoker: invoker,
		config:  config,
	}
}

func (e *Engine) Store() *manifest.Store {
	return e.store
}

// Sync runs one pass against the persisted manifest.
func (e *Engine) Sync(ctx context.Context) (manifest.Manifest, error) {
	report, err := e.SyncReport(ctx)
	return report.Manifest, err
}

// SyncReport is Sync with the pass statistics.
func (e *Engine) SyncReport(ctx context.Context) (*Report, error) {
	current, err := e.store.Load()
	if err != nil {
		slog.Warn("manifest unreadable, syncing from empty", "error", err)
	}
	return e.run(ctx, current)
}

// SyncWith runs one pass as if current were the persisted manifest.
func (e *Engine) SyncWith(ctx context.Context, current manifest.Manifest) (manifest.Manifest, error) {
	report, err := e.run(ctx, current)
	return report.Manifest, err
}

func (e *Engine) run(ctx context.Context, current manifest.Manifest) (*Report, error) {
	if !e.muSync.TryLock() {
		return &Report{}, ErrSyncAlreadyRunning
	}
	defer e.muSync.Unlock()

	tStart := time.Now()
	defer func() {
		metrics.SyncDurationSeconds.Observe(time.Since(tStart).Seconds())
	}()

	resp, err := e.invoker.Diff(ctx, current, e.config.Container)
	if err != nil {
		return e.fail(tStart, err)
	}
	changes := resp.Changes()

	kept := current.Without(changes.ToDelete)

	// a basename sibling that is still wanted must survive the delete
	live := kept.Keys()
	for _, d := range changes.ToDownload {
		live.Add(d.Key)
	}

	deleted := e.deleteAll(changes.ToDelete, live)
	downloaded := e.downloadAll(ctx, changes.ToDownload)

	next := kept.Add(downloaded...)
	if err := e.store.Save(next); err != nil {
		return e.fail(tStart, err)
	}

	report := &Report{
		Manifest:   next,
		Downloaded: len(downloaded),
		Failed:     len(changes.ToDownload) - len(downloaded),
		Deleted:    deleted,
		Duration:   time.Since(tStart),
	}

	metrics.SyncPassesTotal.WithLabelValues(metrics.Ok).Inc()
	metrics.ManifestEntries.Set(float64(len(next)))

	level := slog.LevelInfo
	if !changes.HasChanges() {
		level = slog.LevelDebug
	}
	slog.Log(ctx, level, "sync",
		"entries", len(next),
		"downloaded", report.Downloaded,
		"failed", report.Failed,
		"removed", len(changes.ToDelete),
		"tsTotal", report.Duration,
	)

	return report, nil
}

// fail builds the result of an unsuccessful pass. The persisted manifest is
// returned as a fallback when it has entries.
func (e *Engine) fail(tStart time.Time, cause error) (*Report, error) {
	metrics.SyncPassesTotal.WithLabelValues(metrics.Fail).Inc()
	err := fmt.Errorf("%w: %w", ErrSyncFailed, cause)
	report := &Report{Duration: time.Since(tStart)}

	fallback, loadErr := e.store.Load()
	if loadErr != nil || len(fallback) == 0 {
		slog.Error("sync failed", "error", cause)
		return report, err
	}

	slog.Warn("sync failed, using cached manifest", "entries", len(fallback), "error", cause)
	report.Manifest = fallback
	return report, err
}

// deleteAll removes the cache files of deleted entries. Failures are logged
// and counted; they never abort the pass.
func (e *Engine) deleteAll(entries []manifest.Entry, live mapset.Set[string]) int {
	deleted := 0
	for _, entry := range entries {
		var err error
		if base := path.Base(entry.Key); base != entry.Key && live.Contains(base) {
			err = e.cache.RemoveExact(entry.Key)
		} else {
			err = e.cache.Remove(entry.Key)
		}

		if err != nil {
			metrics.DeletesTotal.WithLabelValues(metrics.Fail).Inc()
			slog.Error("sync delete error", "key", entry.Key, "error", err)
			continue
		}
		metrics.DeletesTotal.WithLabelValues(metrics.Ok).Inc()
		deleted++
	}
	return deleted
}

// downloadAll fetches descriptors concurrently. Failed downloads are logged
// and left out of the result so the next pass retries them.
func (e *Engine) downloadAll(ctx context.Context, items []manifest.Descriptor) []manifest.Entry {
	if len(items) == 0 {
		return nil
	}

	results := make([]*manifest.Entry, len(items))

	var eg errgroup.Group
	eg.SetLimit(e.config.DownloadConcurrency)

	for i, item := range items {
		eg.Go(func() error {
			entry, err := e.download(ctx, item)
			if err != nil {
				metrics.DownloadsTotal.WithLabelValues(metrics.Fail).Inc()
				slog.Error("sync download error", "key", item.Key, "error", err)
				return nil
			}
			metrics.DownloadsTotal.WithLabelValues(metrics.Ok).Inc()
			results[i] = entry
			return nil
		})
	}
	eg.Wait()

	entries := make([]manifest.Entry, 0, len(items))
	for _, r := range results {
		if r != nil {
			entries = append(entries, *r)
		}
	}
	return entries
}

func (e *Engine) download(ctx context.Context, d manifest.Descriptor) (*manifest.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	obj, err := e.blob.GetObject(ctx, d.Key)
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer obj.Body.Close()

	n, err := e.cache.Write(d.Key, obj.Body)
	if err != nil {
		return nil, err
	}
	metrics.DownloadBytesTotal.Add(float64(n))

	entry := manifest.EntryFromDescriptor(d)
	if entry.Size == 0 {
		entry.Size = n
	}

	slog.Debug("sync downloaded", "key", d.Key, "size", humanize.Bytes(uint64(n)))
	return &entry, nil
}
