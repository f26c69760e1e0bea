package photosync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/openmined/photoframe/internal/cache"
	"github.com/openmined/photoframe/internal/manifest"
	"github.com/openmined/photoframe/internal/metrics"
)

// GC drops cache files past their lifetime and rebuilds the manifest.
type GC struct {
	cache  *cache.Cache
	engine *Engine
	clock  clockwork.Clock
}

func NewGC(cache *cache.Cache, engine *Engine, clock clockwork.Clock) *GC {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &GC{
		cache:  cache,
		engine: engine,
		clock:  clock,
	}
}

// Purge removes files older than maxAge, then syncs from an empty manifest so
// every remote object is fetched again. A zero maxAge disables the purge and
// returns the persisted manifest.
func (g *GC) Purge(ctx context.Context, maxAge time.Duration) (manifest.Manifest, error) {
	if maxAge <= 0 {
		slog.Info("cache gc disabled")
		return g.engine.Store().Load()
	}

	removed, err := g.cache.Purge(maxAge, g.clock.Now())
	metrics.PurgedFilesTotal.Add(float64(len(removed)))
	if err != nil {
		return nil, fmt.Errorf("cache gc: %w", err)
	}

	// drop purged files from the manifest before resyncing, so a failed
	// resync never leaves entries pointing at deleted files
	if len(removed) > 0 {
		current, err := g.engine.Store().Load()
		if err != nil {
			slog.Warn("manifest unreadable, starting fresh", "error", err)
		}
		purged := make([]manifest.Entry, 0, len(removed))
		for _, key := range removed {
			purged = append(purged, manifest.Entry{Key: key})
		}
		next := current.Without(purged)
		if err := g.engine.Store().Save(next); err != nil {
			return nil, fmt.Errorf("cache gc: %w", err)
		}
		metrics.ManifestEntries.Set(float64(len(next)))
	}

	slog.Info("cache gc", "maxAge", maxAge, "removed", len(removed))
	return g.engine.SyncWith(ctx, manifest.Manifest{})
}
