package photosync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openmined/photoframe/internal/blob"
	"github.com/openmined/photoframe/internal/manifest"
)

// Remover deletes objects from the container. The local side catches up
// through the sync that follows.
type Remover struct {
	blob   blob.Client
	engine *Engine
}

func NewRemover(client blob.Client, engine *Engine) *Remover {
	return &Remover{
		blob:   client,
		engine: engine,
	}
}

func (r *Remover) Remove(ctx context.Context, keys []string) (manifest.Manifest, error) {
	var errs []error
	for _, key := range keys {
		if _, err := r.blob.DeleteObject(ctx, key); err != nil {
			slog.Error("remove object error", "key", key, "error", err)
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
			continue
		}
		slog.Info("object removed", "key", key)
	}

	m, err := r.engine.Sync(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	return m, errors.Join(errs...)
}
