package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openmined/photoframe/internal/blob"
	"github.com/openmined/photoframe/internal/manifest"
)

// Lister produces the authoritative listing of a container.
type Lister struct {
	client blob.Client
}

func NewLister(client blob.Client) *Lister {
	return &Lister{client: client}
}

// List returns every object in the container. Zero byte folder markers
// (keys ending in "/") are skipped since they cannot be cached as files.
func (l *Lister) List(ctx context.Context, container string) ([]manifest.Descriptor, error) {
	objects, err := l.client.ListObjects(ctx, container)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrRemoteUnavailable, l.containerName(container), err)
	}

	descriptors := make([]manifest.Descriptor, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		descriptors = append(descriptors, manifest.Descriptor{
			Key:          obj.Key,
			LastModified: obj.LastModified,
			Size:         obj.Size,
			Folder:       manifest.FolderOf(obj.Key),
		})
	}

	slog.Debug("remote listed", "container", l.containerName(container), "objects", len(descriptors))
	return descriptors, nil
}

func (l *Lister) containerName(container string) string {
	if container == "" {
		return l.client.Bucket()
	}
	return container
}
