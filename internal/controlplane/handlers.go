package controlplane

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmined/photoframe/internal/cache"
	"github.com/openmined/photoframe/internal/manifest"
	"github.com/openmined/photoframe/internal/photosync"
	"github.com/openmined/photoframe/internal/version"
)

// PhotoService is the part of photosync.Service the control plane drives.
type PhotoService interface {
	Photos() manifest.Manifest
	Sync(ctx context.Context) (manifest.Manifest, error)
	Purge(ctx context.Context, maxAge time.Duration) (manifest.Manifest, error)
	Ingest(ctx context.Context, localPath, folder string) (manifest.Entry, error)
	IngestEntries(ctx context.Context, entries []manifest.Entry) (manifest.Manifest, error)
	Import(ctx context.Context, dir, folder string) (*photosync.ImportResult, error)
	Remove(ctx context.Context, keys []string) (manifest.Manifest, error)
	Notifier() *photosync.Notifier
}

type PhotosHandler struct {
	svc       PhotoService
	cacheLife time.Duration
}

func NewPhotosHandler(svc PhotoService, cacheLife time.Duration) *PhotosHandler {
	return &PhotosHandler{svc: svc, cacheLife: cacheLife}
}

func (h *PhotosHandler) Status(c *gin.Context) {
	c.PureJSON(http.StatusOK, &StatusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version.Version,
		Revision:  version.Revision,
		BuildDate: version.BuildDate,
		Photos:    len(h.svc.Photos()),
	})
}

// List returns the last good manifest without touching the remote.
func (h *PhotosHandler) List(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	photos := h.svc.Photos()
	switch req.Order {
	case OrderNewest:
		photos = photos.SortedByLastModified(true)
	case OrderOldest:
		photos = photos.SortedByLastModified(false)
	}
	c.PureJSON(http.StatusOK, newPhotosResponse(photos))
}

func (h *PhotosHandler) Sync(c *gin.Context) {
	m, err := h.svc.Sync(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, newPhotosResponse(m))
}

func (h *PhotosHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	entry, err := h.svc.Ingest(c.Request.Context(), req.Path, req.Folder)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, &IngestResponse{Code: CodeOk, Photo: entry})
}

// IngestBatch records photos another tool already uploaded and cached.
func (h *PhotosHandler) IngestBatch(c *gin.Context) {
	var req photosync.UploadNotification
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}
	if len(req.NewPhotos) == 0 {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, errors.New("newPhotos is required"))
		return
	}

	m, err := h.svc.IngestEntries(c.Request.Context(), req.NewPhotos)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, newPhotosResponse(m))
}

func (h *PhotosHandler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	res, err := h.svc.Import(c.Request.Context(), req.Dir, req.Folder)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, &ImportResponse{
		Code:     CodeOk,
		Imported: res.Imported,
		Skipped:  res.Skipped,
		Failed:   res.Failed,
	})
}

func (h *PhotosHandler) Remove(c *gin.Context) {
	var req RemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	m, err := h.svc.Remove(c.Request.Context(), req.Keys)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, newPhotosResponse(m))
}

// Purge runs the cache gc now. Without a body the configured cache life is
// used.
func (h *PhotosHandler) Purge(c *gin.Context) {
	var req PurgeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	maxAge := h.cacheLife
	if req.MaxAge != "" {
		d, err := time.ParseDuration(req.MaxAge)
		if err != nil {
			AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Errorf("invalid maxAge: %w", err))
			return
		}
		maxAge = d
	}

	m, err := h.svc.Purge(c.Request.Context(), maxAge)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, newPhotosResponse(m))
}

// Events streams PHOTOS_UPDATED / PHOTOS_ERROR as server-sent events. The
// current manifest is sent first.
func (h *PhotosHandler) Events(c *gin.Context) {
	notifier := h.svc.Notifier()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	eventCh := notifier.Subscribe()
	defer notifier.Unsubscribe(eventCh)

	ctx := c.Request.Context()

	c.SSEvent(string(photosync.EventPhotosUpdated), &photosync.Event{
		Type:   photosync.EventPhotosUpdated,
		Photos: h.svc.Photos(),
		Time:   time.Now(),
	})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-eventCh:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		}
	})
}

func abortWithServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cache.ErrInvalidKey):
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
	case errors.Is(err, fs.ErrNotExist):
		AbortWithError(c, http.StatusNotFound, ErrCodeNotFound, err)
	case errors.Is(err, photosync.ErrUploadFailed):
		AbortWithError(c, http.StatusBadGateway, ErrCodeUploadFailed, err)
	case errors.Is(err, photosync.ErrSyncFailed):
		AbortWithError(c, http.StatusBadGateway, ErrCodeSyncFailed, err)
	case errors.Is(err, photosync.ErrSchedulerStopped):
		AbortWithError(c, http.StatusServiceUnavailable, ErrCodeUnavailable, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		AbortWithError(c, http.StatusRequestTimeout, ErrCodeRequestTimeout, err)
	default:
		AbortWithError(c, http.StatusInternalServerError, ErrCodeUnknownError, err)
	}
}
