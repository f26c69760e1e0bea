package controlplane

import (
	"github.com/gin-gonic/gin"
	"github.com/openmined/photoframe/internal/manifest"
)

const (
	CodeOk                string = "OK"
	ErrCodeBadRequest     string = "ERR_BAD_REQUEST"
	ErrCodeNotFound       string = "ERR_NOT_FOUND"
	ErrCodeSyncFailed     string = "ERR_SYNC_FAILED"
	ErrCodeUploadFailed   string = "ERR_UPLOAD_FAILED"
	ErrCodeUnavailable    string = "ERR_UNAVAILABLE"
	ErrCodeUnknownError   string = "ERR_UNKNOWN_ERROR"
	ErrCodeRequestTimeout string = "ERR_REQUEST_TIMEOUT"
)

type ControlPlaneError struct {
	ErrorCode string `json:"code"`
	Error     string `json:"error"`
}

func AbortWithError(c *gin.Context, status int, code string, err error) {
	c.Abort()
	c.Error(err)
	c.PureJSON(status, ControlPlaneError{
		ErrorCode: code,
		Error:     err.Error(),
	})
}

// PhotosResponse carries the manifest the display should show.
type PhotosResponse struct {
	Code   string            `json:"code"`
	Count  int               `json:"count"`
	Photos manifest.Manifest `json:"photos"`
}

func newPhotosResponse(m manifest.Manifest) *PhotosResponse {
	if m == nil {
		m = manifest.Manifest{}
	}
	return &PhotosResponse{Code: CodeOk, Count: len(m), Photos: m}
}

// Orders accepted by GET /v1/photos.
const (
	OrderNewest = "newest"
	OrderOldest = "oldest"
)

// ListRequest picks the order photos are returned in. Empty keeps manifest
// order.
type ListRequest struct {
	Order string `form:"order" binding:"omitempty,oneof=newest oldest"`
}

type IngestRequest struct {
	Path   string `json:"path" binding:"required"`
	Folder string `json:"folder"`
}

type IngestResponse struct {
	Code  string         `json:"code"`
	Photo manifest.Entry `json:"photo"`
}

type ImportRequest struct {
	Dir    string `json:"dir" binding:"required"`
	Folder string `json:"folder"`
}

type ImportResponse struct {
	Code     string            `json:"code"`
	Imported manifest.Manifest `json:"imported"`
	Skipped  int               `json:"skipped"`
	Failed   int               `json:"failed"`
}

type RemoveRequest struct {
	Keys []string `json:"keys" binding:"required,min=1"`
}

// PurgeRequest is optional; MaxAge uses Go duration notation ("168h").
type PurgeRequest struct {
	MaxAge string `json:"maxAge"`
}

type StatusResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"ts"`
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	BuildDate string `json:"buildDate"`
	Photos    int    `json:"photos"`
}
