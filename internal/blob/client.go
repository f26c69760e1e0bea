package blob

import (
	"context"
	"io"
	"time"
)

// Client is the subset of object store operations the photo sync needs.
// An empty bucket argument means the bucket the client was configured with.
type Client interface {
	Bucket() string
	GetObject(ctx context.Context, key string) (*GetObjectResponse, error)
	PutObject(ctx context.Context, params *PutObjectParams) (*PutObjectResponse, error)
	DeleteObject(ctx context.Context, key string) (bool, error)
	ListObjects(ctx context.Context, bucket string) ([]*BlobInfo, error)
}

type GetObjectResponse struct {
	Body         io.ReadCloser
	ETag         string
	Size         int64
	LastModified time.Time
}

// ===================================================================================================

type PutObjectParams struct {
	Key         string
	Size        int64
	ContentType string
	Body        io.Reader
}

type PutObjectResponse struct {
	Key          string
	Version      string
	ETag         string
	Size         int64
	LastModified time.Time
}

// ===================================================================================================

type BlobInfo struct {
	Key          string `json:"key"`
	ETag         string `json:"etag"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified"`
}
