// Package blobtest provides an in-memory blob.Client for tests.
package blobtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/openmined/photoframe/internal/blob"
)

var ErrNotFound = errors.New("object not found")

type object struct {
	data         []byte
	lastModified time.Time
}

// MemClient stores objects in a map. Failures can be injected per key or for
// the whole listing.
type MemClient struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]object

	ListErr   error
	GetErr    map[string]error
	PutErr    error
	DeleteErr error

	Gets    []string
	Puts    []string
	Deletes []string
}

func NewMemClient(bucket string) *MemClient {
	return &MemClient{
		bucket:  bucket,
		objects: make(map[string]object),
		GetErr:  make(map[string]error),
	}
}

// Seed stores data under key with the given modification time.
func (m *MemClient) Seed(key string, data []byte, lastModified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = object{data: data, lastModified: lastModified}
}

func (m *MemClient) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *MemClient) Bucket() string {
	return m.bucket
}

func (m *MemClient) GetObject(ctx context.Context, key string) (*blob.GetObjectResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Gets = append(m.Gets, key)
	if err := m.GetErr[key]; err != nil {
		return nil, err
	}
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return &blob.GetObjectResponse{
		Body:         io.NopCloser(bytes.NewReader(obj.data)),
		Size:         int64(len(obj.data)),
		LastModified: obj.lastModified,
	}, nil
}

func (m *MemClient) PutObject(ctx context.Context, params *blob.PutObjectParams) (*blob.PutObjectResponse, error) {
	if m.PutErr != nil {
		return nil, m.PutErr
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	m.Puts = append(m.Puts, params.Key)
	m.objects[params.Key] = object{data: data, lastModified: now}
	return &blob.PutObjectResponse{
		Key:          params.Key,
		Size:         int64(len(data)),
		LastModified: now,
	}, nil
}

func (m *MemClient) DeleteObject(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return false, m.DeleteErr
	}
	m.Deletes = append(m.Deletes, key)
	delete(m.objects, key)
	return true, nil
}

func (m *MemClient) ListObjects(ctx context.Context, bucket string) ([]*blob.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]*blob.BlobInfo, 0, len(keys))
	for _, k := range keys {
		obj := m.objects[k]
		out = append(out, &blob.BlobInfo{
			Key:          k,
			Size:         int64(len(obj.data)),
			LastModified: obj.lastModified.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

var _ blob.Client = (*MemClient)(nil)
