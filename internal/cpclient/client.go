package cpclient

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"

	"github.com/openmined/photoframe/internal/controlplane"
	"github.com/openmined/photoframe/internal/manifest"
	"github.com/openmined/photoframe/internal/photosync"
	"github.com/openmined/photoframe/internal/version"
)

const (
	v1Status       = "/v1/status"
	v1Photos       = "/v1/photos"
	v1PhotosBatch  = "/v1/photos/batch"
	v1PhotosImport = "/v1/photos/import"
	v1PhotosRemove = "/v1/photos/remove"
	v1Sync         = "/v1/sync"
	v1Purge        = "/v1/purge"
)

var userAgent = fmt.Sprintf("photoframe/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// Client talks to a running daemon's control plane.
type Client struct {
	client *req.Client
}

// New returns a client for the control plane at addr ("host:port" or a full
// url). An empty token sends no auth header.
func New(addr, token string) *Client {
	baseURL := addr
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		baseURL = "http://" + addr
	}

	c := req.C().
		SetBaseURL(baseURL).
		SetUserAgent(userAgent).
		SetTimeout(10*time.Minute).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	if token != "" {
		c.SetCommonBearerAuthToken(token)
	}

	return &Client{client: c}
}

// Ping checks that a daemon is answering.
func (c *Client) Ping(ctx context.Context) (*controlplane.StatusResponse, error) {
	var status controlplane.StatusResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&status).
		Get(v1Status)
	if err := handleAPIError(resp, err, "status"); err != nil {
		return nil, err
	}
	return &status, nil
}

// Photos returns the manifest the daemon is showing. order is "newest",
// "oldest" or empty for manifest order.
func (c *Client) Photos(ctx context.Context, order string) (manifest.Manifest, error) {
	r := c.client.R().SetContext(ctx)
	if order != "" {
		r.SetQueryParam("order", order)
	}
	return c.photosCall("photos", r, "GET", v1Photos)
}

// Refresh asks the daemon to sync now.
func (c *Client) Refresh(ctx context.Context) (manifest.Manifest, error) {
	return c.photosCall("sync", c.client.R().SetContext(ctx), "POST", v1Sync)
}

// Purge asks the daemon to run the cache gc. maxAge <= 0 uses the daemon's
// configured cache life.
func (c *Client) Purge(ctx context.Context, maxAge time.Duration) (manifest.Manifest, error) {
	body := controlplane.PurgeRequest{}
	if maxAge > 0 {
		body.MaxAge = maxAge.String()
	}
	return c.photosCall("purge", c.client.R().SetContext(ctx).SetBody(&body), "POST", v1Purge)
}

// NotifyNewPhotos hands entries already uploaded and cached to the daemon.
func (c *Client) NotifyNewPhotos(ctx context.Context, entries []manifest.Entry) (manifest.Manifest, error) {
	body := photosync.UploadNotification{NewPhotos: entries}
	return c.photosCall("batch ingest", c.client.R().SetContext(ctx).SetBody(&body), "POST", v1PhotosBatch)
}

func (c *Client) Remove(ctx context.Context, keys []string) (manifest.Manifest, error) {
	body := controlplane.RemoveRequest{Keys: keys}
	return c.photosCall("remove", c.client.R().SetContext(ctx).SetBody(&body), "POST", v1PhotosRemove)
}

// Ingest asks the daemon to upload and cache a file on its filesystem.
func (c *Client) Ingest(ctx context.Context, localPath, folder string) (*manifest.Entry, error) {
	var result controlplane.IngestResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&controlplane.IngestRequest{Path: localPath, Folder: folder}).
		SetSuccessResult(&result).
		Post(v1Photos)
	if err := handleAPIError(resp, err, "ingest"); err != nil {
		return nil, err
	}
	return &result.Photo, nil
}

func (c *Client) Import(ctx context.Context, dir, folder string) (*photosync.ImportResult, error) {
	var result controlplane.ImportResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&controlplane.ImportRequest{Dir: dir, Folder: folder}).
		SetSuccessResult(&result).
		Post(v1PhotosImport)
	if err := handleAPIError(resp, err, "import"); err != nil {
		return nil, err
	}
	return &photosync.ImportResult{
		Imported: result.Imported,
		Skipped:  result.Skipped,
		Failed:   result.Failed,
	}, nil
}

func (c *Client) photosCall(operation string, r *req.Request, method, url string) (manifest.Manifest, error) {
	var result controlplane.PhotosResponse
	resp, err := r.SetSuccessResult(&result).Send(method, url)
	if err := handleAPIError(resp, err, operation); err != nil {
		return nil, err
	}
	return result.Photos, nil
}
