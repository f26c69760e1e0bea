package remote

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/openmined/photoframe/internal/manifest"
)

const (
	RequestType  = "diff.request"
	ResponseType = "diff.result"
)

// DiffRequest is the payload sent to the diff function.
type DiffRequest struct {
	Type            string            `json:"type"`
	CurrentManifest manifest.Manifest `json:"currentManifest"`
	Container       string            `json:"container,omitempty"`
}

// DiffResponse is the payload returned by the diff function.
type DiffResponse struct {
	Type       string                `json:"type"`
	ToDownload []manifest.Descriptor `json:"toDownload"`
	ToDelete   []manifest.Entry      `json:"toDelete"`
}

func NewDiffRequest(current manifest.Manifest, container string) *DiffRequest {
	if current == nil {
		current = manifest.Manifest{}
	}
	return &DiffRequest{
		Type:            RequestType,
		CurrentManifest: current,
		Container:       container,
	}
}

func NewDiffResponse(changes *manifest.Changes) *DiffResponse {
	return &DiffResponse{
		Type:       ResponseType,
		ToDownload: changes.ToDownload,
		ToDelete:   changes.ToDelete,
	}
}

func (r *DiffResponse) Changes() *manifest.Changes {
	return &manifest.Changes{
		ToDownload: r.ToDownload,
		ToDelete:   r.ToDelete,
	}
}

func EncodeRequest(req *DiffRequest) ([]byte, error) {
	return json.Marshal(req)
}

func EncodeResponse(resp *DiffResponse) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeRequest is lenient about the manifest: anything that is not an array
// of entries is treated as an empty manifest. A type tag, when present, must
// be the request tag.
func DecodeRequest(data []byte) (*DiffRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode diff request: %w", err)
	}

	req := &DiffRequest{Type: RequestType, CurrentManifest: manifest.Manifest{}}

	if raw, ok := fields["type"]; ok {
		var tag string
		if err := json.Unmarshal(raw, &tag); err != nil || tag != RequestType {
			return nil, fmt.Errorf("decode diff request: unexpected type %s", raw)
		}
	}

	if raw, ok := fields["container"]; ok {
		if err := json.Unmarshal(raw, &req.Container); err != nil {
			return nil, fmt.Errorf("decode diff request: container: %w", err)
		}
	}

	if raw, ok := fields["currentManifest"]; ok && isArray(raw) {
		var current manifest.Manifest
		if err := json.Unmarshal(raw, &current); err == nil {
			req.CurrentManifest = current
		}
	}

	return req, nil
}

// DecodeResponse validates a diff result. The payload must be an object
// carrying the result tag and both change lists as JSON arrays.
func DecodeResponse(data []byte) (*DiffResponse, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformedResponse)
	}

	var tag string
	if raw, ok := fields["type"]; !ok {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedResponse)
	} else if err := json.Unmarshal(raw, &tag); err != nil || tag != ResponseType {
		return nil, fmt.Errorf("%w: unexpected type %s", ErrMalformedResponse, raw)
	}

	resp := &DiffResponse{Type: tag}

	rawDownload, ok := fields["toDownload"]
	if !ok || !isArray(rawDownload) {
		return nil, fmt.Errorf("%w: toDownload is not an array", ErrMalformedResponse)
	}
	if err := json.Unmarshal(rawDownload, &resp.ToDownload); err != nil {
		return nil, fmt.Errorf("%w: toDownload: %w", ErrMalformedResponse, err)
	}

	rawDelete, ok := fields["toDelete"]
	if !ok || !isArray(rawDelete) {
		return nil, fmt.Errorf("%w: toDelete is not an array", ErrMalformedResponse)
	}
	if err := json.Unmarshal(rawDelete, &resp.ToDelete); err != nil {
		return nil, fmt.Errorf("%w: toDelete: %w", ErrMalformedResponse, err)
	}

	for _, d := range resp.ToDownload {
		if d.Key == "" {
			return nil, fmt.Errorf("%w: toDownload entry without key", ErrMalformedResponse)
		}
	}
	for _, e := range resp.ToDelete {
		if e.Key == "" {
			return nil, fmt.Errorf("%w: toDelete entry without key", ErrMalformedResponse)
		}
	}

	return resp, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
