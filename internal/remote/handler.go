package remote

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/photoframe/internal/manifest"
)

// Handler is the callee side of the diff boundary. It lists the requested
// container and diffs it against the manifest sent by the caller.
type Handler struct {
	lister           *Lister
	defaultContainer string
}

func NewHandler(lister *Lister, defaultContainer string) *Handler {
	return &Handler{
		lister:           lister,
		defaultContainer: defaultContainer,
	}
}

func (h *Handler) Handle(ctx context.Context, req *DiffRequest) (*DiffResponse, error) {
	container := req.Container
	if container == "" {
		container = h.defaultContainer
	}

	remote, err := h.lister.List(ctx, container)
	if err != nil {
		return nil, err
	}

	changes := manifest.Diff(req.CurrentManifest, remote)
	slog.Info("diff computed",
		"container", container,
		"remote", len(remote),
		"current", len(req.CurrentManifest),
		"toDownload", len(changes.ToDownload),
		"toDelete", len(changes.ToDelete),
	)

	return NewDiffResponse(changes), nil
}

// Invoke handles a raw JSON payload. Its signature matches the lambda
// runtime's Handler interface.
func (h *Handler) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := DecodeRequest(payload)
	if err != nil {
		return nil, err
	}

	resp, err := h.Handle(ctx, req)
	if err != nil {
		return nil, err
	}

	out, err := EncodeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("encode diff response: %w", err)
	}
	return out, nil
}
