package cpclient

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

// ErrDaemonUnreachable is returned when no daemon answers on the control
// plane address. Callers fall back to working on the cache directly.
var ErrDaemonUnreachable = errors.New("cpclient: daemon unreachable")

// APIError is the `{code, error}` body the control plane returns.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("control plane error: %s - %s", e.Code, e.Message)
}

func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrDaemonUnreachable, operation, requestErr)
	}

	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*APIError); ok && apiErr.Code != "" {
			apiErr.Status = resp.StatusCode
			return fmt.Errorf("%s: %w", operation, apiErr)
		}
		return fmt.Errorf("%s: unexpected status %s", operation, resp.Status)
	}

	return nil
}
