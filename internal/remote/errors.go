package remote

import "errors"

var (
	// ErrRemoteUnavailable means the object store or the diff function could
	// not be reached or returned an error.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrMalformedResponse means the diff function answered with a payload
	// that does not match the diff result schema.
	ErrMalformedResponse = errors.New("malformed diff response")
)
