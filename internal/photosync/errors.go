package photosync

import "errors"

var (
	// ErrSyncFailed wraps the cause of a sync pass that could not complete.
	ErrSyncFailed = errors.New("sync failed")

	// ErrUploadFailed is returned when a new photo could not be uploaded. The
	// cache and manifest are left untouched.
	ErrUploadFailed = errors.New("upload failed")

	ErrSyncAlreadyRunning = errors.New("sync already running")
	ErrSchedulerStopped   = errors.New("scheduler stopped")
)
