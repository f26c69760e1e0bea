package photosync

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/openmined/photoframe/internal/manifest"
	"github.com/rjeczalik/notify"
	"github.com/spf13/afero"
)

const (
	UploadNotificationFile = "last_upload.json"
	UpdateNotificationFile = "last_update.json"

	FilesDeletedType = "FILES_DELETED"

	dropEventBufferSize    = 16
	defaultDebounceTimeout = 100 * time.Millisecond
)

// UploadNotification is written by external importers after they uploaded
// and cached new photos.
type UploadNotification struct {
	NewPhotos []manifest.Entry `json:"newPhotos"`
}

// UpdateNotification is written by external tools after they deleted
// objects from the container.
type UpdateNotification struct {
	Type  string   `json:"type"`
	Files []string `json:"files"`
}

// DropHandler receives the decoded notification files.
type DropHandler interface {
	OnNewPhotos(ctx context.Context, entries []manifest.Entry) error
	OnFilesDeleted(ctx context.Context, files []string) error
}

// DropWatcher watches the cache directory for notification files dropped by
// other tools and forwards them to the handler. Processed files are removed.
type DropWatcher struct {
	dir     string
	fs      afero.Fs
	handler DropHandler

	rawEvents       chan notify.EventInfo
	debounceTimeout time.Duration
	timers          map[string]*time.Timer
	timersMu        sync.Mutex
	stopped         bool
	wg              sync.WaitGroup
}

func NewDropWatcher(dir string, fsys afero.Fs, handler DropHandler) *DropWatcher {
	return &DropWatcher{
		dir:             dir,
		fs:              fsys,
		handler:         handler,
		debounceTimeout: defaultDebounceTimeout,
		timers:          make(map[string]*time.Timer),
	}
}

func (w *DropWatcher) Start(ctx context.Context) error {
	slog.Info("drop watcher start", "dir", w.dir)

	w.rawEvents = make(chan notify.EventInfo, dropEventBufferSize)
	if err := notify.Watch(w.dir, w.rawEvents, notify.Create, notify.Write, notify.Rename); err != nil {
		return err
	}

	// files dropped while the daemon was down
	for _, name := range []string{UploadNotificationFile, UpdateNotificationFile} {
		if ok, _ := afero.Exists(w.fs, filepath.Join(w.dir, name)); ok {
			w.schedule(ctx, name)
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.rawEvents:
				if !ok {
					return
				}
				name := filepath.Base(ev.Path())
				if name == UploadNotificationFile || name == UpdateNotificationFile {
					w.schedule(ctx, name)
				}
			}
		}
	}()

	return nil
}

func (w *DropWatcher) Stop() {
	if w.rawEvents != nil {
		notify.Stop(w.rawEvents)
	}

	w.timersMu.Lock()
	w.stopped = true
	for _, t := range w.timers {
		t.Stop()
	}
	w.timersMu.Unlock()

	w.wg.Wait()
	slog.Info("drop watcher stopped")
}

// schedule debounces bursts of write events for the same file
func (w *DropWatcher) schedule(ctx context.Context, name string) {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()

	if w.stopped {
		return
	}
	if t, ok := w.timers[name]; ok {
		t.Reset(w.debounceTimeout)
		return
	}

	w.timers[name] = time.AfterFunc(w.debounceTimeout, func() {
		w.timersMu.Lock()
		delete(w.timers, name)
		if w.stopped {
			w.timersMu.Unlock()
			return
		}
		// Stop waits for callbacks already past this point
		w.wg.Add(1)
		w.timersMu.Unlock()
		defer w.wg.Done()

		if ctx.Err() != nil {
			return
		}
		if err := w.Process(ctx, name); err != nil {
			slog.Error("drop file error", "file", name, "error", err)
		}
	})
}

// Process handles one notification file. A file the handler could not apply
// is left in place so the next write retries it.
func (w *DropWatcher) Process(ctx context.Context, name string) error {
	p := filepath.Join(w.dir, name)

	data, err := afero.ReadFile(w.fs, p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	switch name {
	case UploadNotificationFile:
		var n UploadNotification
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		if n.NewPhotos == nil {
			slog.Warn("upload notification without photos", "file", p)
			return nil
		}
		slog.Info("processing upload notification", "photos", len(n.NewPhotos))
		if err := w.handler.OnNewPhotos(ctx, n.NewPhotos); err != nil {
			return err
		}

	case UpdateNotificationFile:
		var n UpdateNotification
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		if n.Type != FilesDeletedType || n.Files == nil {
			slog.Warn("unknown update notification", "file", p, "type", n.Type)
			return nil
		}
		slog.Info("processing deletion notification", "files", len(n.Files))
		if err := w.handler.OnFilesDeleted(ctx, n.Files); err != nil {
			return err
		}

	default:
		return nil
	}

	return w.fs.Remove(p)
}
