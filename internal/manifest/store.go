package manifest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FileName is the manifest file kept at the root of the cache directory.
const FileName = "photos.json"

var (
	// ErrLocalIO is returned when the manifest or a cache file cannot be read or written.
	ErrLocalIO = errors.New("local io error")
)

// Store reads and writes the durable manifest file.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore returns a store for <cacheDir>/photos.json on the given filesystem.
func NewStore(fs afero.Fs, cacheDir string) *Store {
	return &Store{
		fs:   fs,
		path: filepath.Join(cacheDir, FileName),
	}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the manifest permissively. A missing or corrupt file is an empty
// manifest. A file that exists but cannot be read returns an empty manifest
// together with an ErrLocalIO error so callers can log it.
func (s *Store) Load() (Manifest, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, nil
	} else if err != nil {
		return Manifest{}, fmt.Errorf("%w: read manifest %s: %w", ErrLocalIO, s.path, err)
	}

	var m Manifest
	if err := jsonUnmarshal(data, &m); err != nil {
		slog.Warn("manifest corrupt, starting empty", "path", s.path, "error", err)
		return Manifest{}, nil
	}

	// older writers could append the same key twice
	deduped := Manifest{}.Add(m...)
	if len(deduped) != len(m) {
		slog.Warn("manifest has duplicate keys", "path", s.path, "dropped", len(m)-len(deduped))
	}
	return deduped, nil
}

// Save rewrites the whole manifest. The data goes to a temp file next to the
// manifest which is then renamed over it.
func (s *Store) Save(m Manifest) error {
	if m == nil {
		m = Manifest{}
	}

	data, err := jsonMarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode manifest: %w", ErrLocalIO, err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrLocalIO, dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp manifest: %w", ErrLocalIO, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("%w: write manifest: %w", ErrLocalIO, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("%w: close manifest: %w", ErrLocalIO, err)
	}

	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("%w: replace manifest: %w", ErrLocalIO, err)
	}

	slog.Debug("manifest saved", "path", s.path, "entries", len(m))
	return nil
}
