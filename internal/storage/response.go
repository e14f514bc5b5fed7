package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hammamikhairi/talkbox/internal/logger"
)

// ResponseStore owns the single file holding the last downloaded reply.
// It is written by the voice client and read by the playback engine,
// never both at once.
type ResponseStore struct {
	path string
	log  *logger.Logger
}

// NewResponseStore places the response file in dir.
func NewResponseStore(dir, name string, log *logger.Logger) *ResponseStore {
	return &ResponseStore{path: filepath.Join(dir, name), log: log}
}

// Path returns the response file path.
func (s *ResponseStore) Path() string { return s.path }

// Reset removes a stale file left from a previous boot.
func (s *ResponseStore) Reset() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("response store: %w", err)
	}
	err := os.Remove(s.path)
	switch {
	case err == nil:
		s.log.Info("removed stale %s", s.path)
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("response store: %w", err)
	}
	return nil
}

// Create opens the file for sequential writing, truncating any previous
// reply so no bytes of it survive.
func (s *ResponseStore) Create() (io.WriteCloser, error) {
	return os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// Size returns the current file size, or 0 when there is no file.
func (s *ResponseStore) Size() int64 {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
