package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore persists the history log as a JSON array
type FileStore struct {
	path string
}

// NewFileStore stores the log at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path is the file the store writes to
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the saved points. A missing file is an empty history.
func (s *FileStore) Load() ([]DataPoint, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	var points []DataPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("decoding history %s: %w", s.path, err)
	}
	return points, nil
}

// Save replaces the file atomically so a crash never leaves half a history behind
func (s *FileStore) Save(points []DataPoint) error {
	if points == nil {
		points = []DataPoint{}
	}
	data, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating history directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing history: %w", err)
	}
	return nil
}
