package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ryansname/boilersim/src/combustion"
)

// FileStore keeps configurations in a single JSON file keyed by id
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileStore stores configurations at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) load() (map[string]Config, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading configurations: %w", err)
	}

	configs := map[string]Config{}
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("decoding configurations %s: %w", s.path, err)
	}
	return configs, nil
}

func (s *FileStore) store(configs map[string]Config) error {
	data, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding configurations: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating configuration directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing configurations: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing configurations: %w", err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context) ([]Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	configs, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Config, 0, len(configs))
	for _, c := range configs {
		out = append(out, c)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *FileStore) Get(_ context.Context, id string) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	configs, err := s.load()
	if err != nil {
		return Config{}, err
	}
	c, ok := configs[id]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

func (s *FileStore) Save(_ context.Context, name, description string, zones combustion.Zones, mix combustion.WasteMix) (Config, error) {
	c, err := newConfig(uuid.NewString(), name, description, s.now().UTC(), zones, mix)
	if err != nil {
		return Config{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	configs, err := s.load()
	if err != nil {
		return Config{}, err
	}
	configs[c.ID] = c
	if err := s.store(configs); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configs, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := configs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(configs, id)
	return s.store(configs)
}
