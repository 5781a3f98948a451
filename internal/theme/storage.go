package theme

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Storage loads and saves the persisted theme. Load returns "" when nothing
// has been saved yet.
type Storage interface {
	Load() (Theme, error)
	Save(Theme) error
}

// Persist returns a listener that saves every value to storage.
func Persist(storage Storage) Listener {
	return func(t Theme) error {
		if err := storage.Save(t); err != nil {
			return fmt.Errorf("failed to persist theme: %w", err)
		}
		return nil
	}
}

type themeFile struct {
	Theme Theme `yaml:"theme"`
}

// FileStorage keeps the preference in a small YAML file.
type FileStorage struct {
	path string
}

// NewFileStorage stores the preference at path. Parent directories are
// created on first save.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the backing file path.
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Load() (Theme, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read theme file: %w", err)
	}

	var tf themeFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return "", fmt.Errorf("failed to parse theme file %s: %w", f.path, err)
	}
	return tf.Theme, nil
}

func (f *FileStorage) Save(t Theme) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create theme directory: %w", err)
	}

	data, err := yaml.Marshal(themeFile{Theme: t})
	if err != nil {
		return fmt.Errorf("failed to encode theme: %w", err)
	}

	// Replace atomically.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write theme file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace theme file: %w", err)
	}
	return nil
}

// MemoryStorage is a Storage held in memory.
type MemoryStorage struct {
	mu    sync.Mutex
	value Theme
	saves int
}

func (m *MemoryStorage) Load() (Theme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

func (m *MemoryStorage) Save(t Theme) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = t
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryStorage) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
