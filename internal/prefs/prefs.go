// Package prefs persists user choices made through dialogs.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Preferences are the answers remembered between launches.
type Preferences struct {
	AutoStartAsked bool `yaml:"auto_start_asked"`
	AutoStart      bool `yaml:"auto_start"`
}

// Store reads and writes Preferences to a YAML file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a Store backed by path. The file is created on first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the stored preferences, or the zero value if none exist yet.
func (s *Store) Load() (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Update applies fn to the stored preferences and writes the result.
func (s *Store) Update(fn func(*Preferences)) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.load()
	if err != nil {
		return p, err
	}
	fn(&p)
	if err := s.save(p); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Store) load() (Preferences, error) {
	var p Preferences
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("failed to read preferences: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse preferences: %w", err)
	}
	return p, nil
}

// save writes through a temp file so a crash never leaves a torn file.
func (s *Store) save(p Preferences) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	return nil
}

// DefaultPath returns the preferences file inside the support dir.
func DefaultPath(supportDir string) string {
	return filepath.Join(supportDir, "preferences.yaml")
}
