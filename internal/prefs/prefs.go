// Package prefs persists the user's display preferences in a small YAML file.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"complaintdesk/backend/internal/models"

	"gopkg.in/yaml.v3"
)

// SystemSchemeEnv names the variable read as the system colour scheme.
const SystemSchemeEnv = "COLOR_SCHEME"

type file struct {
	Theme models.Theme `yaml:"theme"`
}

// Store holds the theme and writes every change to path.
type Store struct {
	path string

	mu    sync.Mutex
	theme models.Theme
}

// Open reads path. A missing file or an unknown theme falls back to the
// system scheme and then to light.
func Open(path string) (*Store, error) {
	s := &Store{path: path, theme: SystemTheme()}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return s, nil
	}
	if t := models.Theme(strings.ToLower(string(f.Theme))); t.Valid() {
		s.theme = t
	}
	return s, nil
}

// SystemTheme is the scheme reported by the environment, or light.
func SystemTheme() models.Theme {
	if t := models.Theme(strings.ToLower(strings.TrimSpace(os.Getenv(SystemSchemeEnv)))); t.Valid() {
		return t
	}
	return models.ThemeLight
}

// Theme returns the current theme.
func (s *Store) Theme() models.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SetTheme stores t.
func (s *Store) SetTheme(t models.Theme) error {
	if !t.Valid() {
		return fmt.Errorf("unknown theme %q", t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(file{Theme: t}); err != nil {
		return err
	}
	s.theme = t
	return nil
}

// Toggle flips between light and dark and returns the new theme.
func (s *Store) Toggle() (models.Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.theme.Toggled()
	if err := s.save(file{Theme: next}); err != nil {
		return s.theme, err
	}
	s.theme = next
	return next, nil
}

func (s *Store) save(f file) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create preferences directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return os.Rename(tmp, s.path)
}
