// Package prefs provides a thread-safe store for the tool's own preferences:
// recently opened projects, the preferred package index and whether
// package-manager commands open a terminal window by default. The store is a
// single JSON file replaced atomically on every change.
package prefs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/renameio/v2"
)

// MaxRecent bounds the recent projects list.
const MaxRecent = 10

// Store manages preferences persisted to a JSON file.
type Store struct {
	// wmu orders writers so the file always holds the newest snapshot.
	wmu      sync.Mutex
	mu       sync.RWMutex
	recent   []string
	index    string
	window   bool
	filePath string
}

// fileFormat is the JSON structure written to disk.
type fileFormat struct {
	RecentProjects []string `json:"recent_projects"`
	Index          string   `json:"index,omitempty"`
	NewWindow      bool     `json:"new_window"`
}

// DefaultPath returns prefs.json under the user configuration directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("prefs: config dir: %w", err)
	}

	return filepath.Join(dir, "nbdesk", "prefs.json"), nil
}

// New creates a Store backed by the given file. Existing data is loaded
// immediately; a missing file yields defaults.
func New(filePath string) (*Store, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("prefs: resolve path: %w", err)
	}

	s := &Store{filePath: abs}
	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.filePath }

// Recent returns recently opened projects, most recent first.
func (s *Store) Recent() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.recent)
}

// AddRecent moves dir to the front of the recent list and persists it.
func (s *Store) AddRecent(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("prefs: resolve project: %w", err)
	}

	return s.update(func() {
		s.recent = slices.DeleteFunc(s.recent, func(d string) bool { return d == abs })
		s.recent = append([]string{abs}, s.recent...)
		if len(s.recent) > MaxRecent {
			s.recent = s.recent[:MaxRecent]
		}
	})
}

// Index returns the preferred package index, empty for the default.
func (s *Store) Index() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.index
}

// SetIndex stores the preferred package index.
func (s *Store) SetIndex(index string) error {
	return s.update(func() { s.index = index })
}

// NewWindow reports whether commands run in a terminal window by default.
func (s *Store) NewWindow() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.window
}

// SetNewWindow stores the default window mode.
func (s *Store) SetNewWindow(on bool) error {
	return s.update(func() { s.window = on })
}

// --- persistence ---

// update applies fn under the data lock and persists the result.
func (s *Store) update(fn func()) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	fn()
	snap := s.snapshot()
	s.mu.Unlock()

	return s.persistSnapshot(snap)
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("prefs: read file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	var ff fileFormat
	if err := json.Unmarshal(trimmed, &ff); err != nil {
		return fmt.Errorf("prefs: parse file: %w", err)
	}

	s.recent = ff.RecentProjects
	if len(s.recent) > MaxRecent {
		s.recent = s.recent[:MaxRecent]
	}
	s.index = ff.Index
	s.window = ff.NewWindow

	return nil
}

// snapshot returns a copy of the current data. Must be called while s.mu is
// held.
func (s *Store) snapshot() fileFormat {
	return fileFormat{
		RecentProjects: append(make([]string, 0, len(s.recent)), s.recent...),
		Index:          s.index,
		NewWindow:      s.window,
	}
}

// persistSnapshot writes the given snapshot to disk. It must be called
// outside s.mu so that blocking I/O does not hold up readers.
func (s *Store) persistSnapshot(ff fileFormat) error {
	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("prefs: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o750); err != nil {
		return fmt.Errorf("prefs: create dir: %w", err)
	}

	if err := renameio.WriteFile(s.filePath, data, 0o600); err != nil {
		return fmt.Errorf("prefs: write file: %w", err)
	}

	return nil
}
