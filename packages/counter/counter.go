package counter

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store reads and writes named counters rooted at a single directory.
type Store struct {
	dir string
}

// NewStore returns a store whose counters live directly under dir.
// The directory is created on the first increment, not here.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory the store is rooted at.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Read returns the current value of the named counter, or 0 if the
// counter file does not exist.
func (s *Store) Read(name string) int {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// Increment adds one to the named counter and returns the new value.
// The value is written back immediately so a parent process can read it
// after this process exits.
func (s *Store) Increment(name string) (int, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating counter dir: %w", err)
	}
	v := s.Read(name) + 1
	if err := os.WriteFile(s.path(name), []byte(strconv.Itoa(v)), 0o644); err != nil {
		return 0, fmt.Errorf("writing counter %s: %w", name, err)
	}
	return v, nil
}

// Reset removes the named counter file so the next Read returns 0.
func (s *Store) Reset(name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("resetting counter %s: %w", name, err)
	}
	return nil
}
