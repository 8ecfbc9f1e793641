// Package workspace allocates and resets the isolated directories tests
// execute inside.
//
// Layout under the data root:
//
//	<root>/<suite>/                  suite-scoped directory, wiped per run
//	<root>/<suite>/<test>/           per-test directory
//	<root>/<suite>/<test>/work/      the test body's working directory
//
// The manager never changes the current directory of the harness process;
// the work directory travels with the test context and is applied to
// spawned child processes only.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultRoot is the conventional data directory relative to the suite's
// own working directory.
const DefaultRoot = ".testdata"

// Manager creates and resets suite- and test-scoped directories under a
// single root.
type Manager struct {
	root string
}

// NewManager returns a manager rooted at root. An empty root uses
// DefaultRoot.
func NewManager(root string) *Manager {
	if root == "" {
		root = DefaultRoot
	}
	return &Manager{root: root}
}

// Root returns the data root directory.
func (m *Manager) Root() string {
	return m.root
}

// SuiteDir returns the suite-scoped directory for the named suite.
func (m *Manager) SuiteDir(suite string) string {
	return filepath.Join(m.root, suite)
}

// TestDir returns the per-test directory for the named test.
func (m *Manager) TestDir(suite, test string) string {
	return filepath.Join(m.SuiteDir(suite), test)
}

// ResetSuite removes and recreates the suite-scoped directory, so no run
// observes artifacts (including counters) left by a prior run of the same
// suite name.
func (m *Manager) ResetSuite(suite string) error {
	dir := m.SuiteDir(suite)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing suite dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating suite dir: %w", err)
	}
	return nil
}

// Acquire removes any prior per-test directory and recreates it empty,
// together with the nested work/ subdirectory the test body runs in.
// It returns the test directory and the work directory.
func (m *Manager) Acquire(suite, test string) (dir, workDir string, err error) {
	dir = m.TestDir(suite, test)
	if err := os.RemoveAll(dir); err != nil {
		return "", "", fmt.Errorf("removing test dir: %w", err)
	}
	workDir = filepath.Join(dir, "work")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating work dir: %w", err)
	}
	return dir, workDir, nil
}
