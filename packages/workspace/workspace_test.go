package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_DefaultRoot(t *testing.T) {
	m := NewManager("")
	assert.Equal(t, DefaultRoot, m.Root())
	assert.Equal(t, filepath.Join(DefaultRoot, "suite", "TestAdd"), m.TestDir("suite", "TestAdd"))
}

func TestManager_ResetSuite(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root)

	require.NoError(t, m.ResetSuite("suite"))
	stale := filepath.Join(m.SuiteDir("suite"), "leftover")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	require.NoError(t, m.ResetSuite("suite"))

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	info, err := os.Stat(m.SuiteDir("suite"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestManager_Acquire(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.ResetSuite("suite"))

	dir, workDir, err := m.Acquire("suite", "TestAdd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "work"), workDir)

	info, err := os.Stat(workDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestManager_AcquireWipesPriorRun(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.ResetSuite("suite"))

	dir, workDir, err := m.Acquire("suite", "TestAdd")
	require.NoError(t, err)
	artifact := filepath.Join(workDir, "artifact.txt")
	require.NoError(t, os.WriteFile(artifact, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "error-count"), []byte("3"), 0o644))

	dir2, _, err := m.Acquire("suite", "TestAdd")
	require.NoError(t, err)
	assert.Equal(t, dir, dir2)

	_, err = os.Stat(artifact)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "error-count"))
	assert.True(t, os.IsNotExist(err))
}

func TestManager_DifferentTestsDoNotCollide(t *testing.T) {
	m := NewManager(t.TempDir())
	require.NoError(t, m.ResetSuite("suite"))

	_, workA, err := m.Acquire("suite", "TestA")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(workA, "a.txt"), []byte("a"), 0o644))

	_, _, err = m.Acquire("suite", "TestB")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(workA, "a.txt"))
	assert.NoError(t, err)
}
