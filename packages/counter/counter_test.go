package counter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ReadAbsent(t *testing.T) {
	s := NewStore(t.TempDir())
	assert.Equal(t, 0, s.Read("test-count"))
}

func TestStore_Increment(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "suite"))

	v, err := s.Increment("test-count")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = s.Increment("test-count")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, s.Read("test-count"))
}

func TestStore_FileContentIsDecimal(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	_, err := s.Increment("fail-count")
	require.NoError(t, err)
	_, err = s.Increment("fail-count")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "fail-count"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(data))
}

func TestStore_IndependentCounters(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Increment("error-count")
	require.NoError(t, err)

	assert.Equal(t, 1, s.Read("error-count"))
	assert.Equal(t, 0, s.Read("skip-count"))
}

func TestStore_CrossInstanceVisibility(t *testing.T) {
	// A second store over the same directory models a parent process
	// reading counters written by an exited child.
	dir := t.TempDir()

	writer := NewStore(dir)
	_, err := writer.Increment("test-count")
	require.NoError(t, err)

	reader := NewStore(dir)
	assert.Equal(t, 1, reader.Read("test-count"))
}

func TestStore_Reset(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Increment("error-count")
	require.NoError(t, err)
	require.NoError(t, s.Reset("error-count"))
	assert.Equal(t, 0, s.Read("error-count"))

	// Resetting an absent counter is not an error.
	require.NoError(t, s.Reset("error-count"))
}

func TestStore_GarbageContentReadsZero(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test-count"), []byte("not a number"), 0o644))

	s := NewStore(dir)
	assert.Equal(t, 0, s.Read("test-count"))
}
