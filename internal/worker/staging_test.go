package worker

import (
	"os"
	"testing"

	"github.com/fabseal/fabseal/internal/worker/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaging_Finish(t *testing.T) {
	s, err := NewStaging(t.TempDir(), []byte("PNGDATA"))
	require.NoError(t, err)

	staged, err := os.ReadFile(s.InputPath())
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), staged)

	out, err := os.Stat(s.OutputPath())
	require.NoError(t, err)
	assert.Zero(t, out.Size())

	require.NoError(t, os.WriteFile(s.OutputPath(), []byte("solid model"), 0o600))

	data, err := s.Finish()
	require.NoError(t, err)
	assert.Equal(t, []byte("solid model"), data)
	assertRemoved(t, s.InputPath(), s.OutputPath())
}

func TestStaging_Abort(t *testing.T) {
	s, err := NewStaging(t.TempDir(), []byte("PNGDATA"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.OutputPath(), []byte("partial"), 0o600))

	require.NoError(t, s.Abort())
	assertRemoved(t, s.InputPath(), s.OutputPath())

	// a second cleanup is a no-op, and the output can no longer be consumed
	assert.NoError(t, s.Abort())
	_, err = s.Finish()
	assert.Error(t, err)
}

func TestStaging_EmptyOutput(t *testing.T) {
	s, err := NewStaging(t.TempDir(), []byte("PNGDATA"))
	require.NoError(t, err)

	_, err = s.Finish()
	assert.ErrorIs(t, err, domain.ErrEmptyOutput)
	assertRemoved(t, s.InputPath(), s.OutputPath())
}

func TestStaging_OutputRemovedByTool(t *testing.T) {
	s, err := NewStaging(t.TempDir(), []byte("PNGDATA"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(s.OutputPath()))

	_, err = s.Finish()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read output file")
	assertRemoved(t, s.InputPath())
}

func TestStaging_DistinctPaths(t *testing.T) {
	dir := t.TempDir()

	a, err := NewStaging(dir, []byte("a"))
	require.NoError(t, err)
	defer a.Abort()
	b, err := NewStaging(dir, []byte("b"))
	require.NoError(t, err)
	defer b.Abort()

	assert.NotEqual(t, a.InputPath(), a.OutputPath())
	assert.NotEqual(t, a.InputPath(), b.InputPath())
	assert.NotEqual(t, a.OutputPath(), b.OutputPath())
}

func TestNewStaging_BadDir(t *testing.T) {
	_, err := NewStaging("/nonexistent/fabseal/dir", []byte("x"))
	assert.Error(t, err)
}
