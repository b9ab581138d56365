package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack/internal/platform/fsutil"
)

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "data.json")

	require.NoError(t, fsutil.WriteFileAtomic(path, []byte("first"), 0o644))
	require.NoError(t, fsutil.WriteFileAtomic(path, []byte("second"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "data.json", entries[0].Name())
}

func TestWriteFileAtomicFailsWhenTargetIsDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	target := filepath.Join(dir, "taken")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0o755))

	err := fsutil.WriteFileAtomic(target, []byte("x"), 0o644)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed writes must clean up their temp file")
}
