package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile(t *testing.T) {
	t.Run("writes file with requested permissions", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sync.json")

		require.NoError(t, AtomicWriteFile(path, []byte("hello"), 0600))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("replaces existing content and leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sync.json")
		require.NoError(t, AtomicWriteFile(path, []byte("one"), 0600))
		require.NoError(t, AtomicWriteFile(path, []byte("two"), 0600))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "two", string(data))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("refuses to write to symlink", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "target.json")
		link := filepath.Join(dir, "link.json")
		require.NoError(t, os.WriteFile(target, []byte("original"), 0600))
		require.NoError(t, os.Symlink(target, link))

		err := AtomicWriteFile(link, []byte("modified"), 0600)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "symlink")

		data, _ := os.ReadFile(target)
		assert.Equal(t, "original", string(data))
	})

	t.Run("creates parent directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "local.json")
		require.NoError(t, AtomicWriteFile(path, []byte("x"), 0600))
		_, err := os.Stat(path)
		assert.NoError(t, err)
	})
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "new-dir")
	require.NoError(t, EnsureDir(dir, 0700))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	assert.NoError(t, EnsureDir(dir, 0700), "existing directory is fine")
}
