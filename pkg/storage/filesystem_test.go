package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("gradebooks/c1.csv", []byte("a,b\n"))
	require.NoError(t, err)
	require.Equal(t, "gradebooks/c1.csv", rel)

	file, err := store.Open(rel)
	require.NoError(t, err)
	body, err := io.ReadAll(file)
	require.NoError(t, file.Close())
	require.NoError(t, err)
	require.Equal(t, "a,b\n", string(body))

	require.NoError(t, store.Delete(rel))
	_, err = store.Open(rel)
	require.Error(t, err)
	require.NoError(t, store.Delete(rel))
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../secret", "/etc/passwd", "a/../../b", ""} {
		_, err := store.Save(name, []byte("x"))
		require.Error(t, err, name)
	}
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("old.csv", []byte("x"))
	require.NoError(t, err)
	_, err = store.Save("new.csv", []byte("y"))
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.csv"), past, past))

	deleted, err := store.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{"old.csv"}, deleted)
}
