package storage

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.SaveStream("enrollments/enr-1/form137.pdf", strings.NewReader("contents"))
	require.NoError(t, err)
	assert.Equal(t, "enrollments/enr-1/form137.pdf", name)

	file, err := store.Open(name)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(len("contents")), info.Size())

	require.NoError(t, store.Delete(name))
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStorage(base)
	require.NoError(t, err)

	for _, name := range []string{
		"../outside.pdf",
		"../../etc/passwd",
		"enrollments/../../outside.pdf",
		"/etc/passwd",
	} {
		_, err := store.SaveStream(name, strings.NewReader("x"))
		assert.Error(t, err, name)

		_, err = store.Open(name)
		assert.Error(t, err, name)

		assert.Error(t, store.Delete(name), name)
		assert.Empty(t, store.Path(name), name)
	}
}

func TestLocalStoragePathStaysUnderBase(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStorage(base)
	require.NoError(t, err)

	path := store.Path("enrollments/enr-1/../enr-1/form137.pdf")
	require.NotEmpty(t, path)
	assert.Equal(t, filepath.Join(base, "enrollments", "enr-1", "form137.pdf"), path)
}
