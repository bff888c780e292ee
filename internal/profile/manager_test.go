package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "Default", "Cookies"), "session=abc")
	writeFile(t, filepath.Join(src, "Local State"), "{}")
	writeFile(t, filepath.Join(src, "SingletonLock"), "pid")

	require.NoError(t, m.Snapshot("default", src))

	dst := filepath.Join(t.TempDir(), "restored")
	ok, err := m.Restore("default", dst)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := os.ReadFile(filepath.Join(dst, "Default", "Cookies"))
	require.NoError(t, err)
	assert.Equal(t, "session=abc", string(data))
	assert.NoFileExists(t, filepath.Join(dst, "SingletonLock"))

	profiles, err := m.List()
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "default", profiles[0].Name)
}

func TestRestoreMissingProfile(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	ok, err := m.Restore("nobody", t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidNames(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, m.Snapshot("../etc", t.TempDir()))
	_, err = m.Restore("a/b", t.TempDir())
	assert.Error(t, err)
	assert.Error(t, m.Delete(""))
}

func TestDelete(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "Cookies"), "x")
	require.NoError(t, m.Snapshot("p1", src))
	require.NoError(t, m.Delete("p1"))
	require.NoError(t, m.Delete("p1"))

	_, err = m.Get("p1")
	assert.Error(t, err)
}
