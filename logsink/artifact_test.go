package logsink

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreWritesSessionLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	store := &FileStore{Directory: dir, Prefix: "probe"}

	artifact, err := store.Open("0-abc12345")
	require.NoError(t, err)

	require.NoError(t, artifact.Append([]byte("line one\n")))
	require.NoError(t, artifact.Append([]byte("line two\n")))
	require.NoError(t, artifact.Finalize("==== reset: entering session 1 ===="))

	data, err := os.ReadFile(filepath.Join(dir, "probe-0-abc12345.log"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n==== reset: entering session 1 ====\n", string(data))
}

func TestFileStoreDefaultPrefix(t *testing.T) {
	dir := t.TempDir()
	store := &FileStore{Directory: dir}

	artifact, err := store.Open("0-abc12345")
	require.NoError(t, err)
	require.NoError(t, artifact.Finalize(""))

	_, err = os.Stat(filepath.Join(dir, "probe-0-abc12345.log"))
	assert.NoError(t, err)
}

func TestFileArtifactAppendAfterFinalize(t *testing.T) {
	store := &FileStore{Directory: t.TempDir()}

	artifact, err := store.Open("0-abc12345")
	require.NoError(t, err)
	require.NoError(t, artifact.Finalize(""))

	err = artifact.Append([]byte("late\n"))
	require.Error(t, err)

	// Finalize again is a no-op.
	assert.NoError(t, artifact.Finalize("ignored"))
}

func TestFileStoreOpenFailure(t *testing.T) {
	dir := t.TempDir()
	// A file where the directory should be makes MkdirAll fail.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0644))

	store := &FileStore{Directory: blocked}
	_, err := store.Open("0-abc12345")
	assert.Error(t, err)
}

func TestMemoryStoreCollectsSessions(t *testing.T) {
	store := NewMemoryStore()

	a, err := store.Open("0-aaaa")
	require.NoError(t, err)
	b, err := store.Open("1-bbbb")
	require.NoError(t, err)

	require.NoError(t, a.Append([]byte("first\n")))
	require.NoError(t, a.Finalize("==== boundary ===="))
	require.NoError(t, b.Append([]byte("second\n")))

	assert.Equal(t, []string{"0-aaaa", "1-bbbb"}, store.Sessions())
	assert.Equal(t, "first\n==== boundary ====\n", store.Session("0-aaaa").Contents())
	assert.True(t, store.Session("0-aaaa").Finalized())
	assert.Equal(t, "second\n", store.Session("1-bbbb").Contents())
	assert.False(t, store.Session("1-bbbb").Finalized())
	assert.Nil(t, store.Session("missing"))
}

func TestMemoryStoreOpenErr(t *testing.T) {
	store := NewMemoryStore()
	store.OpenErr = errors.New("disk full")

	_, err := store.Open("0-aaaa")
	require.Error(t, err)
	assert.Empty(t, store.Sessions())
}

func TestMemoryArtifactAppendAfterFinalize(t *testing.T) {
	store := NewMemoryStore()
	a, err := store.Open("0-aaaa")
	require.NoError(t, err)

	require.NoError(t, a.Finalize(""))
	assert.Error(t, a.Append([]byte("late\n")))
}
