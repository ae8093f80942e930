package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romato/romato/internal/models"
)

var (
	testUser   = models.User{ID: "7", Username: "alice", Email: "alice@example.com", Role: models.RoleCustomer}
	testTokens = models.Tokens{Access: "access-1", Refresh: "refresh-1"}
)

func TestNewFileStore(t *testing.T) {
	t.Run("creates directory with correct permissions", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "session")

		store, err := NewFileStore(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, store.Dir())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	})

	t.Run("uses default directory when baseDir is empty", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		store, err := NewFileStore("")
		require.NoError(t, err)
		assert.Contains(t, store.Dir(), filepath.Join(".romato", "session"))
	})
}

func TestFileStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	t.Run("empty store has no session", func(t *testing.T) {
		_, _, err := store.Load()
		require.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("round trips the pair", func(t *testing.T) {
		require.NoError(t, store.Save(testUser, testTokens))

		user, tokens, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, testUser, *user)
		assert.Equal(t, testTokens, tokens)
	})

	t.Run("files are private", func(t *testing.T) {
		for _, name := range []string{userFile, tokensFile} {
			info, err := os.Stat(filepath.Join(dir, name))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), name)
		}

		_, err := os.Stat(filepath.Join(dir, tokensFile+".tmp"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("clear removes both files", func(t *testing.T) {
		require.NoError(t, store.Clear())
		_, _, err := store.Load()
		require.ErrorIs(t, err, ErrNoSession)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)

		// clearing twice is fine
		require.NoError(t, store.Clear())
	})
}

func TestFileStore_Partial(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(testUser, testTokens))
	require.NoError(t, os.Remove(filepath.Join(dir, userFile)))

	_, _, err = store.Load()
	require.ErrorIs(t, err, ErrNoSession)
}

func TestFileStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(testUser, testTokens))
	require.NoError(t, os.WriteFile(filepath.Join(dir, tokensFile), []byte("{not json"), 0600))

	_, _, err = store.Load()
	require.ErrorIs(t, err, ErrCorruptSession)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	_, _, err := store.Load()
	require.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, store.Save(testUser, testTokens))
	user, tokens, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, testUser, *user)
	assert.Equal(t, testTokens, tokens)

	require.NoError(t, store.Clear())
	_, _, err = store.Load()
	require.ErrorIs(t, err, ErrNoSession)
}
