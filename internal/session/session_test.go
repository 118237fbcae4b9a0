package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bid2build/bid2build/internal/api/dto"
	"github.com/bid2build/bid2build/internal/domain"
)

func sample() *Session {
	return &Session{
		Token:     "tok",
		ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		User:      dto.UserResponse{ID: "u1", Email: "ada@example.com", Role: domain.RoleArchitect},
	}
}

func TestStores(t *testing.T) {
	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json")),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get()
			require.ErrorIs(t, err, ErrNoSession)

			require.NoError(t, store.Set(sample()))
			got, err := store.Get()
			require.NoError(t, err)
			assert.Equal(t, "tok", got.Token)
			assert.Equal(t, "ada@example.com", got.User.Email)
			assert.True(t, got.ExpiresAt.Equal(sample().ExpiresAt))

			next := sample()
			next.Token = "tok-2"
			require.NoError(t, store.Set(next))
			got, err = store.Get()
			require.NoError(t, err)
			assert.Equal(t, "tok-2", got.Token)

			require.NoError(t, store.Clear())
			require.NoError(t, store.Clear())
			_, err = store.Get()
			assert.ErrorIs(t, err, ErrNoSession)
		})
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "session.json"))
	require.NoError(t, store.Set(sample()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session.json", entries[0].Name())

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := NewFileStore(path).Get()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}

func TestExpired(t *testing.T) {
	s := sample()
	assert.False(t, s.Expired(s.ExpiresAt.Add(-time.Second)))
	assert.True(t, s.Expired(s.ExpiresAt))
	assert.False(t, (&Session{}).Expired(time.Now()))
}
