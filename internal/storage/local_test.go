package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pdfBytes = append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte("x"), 100)...)
	pngBytes = append([]byte("\x89PNG\x0D\x0A\x1A\x0A"), bytes.Repeat([]byte{0}, 100)...)
)

func newStore(t *testing.T, maxBytes int64) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), maxBytes, []string{"application/pdf", "image/png", "image/jpeg", "image/webp"})
	require.NoError(t, err)
	return store
}

func TestLocalStore_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, 1<<20)

	obj, err := store.Save(ctx, "user-1", "professionalLicense", bytes.NewReader(pdfBytes))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.Equal(t, int64(len(pdfBytes)), obj.Size)
	assert.True(t, strings.HasPrefix(obj.Key, "user-1/professionalLicense-"))
	assert.True(t, strings.HasSuffix(obj.Key, ".pdf"))

	rc, err := store.Open(ctx, obj.Key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, got)

	require.NoError(t, store.Delete(ctx, obj.Key))
	_, err = store.Open(ctx, obj.Key)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoError(t, store.Delete(ctx, obj.Key))
}

func TestLocalStore_RejectsUnsupportedType(t *testing.T) {
	store := newStore(t, 1<<20)

	_, err := store.Save(context.Background(), "u", "document", strings.NewReader("just some text"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestLocalStore_RejectsOversizedAndCleansUp(t *testing.T) {
	store := newStore(t, 50)

	_, err := store.Save(context.Background(), "u", "document", bytes.NewReader(pngBytes))
	require.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(filepath.Join(store.root, "u"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	store := newStore(t, 1<<20)

	_, err := store.Open(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, store.Delete(context.Background(), ""), ErrInvalidKey)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitize("a/b.c"))
	assert.Equal(t, "_", sanitize(""))
}
