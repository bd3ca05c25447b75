package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/mindtrail/internal/ports"
)

func exerciseContract(t *testing.T, store ports.KVStore) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "history", []byte(`[1]`)))
	require.NoError(t, store.Set(ctx, "history", []byte(`[1,2]`)))

	value, ok, err := store.Get(ctx, "history")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[1,2]`, string(value))

	require.NoError(t, store.Delete(ctx, "history"))
	require.NoError(t, store.Delete(ctx, "history"))

	_, ok, err = store.Get(ctx, "history")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreContract(t *testing.T) {
	exerciseContract(t, NewFileStore(t.TempDir()))
}

func TestMemoryStoreContract(t *testing.T) {
	exerciseContract(t, NewMemoryStore())
}

func TestSQLiteStoreContract(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "store.db"))
	t.Cleanup(func() { _ = store.Close() })
	require.False(t, store.Degraded())
	exerciseContract(t, store)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	first := NewSQLiteStore(path)
	require.NoError(t, first.Set(ctx, "k", []byte("v")))
	require.NoError(t, first.Close())

	second := NewSQLiteStore(path)
	t.Cleanup(func() { _ = second.Close() })
	value, ok, err := second.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(value))
}

func TestFileStoreEscapesKeys(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, store.Set(context.Background(), "../escape/attempt", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "/")
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", buf))
	buf[0] = 'z'

	value, _, _ := store.Get(ctx, "k")
	assert.Equal(t, "abc", string(value))
	value[1] = 'z'

	again, _, _ := store.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
	assert.Equal(t, 1, store.Len())
}
