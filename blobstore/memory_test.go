package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "a/one", []byte("hello")))

	b, err := store.Open(ctx, "a/one")
	require.NoError(t, err)
	assert.Equal(t, int64(5), b.Size())

	data, err := io.ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	require.NoError(t, b.Close())
}

func TestMemoryStore_CreateVisibleOnClose(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	w, err := store.Create(ctx, "blob")
	require.NoError(t, err)

	_, err = w.Write([]byte("part1"))
	require.NoError(t, err)

	_, err = store.Open(ctx, "blob")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = w.Write([]byte("part2"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	b, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	data, err := io.ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, "part1part2", string(data))
}

func TestMemoryStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "x/2", nil))
	require.NoError(t, store.Put(ctx, "x/1", nil))
	require.NoError(t, store.Put(ctx, "y/1", nil))

	names, err := store.List(ctx, "x/")
	require.NoError(t, err)
	assert.Equal(t, []string{"x/1", "x/2"}, names)

	require.NoError(t, store.Delete(ctx, "x/1"))
	require.NoError(t, store.Delete(ctx, "x/1")) // idempotent

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"x/2", "y/1"}, names)
}

func TestMemoryStore_IsolatesCallers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "blob", data))
	data[0] = 'z' // caller mutation must not leak in

	b, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	got, err := io.ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
