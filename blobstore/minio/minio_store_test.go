package minio

import (
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailuenliang/ddsp/blobstore"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-ddsp"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	_, err = client.ListBuckets(ctx)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		require.NoError(t, err)
	}

	store := NewStore(client, bucket, "test-prefix/")

	// Put and Open
	data := []byte("codebook snapshot bytes")
	require.NoError(t, store.Put(ctx, "cb.vqsn", data))

	b, err := store.Open(ctx, "cb.vqsn")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), b.Size())

	got, err := io.ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	require.NoError(t, b.Close())

	// Streaming create
	w, err := store.Create(ctx, "stream.vqsn")
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// List
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "cb.vqsn")
	assert.Contains(t, names, "stream.vqsn")

	// Delete
	require.NoError(t, store.Delete(ctx, "cb.vqsn"))
	require.NoError(t, store.Delete(ctx, "stream.vqsn"))

	_, err = store.Open(ctx, "cb.vqsn")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
