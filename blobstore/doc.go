// Package blobstore abstracts where codebook snapshots live.
//
// A Store holds named immutable blobs. Training code writes snapshots
// through the snapshot package and never touches a Store directly, but the
// interface is small enough to back with anything:
//
//   - MemoryStore: in-memory, for tests
//   - LocalStore: local filesystem with atomic rename on Close
//   - s3.Store: Amazon S3 via aws-sdk-go-v2
//   - minio.Store: MinIO and other S3-compatible object stores
package blobstore
