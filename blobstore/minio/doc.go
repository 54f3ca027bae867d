// Package minio provides a MinIO backed blobstore.Store for codebook
// snapshots, usable against any S3-compatible object store.
//
//	client, _ := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	store := NewStore(client, "checkpoints", "run-42/")
package minio
