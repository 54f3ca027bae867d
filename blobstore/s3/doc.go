// Package s3 provides an Amazon S3 backed blobstore.Store.
//
// Snapshots upload through a pipe into the aws-sdk-go-v2 multipart uploader,
// so arbitrarily large codebooks stream without buffering in memory.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(s3sdk.NewFromConfig(cfg), "my-bucket", "run-42/")
package s3
