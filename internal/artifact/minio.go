package artifact

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore serves artifacts from a MinIO or other S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStore creates a MinioStore. prefix is prepended to every name.
func NewMinioStore(client *minio.Client, bucket, prefix string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket, prefix: prefix}
}

// NewMinioStoreFromConfig connects to cfg.Endpoint with static credentials.
func NewMinioStoreFromConfig(cfg Config) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("artifact: minio backend requires an endpoint and a bucket")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: minio client: %w", err)
	}
	return NewMinioStore(client, cfg.Bucket, cfg.Prefix), nil
}

// Open streams the object for name. Existence is checked first so a missing
// object is reported as ErrNotFound rather than on first read.
func (s *MinioStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := objectKey(s.prefix, name)

	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		switch resp.Code {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, s.bucket, key)
		}
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}
