package docstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tessera-search/tessera/pkg/config"
	apperrors "github.com/tessera-search/tessera/pkg/errors"
)

// MinioStore is an ObjectStore backed by MinIO or any S3-compatible store.
// All objects live in one physical bucket; the logical (bucket, key) pair
// maps to the object key <prefix>/<bucket>/<key>.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStore connects to the configured endpoint and verifies the bucket
// exists.
func NewMinioStore(ctx context.Context, cfg config.MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *MinioStore) objectKey(bucket, key string) string {
	return path.Join(s.prefix, bucket, key)
}

// Get reads the object's full contents.
func (s *MinioStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(bucket, key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting object %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, fmt.Errorf("%w: object %s/%s", apperrors.ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("reading object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Put writes the object atomically.
func (s *MinioStore) Put(ctx context.Context, bucket, key string, value []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(bucket, key),
		bytes.NewReader(value), int64(len(value)), minio.PutObjectOptions{
			ContentType: "application/json",
		})
	if err != nil {
		return fmt.Errorf("putting object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (s *MinioStore) Delete(ctx context.Context, bucket, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(bucket, key), minio.RemoveObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil
		}
		return fmt.Errorf("deleting object %s/%s: %w", bucket, key, err)
	}
	return nil
}
