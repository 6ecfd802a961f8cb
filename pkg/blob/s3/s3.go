// Package s3 implements S3-backed blob storage for Marble.
//
// Blobs are objects under the reserved ".hash/" key prefix inside the
// configured bucket (optionally below an additional key prefix). Works with
// Amazon S3 and S3-compatible services via a custom endpoint.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/marble/pkg/blob"
)

// S3BlobStore implements blob.Store using Amazon S3 or S3-compatible storage.
//
// S3 Characteristics:
//   - PutObject is atomic per key; concurrent puts of the same digest are a
//     last-write-wins race between identical bodies, which is harmless
//   - HeadObject gives existence and size without a download
//   - Eventually consistent listings do not matter here: blobs are only ever
//     addressed point-wise by digest
//
// Thread Safety:
// Safe for concurrent use by multiple goroutines.
type S3BlobStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// S3BlobStoreConfig contains configuration for the S3 blob store.
type S3BlobStoreConfig struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix prepended to all object keys.
	// Example: "marble/" results in keys like "marble/.hash/<digest>"
	KeyPrefix string
}

// NewS3BlobStore creates an S3-backed blob store.
//
// The bucket must already exist; bucket access is verified with HeadBucket.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *S3BlobStore: Initialized store
//   - error: Missing client/bucket, inaccessible bucket, or context error
func NewS3BlobStore(ctx context.Context, cfg S3BlobStoreConfig) (*S3BlobStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &S3BlobStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: prefix,
	}, nil
}

// objectKey maps a digest to its S3 object key. S3 keys carry no leading
// slash, so the canonical "/.hash/<digest>" becomes "<prefix>.hash/<digest>".
func (s *S3BlobStore) objectKey(digest blob.Digest) string {
	return s.keyPrefix + strings.TrimPrefix(digest.Key(), "/")
}

// Put uploads data under the digest if no such object exists yet.
func (s *S3BlobStore) Put(ctx context.Context, digest blob.Digest, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := s.objectKey(digest)

	// Deduplication: skip the upload when the object is already there.
	exists, err := s.headObject(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to write blob to S3: %w", err)
	}

	return nil
}

// Get downloads the bytes stored under the digest.
func (s *S3BlobStore) Get(ctx context.Context, digest blob.Digest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := s.objectKey(digest)

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("blob %s: %w", digest, blob.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to get blob from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob body: %w", err)
	}

	return data, nil
}

// Exists checks whether an object with the digest's key is stored.
func (s *S3BlobStore) Exists(ctx context.Context, digest blob.Digest) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	return s.headObject(ctx, s.objectKey(digest))
}

func (s *S3BlobStore) headObject(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blob existence: %w", err)
	}

	return true, nil
}
