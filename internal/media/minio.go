// Package media stores uploaded images (lodging photos, agency logos)
// in S3-compatible object storage and hands back the public URL that
// goes into the document.
package media

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"nexus/api/internal/util"
)

// Store wraps a MinIO client bound to one bucket.
type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// New connects to the object store and makes sure the bucket exists.
// Returns nil with a log line when no endpoint is configured; uploads
// then fail with a configuration error at call time.
func New(endpoint, accessKey, secretKey, bucket, publicURL string, useSSL bool) (*Store, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, nil
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		log.Printf("media: created bucket %s", bucket)
	}

	return &Store{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Upload stores one image under a generated key and returns its public
// URL. The conversation id prefixes the key so a proposal's images live
// together.
func (s *Store) Upload(ctx context.Context, conversationID, filename, contentType string, size int64, r io.Reader) (string, error) {
	key := fmt.Sprintf("%s/%s-%s", conversationID, util.NewID("img"), sanitizeKey(filename))
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key), nil
}

// sanitizeKey keeps object keys to a safe character set.
func sanitizeKey(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := b.String()
	if out == "" {
		out = "image"
	}
	return out
}
