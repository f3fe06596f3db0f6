// Package gcs provides an archive.BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"maps"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/quote-crawler/internal/archive"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

// BlobStore writes archived pages to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Open builds a client from Application Default Credentials and verifies the
// bucket is reachable before returning the store.
func Open(ctx context.Context, cfg Config) (*BlobStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("bucket %q attributes: %w", cfg.Bucket, err)
	}
	return New(client, cfg)
}

// Close releases the underlying client.
func (s *BlobStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close storage client: %w", err)
	}
	return nil
}

// PutObject uploads the page to the configured bucket and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, obj archive.Object) (string, error) {
	if strings.TrimSpace(obj.Path) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := s.client.Bucket(s.bucket).Object(obj.Path).NewWriter(ctx)
	if obj.ContentType != "" {
		writer.ContentType = obj.ContentType
	}
	if len(obj.Metadata) > 0 {
		writer.Metadata = maps.Clone(obj.Metadata)
	}
	if _, err := io.Copy(writer, obj.Body); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, obj.Path), nil
}
