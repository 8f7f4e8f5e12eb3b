// Package objectstore stores and retrieves the original statement document
// bytes in Google Cloud Storage for the async parse path. The core pipeline
// never touches it directly; only the API upload handler and the worker do.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Store reads and writes statement documents by GCS URI.
type Store interface {
	Upload(ctx context.Context, bucket, objectName, contentType string, body io.Reader) (string, error)
	Fetch(ctx context.Context, gcsURI string) ([]byte, error)
}

// GCSStore is the Cloud Storage implementation of Store. Application
// Default Credentials are assumed.
type GCSStore struct {
	uploadTimeout time.Duration
}

// NewGCSStore creates a store with the default per-upload timeout.
func NewGCSStore() *GCSStore {
	return &GCSStore{uploadTimeout: 2 * time.Minute}
}

// Upload writes the body to gs://bucket/objectName and returns the URI.
func (s *GCSStore) Upload(ctx context.Context, bucket, objectName, contentType string, body io.Reader) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("Upload: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	w := client.Bucket(bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Upload: copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Upload: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", bucket, objectName), nil
}

// Fetch downloads the object bytes behind a gs:// URI.
func (s *GCSStore) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := splitURI(gcsURI)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: create storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// FilenameFromURI extracts the filename from a GCS URI.
// e.g. "gs://bucket/folder/file.pdf" -> "file.pdf".
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

var _ Store = (*GCSStore)(nil)
