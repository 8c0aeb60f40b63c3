package receipt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
)

// GCSStorage implements Storage and Presigner on a Cloud Storage bucket.
// Credentials come from Application Default Credentials.
type GCSStorage struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// NewGCSStorage opens a client for bucketName
func NewGCSStorage(ctx context.Context, bucketName string) (*GCSStorage, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSStorage{client: client, bucket: client.Bucket(bucketName)}, nil
}

// Put uploads an object
func (g *GCSStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing object %s: %w", key, err)
	}
	return nil
}

// Get downloads an object
func (g *GCSStorage) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("opening object %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("opening object %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", key, err)
	}
	return data, nil
}

// Delete removes an object
func (g *GCSStorage) Delete(ctx context.Context, key string) error {
	err := g.bucket.Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("deleting object %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("deleting object %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a V4 signed URL valid for ttl
func (g *GCSStorage) PresignGet(_ context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	expires := time.Now().Add(ttl)
	url, err := g.bucket.SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: expires,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing url for %s: %w", key, err)
	}
	return url, expires, nil
}

// Close closes the storage client
func (g *GCSStorage) Close() error {
	return g.client.Close()
}
