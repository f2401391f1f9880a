package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/Kerhoff/chorebot/internal/models"
)

// GCS stores proof objects in a Google Cloud Storage bucket using the
// application default credentials.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS connects to the bucket.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (s *GCS) prefix() string {
	return "gs://" + s.bucket + "/"
}

func (s *GCS) Save(ctx context.Context, r io.Reader, medium models.Medium) (string, error) {
	name := newObjectName(medium)

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	if medium == models.MediumVideo {
		w.ContentType = "video/mp4"
	} else {
		w.ContentType = "image/jpeg"
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to upload proof: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish proof upload: %w", err)
	}

	return s.prefix() + name, nil
}

func (s *GCS) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if !s.Owns(ref) {
		return nil, ErrUnknownRef
	}
	reader, err := s.client.Bucket(s.bucket).Object(strings.TrimPrefix(ref, s.prefix())).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open proof object: %w", err)
	}
	return reader, nil
}

func (s *GCS) Owns(ref string) bool {
	return strings.HasPrefix(ref, s.prefix())
}

// Close releases the client.
func (s *GCS) Close() error {
	return s.client.Close()
}
