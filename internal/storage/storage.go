// Package storage keeps proof photos and videos uploaded through the web
// dashboard. Proof sent through the chat bot stays on the chat platform and
// is referenced by its file id instead.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/Kerhoff/chorebot/internal/models"
)

// ErrUnknownRef is returned when a proof reference was not produced by the
// storage asked to open it.
var ErrUnknownRef = errors.New("proof reference not held by this storage")

// Storage stores proof blobs and hands back opaque references.
type Storage interface {
	Save(ctx context.Context, r io.Reader, medium models.Medium) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// Owns reports whether ref was produced by this storage.
	Owns(ref string) bool
}

func extension(medium models.Medium) string {
	if medium == models.MediumVideo {
		return ".mp4"
	}
	return ".jpg"
}

func newObjectName(medium models.Medium) string {
	return uuid.NewString() + extension(medium)
}
