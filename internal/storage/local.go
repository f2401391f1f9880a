package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Kerhoff/chorebot/internal/models"
)

const localPrefix = "upload:"

// Local stores proof files in a directory on disk.
type Local struct {
	dir string
}

// NewLocal creates the upload directory if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

func (s *Local) Save(ctx context.Context, r io.Reader, medium models.Medium) (string, error) {
	name := newObjectName(medium)

	file, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create proof file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, r); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to write proof file: %w", err)
	}
	if err := file.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync proof file: %w", err)
	}

	return localPrefix + name, nil
}

func (s *Local) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if !s.Owns(ref) {
		return nil, ErrUnknownRef
	}
	name := strings.TrimPrefix(ref, localPrefix)
	if name != filepath.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid proof name %q", name)
	}

	file, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open proof file: %w", err)
	}
	return file, nil
}

func (s *Local) Owns(ref string) bool {
	return strings.HasPrefix(ref, localPrefix)
}
