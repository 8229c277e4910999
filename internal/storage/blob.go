// Package storage is the boundary to the externally-owned blob store. The
// core owns only the opaque storage key recorded on attachment metadata.
package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// BlobStore writes uploaded file content and returns an opaque storage key.
type BlobStore interface {
	Put(ctx context.Context, fileName string, content io.Reader) (string, error)
}

type diskStore struct {
	dir string
}

// NewDiskStore returns a filesystem-backed blob store rooted at dir.
func NewDiskStore(dir string) BlobStore {
	return &diskStore{dir: dir}
}

func (s *diskStore) Put(_ context.Context, fileName string, content io.Reader) (string, error) {
	key := uuid.NewString() + filepath.Ext(fileName)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	dst, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, content); err != nil {
		return "", err
	}
	return key, nil
}
