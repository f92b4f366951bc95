// Package storage writes pipeline artifacts (spreadsheets, reports, CSV
// sidecars) into an output directory.
package storage

import (
	"context"
	"io"
	"time"
)

// FileInfo describes a stored artifact.
type FileInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"` // absolute path on disk
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Storage defines the artifact storage operations
type Storage interface {
	// Put writes name atomically, replacing any previous content
	Put(ctx context.Context, name string, r io.Reader) (*FileInfo, error)

	// Open returns a reader for a stored artifact
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Path returns the absolute path name is (or would be) stored at
	Path(name string) string
}

// Factory opens the storage rooted at dir. Workers derive the output
// directory per document.
type Factory func(dir string) (Storage, error)

// LocalFactory returns a Factory backed by LocalStorage.
func LocalFactory() Factory {
	return func(dir string) (Storage, error) {
		return NewLocalStorage(dir)
	}
}
