// Package storage persists evidence artifacts and reads reference images.
// Backends are the local filesystem and S3 compatible object stores.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kozaktomas/facewatch/internal/config"
)

// ErrInvalidPath is returned for keys that escape the store root.
var ErrInvalidPath = errors.New("storage: invalid path")

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading. Missing files yield an error
	// wrapping os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)
	// Write opens the named file for writing, truncating existing content.
	// The caller must close the returned WriteCloser to flush data.
	Write(ctx context.Context, path string) (io.WriteCloser, error)
	// Delete removes the named file. Missing files are not an error.
	Delete(ctx context.Context, path string) error
	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// ReadFile reads a whole file from the store.
func ReadFile(ctx context.Context, fs FileStore, path string) ([]byte, error) {
	rc, err := fs.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile stores data under path.
func WriteFile(ctx context.Context, fs FileStore, path string, data []byte) error {
	w, err := fs.Write(ctx, path)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", path, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", path, err)
	}
	return nil
}

// cleanPath validates a store key and strips leading slashes.
func cleanPath(path string) (string, error) {
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return "", ErrInvalidPath
	}
	for seg := range strings.SplitSeq(path, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
		}
	}
	return path, nil
}

// New creates the FileStore selected by the storage configuration.
func New(cfg config.StorageConfig) (FileStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.Dir)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required for the s3 storage backend")
		}
		return NewS3(NewS3Client(cfg), cfg.S3Bucket, cfg.S3Prefix), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
