// Package storage archives uploaded import files and table exports in an
// object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid archive key")
)

// ObjectInfo describes an archived file. Key never carries the store prefix.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

// ObjectStore is the bucket the archive writes to. Get and Stat return
// ErrObjectNotFound for a missing key; Delete of a missing key succeeds.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// ValidateArchiveKey accepts only clean keys below the uploads or exports
// roots, so the archive routes cannot reach other objects in the bucket.
func ValidateArchiveKey(key string) error {
	if key == "" || path.Clean(key) != key || strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	root, rest, found := strings.Cut(key, "/")
	if !found || rest == "" || (root != uploadsRoot && root != exportsRoot) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
