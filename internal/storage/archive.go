package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

type Archive struct {
	store ObjectStore
	now   func() time.Time
	newID func() string
}

func NewArchive(store ObjectStore) (*Archive, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	return &Archive{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}, nil
}

// PutUpload stores an uploaded file under its dated upload key.
func (a *Archive) PutUpload(ctx context.Context, fileName string, body io.Reader, size int64, contentType string) (ObjectInfo, error) {
	key, err := UploadKey(fileName, a.newID(), a.now())
	if err != nil {
		return ObjectInfo{}, err
	}
	return a.store.Put(ctx, key, body, size, PutOptions{ContentType: contentType})
}

func (a *Archive) PutExport(ctx context.Context, table, extension string, data []byte, contentType string) (ObjectInfo, error) {
	key, err := ExportKey(table, extension, a.newID(), a.now())
	if err != nil {
		return ObjectInfo{}, err
	}
	return a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), PutOptions{ContentType: contentType})
}

// Open returns an archived object and its metadata. The caller closes the
// reader.
func (a *Archive) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ValidateArchiveKey(key); err != nil {
		return nil, ObjectInfo{}, err
	}
	info, err := a.store.Stat(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	reader, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	return reader, info, nil
}

// Remove deletes an archived object; a missing object is not an error.
func (a *Archive) Remove(ctx context.Context, key string) error {
	if err := ValidateArchiveKey(key); err != nil {
		return err
	}
	return a.store.Delete(ctx, key)
}
