package profile

import (
	"context"
	"errors"
	"path"

	"github.com/jobfill/jobfill/internal/storage"
)

// ObjectStore is the subset of the object client the s3 backend needs.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	UploadJSON(ctx context.Context, key string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKV stores each key as one JSON object under a prefix.
type ObjectKV struct {
	store  ObjectStore
	prefix string
}

// NewObjectKV creates an object-backed store. Keys are written below prefix.
func NewObjectKV(store ObjectStore, prefix string) *ObjectKV {
	return &ObjectKV{store: store, prefix: prefix}
}

func (o *ObjectKV) Name() string { return "s3" }

func (o *ObjectKV) objectKey(key string) string {
	return path.Join(o.prefix, key+".json")
}

func (o *ObjectKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := o.store.Download(ctx, o.objectKey(key))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

func (o *ObjectKV) Set(ctx context.Context, key string, value []byte) error {
	_, err := o.store.UploadJSON(ctx, o.objectKey(key), value)
	return err
}

func (o *ObjectKV) Remove(ctx context.Context, key string) error {
	err := o.store.Delete(ctx, o.objectKey(key))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil
	}
	return err
}
