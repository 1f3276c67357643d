package port

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when a key has no value
var ErrNotFound = errors.New("not found")

// DraftStore is a durable key-value store already scoped to one owner
type DraftStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// DraftStoreProvider hands out owner-scoped draft stores
type DraftStoreProvider interface {
	Scope(owner string) DraftStore
}

// FileStorage defines file storage operations
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	GetFullPath(relativePath string) string
}
