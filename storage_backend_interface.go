package pitfeat

import "context"

// StorageBackend stores opaque snapshot blobs under string keys.
// Read of a missing key returns an error wrapping fs.ErrNotExist.
type StorageBackend interface {
	// Read returns the blob stored under key.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write stores data under key, replacing any previous blob.
	Write(ctx context.Context, key string, data []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all keys with the given prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists reports whether key is stored.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases any resources.
	Close() error
}

var (
	_ StorageBackend = (*FileBackend)(nil)
	_ StorageBackend = (*S3Backend)(nil)
	_ StorageBackend = (*MemoryBackend)(nil)
)
