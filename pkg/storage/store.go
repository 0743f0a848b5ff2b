package storage

import "context"

// Storage is a durable key/value store.
// Implementations must be safe for concurrent use.
type Storage interface {
	// GetItem returns the value stored under key.
	// Returns (nil, nil) if the key doesn't exist.
	GetItem(ctx context.Context, key string) ([]byte, error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(ctx context.Context, key string, value []byte) error

	// RemoveItem deletes key.
	// Should not return an error if the key doesn't exist.
	RemoveItem(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// ErrStoreClosed is returned when operations are attempted on a closed store.
type ErrStoreClosed struct{}

func (e ErrStoreClosed) Error() string {
	return "storage is closed"
}

// InvalidKeyError is returned for keys a backend cannot represent.
type InvalidKeyError struct {
	Key string
}

func (e InvalidKeyError) Error() string {
	return "invalid storage key: " + e.Key
}
