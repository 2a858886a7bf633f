package cache

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// Cache is the key/value port shared by feature adapters.
type Cache interface {
	// Get returns the value stored at key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// IncrementField adds by to a numeric hash field and returns the new value.
	IncrementField(ctx context.Context, key, field string, by int64) (int64, error)

	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error

	Close() error
}
