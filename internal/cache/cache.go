package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

type Store interface {
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// SetNX stores the value only when the key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error)

	// Incr increments a counter. The window starts with the first increment.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}
