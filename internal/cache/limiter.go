package cache

import (
	"context"
	"fmt"
	"time"
)

// Limiter is a fixed-window request counter keyed by caller.
type Limiter struct {
	store  Store
	prefix string
	limit  int64
	window time.Duration
}

func NewLimiter(store Store, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

func (l *Limiter) Window() time.Duration {
	return l.window
}

// Allow records one hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.store.Incr(ctx, fmt.Sprintf("ratelimit:%s:%s", l.prefix, key), l.window)
	if err != nil {
		return false, err
	}
	return count <= l.limit, nil
}
