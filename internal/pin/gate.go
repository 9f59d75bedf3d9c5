package pin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cradoe/vestra/internal/cache"
)

// Gate remembers, per user, that the PIN was verified recently.
type Gate struct {
	store cache.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewGate(store cache.Store, ttl time.Duration) *Gate {
	return &Gate{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// attemptLockTTL bounds how long a crashed request can hold the attempt lock.
const attemptLockTTL = 10 * time.Second

func gateKey(userID string) string {
	return fmt.Sprintf("pin-gate:%s", userID)
}

func attemptKey(userID string) string {
	return fmt.Sprintf("pin-attempt:%s", userID)
}

// Open moves the user to the verified state and returns when it lapses.
func (g *Gate) Open(ctx context.Context, userID string) (time.Time, error) {
	expiresAt := g.now().Add(g.ttl).UTC()

	if err := g.store.Set(ctx, gateKey(userID), expiresAt.Format(time.RFC3339), g.ttl); err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

// Status reports whether the gate is open and until when.
func (g *Gate) Status(ctx context.Context, userID string) (bool, time.Time, error) {
	value, err := g.store.Get(ctx, gateKey(userID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, err
	}

	expiresAt, err := time.Parse(time.RFC3339, value)
	if err != nil || !g.now().Before(expiresAt) {
		return false, time.Time{}, nil
	}
	return true, expiresAt, nil
}

// Close returns the user to the unverified state.
func (g *Gate) Close(ctx context.Context, userID string) error {
	return g.store.Delete(ctx, gateKey(userID))
}

// Acquire takes the per-user attempt lock so PIN checks run one at a time.
// It reports false when another attempt holds the lock.
func (g *Gate) Acquire(ctx context.Context, userID string) (bool, error) {
	return g.store.SetNX(ctx, attemptKey(userID), "1", attemptLockTTL)
}

// Release drops the attempt lock taken by Acquire.
func (g *Gate) Release(ctx context.Context, userID string) error {
	return g.store.Delete(ctx, attemptKey(userID))
}
