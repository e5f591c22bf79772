// Package locks provides single-flight locks for periodic sweeps.
package locks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	KeyRetrySweep   = "go-checkout:lock:retry-sweep"
	KeyAbandonSweep = "go-checkout:lock:abandon-sweep"
)

// Locker hands out at most one live lease per key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error)
}

// Lease releases the lock it was acquired for. Releasing after the TTL
// expired and another holder took the key is a no-op.
type Lease interface {
	Release(ctx context.Context) error
}

// WithLock runs fn while holding key. It reports false without running fn
// when another holder owns the key.
func WithLock(ctx context.Context, locker Locker, key string, ttl time.Duration, fn func(context.Context) error) (bool, error) {
	if locker == nil {
		return false, fmt.Errorf("locks: locker is required")
	}
	if fn == nil {
		return false, fmt.Errorf("locks: function is required")
	}
	lease, ok, err := locker.Acquire(ctx, key, ttl)
	if err != nil || !ok {
		return false, err
	}
	defer func() {
		_ = lease.Release(context.WithoutCancel(ctx))
	}()
	return true, fn(ctx)
}

func normalizeKey(key string, ttl time.Duration) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("locks: key is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("locks: ttl must be positive")
	}
	return key, nil
}

func newToken() string {
	return uuid.NewString()
}
