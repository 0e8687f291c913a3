// Package cache provides the coordination primitives shared by sync runs.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrLockNotAcquired is returned when another holder owns the key
var ErrLockNotAcquired = errors.New("lock not acquired")

// DefaultLockTTL bounds how long a crashed holder can block a shared key
const DefaultLockTTL = 30 * time.Minute

// DefaultKeyPrefix namespaces sync lock keys. Lockers use keys as given;
// callers apply the prefix.
const DefaultKeyPrefix = "finsync:sync:"

// Locker hands out exclusive, non-blocking leases on a key.
// Acquire returns ErrLockNotAcquired immediately when the key is held.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}
