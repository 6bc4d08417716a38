// Package lock defines the distributed lock service used for seat holds
// and its Redis implementation.  A lock is a key with an owner value and
// a TTL; only the owner may release or extend it, and the backing store
// deletes it when the TTL elapses.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotHeld means the key does not exist (never taken, released or
	// expired).
	ErrNotHeld = errors.New("lock not held")
	// ErrNotOwner means the key exists but belongs to someone else.
	ErrNotOwner = errors.New("lock held by another owner")
)

// Locker is a distributed lock service.  Implementations must provide
// atomic create-if-absent with expiry, and owner-checked release and
// extension, so that correctness holds across server instances.
type Locker interface {
	// Acquire takes key for owner for ttl.  It reports false, without
	// error, when the key is already taken.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Release deletes key if owner holds it.
	Release(ctx context.Context, key, owner string) error
	// Extend adds extra to the remaining TTL of key if owner holds it.
	// When limit is positive the new remaining TTL never exceeds it.  The
	// new remaining TTL is returned.
	Extend(ctx context.Context, key, owner string, extra, limit time.Duration) (time.Duration, error)
	// Inspect returns the current owner and remaining TTL of key.
	Inspect(ctx context.Context, key string) (string, time.Duration, error)
}
