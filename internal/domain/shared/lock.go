package shared

import (
	"context"
	"errors"
	"time"
)

// ErrLockNotObtained is returned by Locker.Obtain when another holder owns the key
var ErrLockNotObtained = errors.New("lock not obtained")

// Lock is a held key lease
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out short-lived exclusive leases on string keys. Leases expire
// after ttl even if never released.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}
