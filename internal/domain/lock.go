package domain

import (
	"context"
	"time"
)

// Lease is a single-flight lock record for one user.
type Lease struct {
	Key       string
	Owner     string
	ExpiresAt time.Time
}

// LockStore is the key-value collaborator behind the Lock Manager.
//
// CreateIfAbsent must be atomic: it stores lease and returns true only when
// no record exists for lease.Key or the existing record expired at or before
// now. It returns false without error on contention.
//
// Delete removes the record unconditionally; deleting a missing key is not
// an error.
type LockStore interface {
	CreateIfAbsent(ctx context.Context, lease Lease, now time.Time) (bool, error)
	Delete(ctx context.Context, key string) error
}

// LockPurger is implemented by stores without native expiry.
type LockPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
