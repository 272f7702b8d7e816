package locks

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLockTimeout occurs when lock acquisition times out. Callers may retry.
	ErrLockTimeout = errors.New("timeout acquiring lock")
	// ErrLockNotHeld occurs when releasing or extending a lock not held by this instance
	ErrLockNotHeld = errors.New("lock not held by this instance")
	// ErrLockAlreadyHeld occurs when lock is already held by another instance
	ErrLockAlreadyHeld = errors.New("lock already held by another instance")
)

const (
	// DefaultLockTTL is the default time-to-live for locks (30 seconds)
	DefaultLockTTL = 30 * time.Second
	// DefaultAcquireTimeout is the default timeout for acquiring locks (5 seconds)
	DefaultAcquireTimeout = 5 * time.Second
	// DefaultRetryAttempts is the default number of retry attempts
	DefaultRetryAttempts = 3
)

// Lock is a held mutual exclusion token. Release returns ErrLockNotHeld
// when the lock expired or was taken over by another holder.
type Lock interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context, additionalTTL time.Duration) error
}

// Manager serializes mutations on a shared resource. Each tournament
// mutation runs under a lock keyed by the tournament ID so a single
// writer applies engine transitions at a time.
type Manager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// TournamentKey builds the lock key guarding one tournament's state.
func TournamentKey(tournamentID string) string {
	return "tournament:" + tournamentID
}

// backoff returns the exponential retry delay for an attempt: 500ms, 1s, 2s.
func backoff(attempt int) time.Duration {
	d := time.Duration(500*(1<<attempt)) * time.Millisecond
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	return d
}
