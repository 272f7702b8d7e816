package locks

import (
	"context"
	"sync"
	"time"
)

// LocalManager implements Manager in process memory. Used in tests and
// in single-node deployments where Redis is not configured. Same
// semantics as RedisManager from the caller's side: acquisition waits
// up to DefaultAcquireTimeout and then fails with ErrLockTimeout.
type LocalManager struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

type localLock struct {
	mu       sync.Mutex
	slot     chan struct{}
	released bool
}

// NewLocalManager creates an in-process lock manager.
func NewLocalManager() *LocalManager {
	return &LocalManager{slots: make(map[string]chan struct{})}
}

func (m *LocalManager) slot(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		s <- struct{}{}
		m.slots[key] = s
	}
	return s
}

// Acquire takes the per-key token, waiting up to DefaultAcquireTimeout.
// The ttl parameter is accepted for interface parity; in-process locks
// do not expire, they live until Release or process exit.
func (m *LocalManager) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	s := m.slot(key)

	timer := time.NewTimer(DefaultAcquireTimeout)
	defer timer.Stop()

	select {
	case <-s:
		return &localLock{slot: s}, nil
	case <-ctx.Done():
		return nil, ErrLockTimeout
	case <-timer.C:
		return nil, ErrLockTimeout
	}
}

func (l *localLock) Release(ctx context.Context) error {
	if l == nil {
		return ErrLockNotHeld
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return ErrLockNotHeld
	}
	l.released = true
	l.slot <- struct{}{}
	return nil
}

// Extend is a no-op for in-process locks, which never expire.
func (l *localLock) Extend(ctx context.Context, additionalTTL time.Duration) error {
	if l == nil {
		return ErrLockNotHeld
	}
	return nil
}
