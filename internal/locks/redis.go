package locks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// OrphanedLockAge is the idle age after which a lock is considered orphaned
const OrphanedLockAge = 60 * time.Second

// RedisManager implements Manager on top of Redis. Safe across
// processes: acquisition is an atomic SET NX EX and release/extend use
// Lua scripts so an instance never touches a lock it no longer owns.
type RedisManager struct {
	redis      *redis.Client
	instanceID string
}

type redisLock struct {
	key        string
	value      string
	manager    *RedisManager
	ttl        time.Duration
	acquiredAt time.Time
}

// NewRedisManager creates a new Redis-backed lock manager instance
func NewRedisManager(redisClient *redis.Client) *RedisManager {
	return &RedisManager{
		redis:      redisClient,
		instanceID: uuid.New().String(),
	}
}

// Acquire attempts to take a lock with timeout and retry logic:
// atomic SET NX EX, exponential backoff between attempts, orphaned
// lock detection and cleanup.
func (m *RedisManager) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	if ttl == 0 {
		ttl = DefaultLockTTL
	}

	acquireCtx, cancel := context.WithTimeout(ctx, DefaultAcquireTimeout)
	defer cancel()

	lockValue := fmt.Sprintf("%s:%s", m.instanceID, uuid.New().String())
	lockKey := fmt.Sprintf("lock:%s", key)

	var lastErr error
	for attempt := 0; attempt < DefaultRetryAttempts; attempt++ {
		select {
		case <-acquireCtx.Done():
			log.Printf("[LOCK] Context cancelled while acquiring lock: %s (attempt %d/%d)", lockKey, attempt+1, DefaultRetryAttempts)
			return nil, ErrLockTimeout
		default:
		}

		acquired, err := m.redis.SetNX(acquireCtx, lockKey, lockValue, ttl).Result()
		if err != nil {
			lastErr = fmt.Errorf("redis error: %w", err)
			log.Printf("[LOCK] Redis error on attempt %d/%d for lock %s: %v", attempt+1, DefaultRetryAttempts, lockKey, err)
			time.Sleep(backoff(attempt))
			continue
		}

		if acquired {
			return &redisLock{
				key:        lockKey,
				value:      lockValue,
				manager:    m,
				ttl:        ttl,
				acquiredAt: time.Now(),
			}, nil
		}

		log.Printf("[LOCK] Lock already held: %s (attempt %d/%d)", lockKey, attempt+1, DefaultRetryAttempts)

		if err := m.checkAndCleanOrphanedLock(acquireCtx, lockKey); err != nil {
			log.Printf("[LOCK] Failed to check orphaned lock: %v", err)
		}

		lastErr = ErrLockAlreadyHeld

		select {
		case <-acquireCtx.Done():
			return nil, ErrLockTimeout
		case <-time.After(backoff(attempt)):
		}
	}

	log.Printf("[LOCK] Failed to acquire lock after %d attempts: %s", DefaultRetryAttempts, lockKey)
	if lastErr == nil {
		lastErr = ErrLockTimeout
	}
	return nil, lastErr
}

// Release deletes the lock only if this instance still owns it.
func (l *redisLock) Release(ctx context.Context) error {
	if l == nil {
		return ErrLockNotHeld
	}

	// only delete when the stored value is ours, otherwise we could
	// remove a lock another instance took after ours expired
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	result, err := script.Run(ctx, l.manager.redis, []string{l.key}, l.value).Result()
	if err != nil {
		log.Printf("[LOCK] Error releasing lock %s: %v", l.key, err)
		return fmt.Errorf("failed to release lock: %w", err)
	}

	if result == int64(0) {
		log.Printf("[LOCK] Lock %s was not held by this instance (may have expired)", l.key)
		return ErrLockNotHeld
	}

	log.Printf("[LOCK] Released lock: %s (held for %v)", l.key, time.Since(l.acquiredAt))
	return nil
}

// Extend pushes out the lock TTL if this instance still owns it.
func (l *redisLock) Extend(ctx context.Context, additionalTTL time.Duration) error {
	if l == nil {
		return ErrLockNotHeld
	}

	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("expire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)

	result, err := script.Run(ctx, l.manager.redis, []string{l.key}, l.value, int(additionalTTL.Seconds())).Result()
	if err != nil {
		log.Printf("[LOCK] Error extending lock %s: %v", l.key, err)
		return fmt.Errorf("failed to extend lock: %w", err)
	}

	if result == int64(0) {
		log.Printf("[LOCK] Lock %s was not held by this instance", l.key)
		return ErrLockNotHeld
	}

	l.ttl += additionalTTL
	return nil
}

func (m *RedisManager) checkAndCleanOrphanedLock(ctx context.Context, lockKey string) error {
	// OBJECT IDLETIME returns seconds since the key was last accessed
	idleTime, err := m.redis.ObjectIdleTime(ctx, lockKey).Result()
	if err != nil {
		// key gone, or the server does not support the command
		return nil
	}

	idleDuration := time.Duration(idleTime.Seconds()) * time.Second
	if idleDuration <= OrphanedLockAge {
		return nil
	}

	log.Printf("[LOCK] Detected orphaned lock: %s (idle for %v, threshold %v)", lockKey, idleDuration, OrphanedLockAge)

	deleted, err := m.redis.Del(ctx, lockKey).Result()
	if err != nil {
		log.Printf("[LOCK] Failed to delete orphaned lock %s: %v", lockKey, err)
		return fmt.Errorf("failed to delete orphaned lock: %w", err)
	}
	if deleted > 0 {
		log.Printf("[LOCK] Cleaned up orphaned lock: %s", lockKey)
	}
	return nil
}

// CleanupOrphanedLocks sweeps all lock keys and removes orphans.
// Called on startup before recovery runs.
func (m *RedisManager) CleanupOrphanedLocks(ctx context.Context) (int, error) {
	keys, err := m.redis.Keys(ctx, "lock:*").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list locks: %w", err)
	}

	cleaned := 0
	for _, key := range keys {
		if err := m.checkAndCleanOrphanedLock(ctx, key); err != nil {
			log.Printf("[LOCK] Failed to check lock %s: %v", key, err)
			continue
		}
		exists, _ := m.redis.Exists(ctx, key).Result()
		if exists == 0 {
			cleaned++
		}
	}

	log.Printf("[LOCK] Orphaned lock cleanup complete: cleaned %d/%d locks", cleaned, len(keys))
	return cleaned, nil
}
