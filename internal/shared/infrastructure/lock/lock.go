// Package lock provides short-lived advisory locks for cross-process mutual
// exclusion. Server mode backs them with Redis SET NX PX; local single-user
// mode uses an in-process implementation.
package lock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock is currently held elsewhere.
var ErrNotAcquired = errors.New("lock is held by another process")

// EventSyncKey names the lock guarding progression sync for one event.
func EventSyncKey(eventID uuid.UUID) string {
	return "calbrew:sync:event:" + eventID.String()
}

// Release frees a held lock. Safe to call even after the TTL expired; the
// lock is only removed when still owned.
type Release func(ctx context.Context)

// Locker acquires advisory locks. Acquire returns ErrNotAcquired without
// blocking when the lock is held; the TTL bounds how long a crashed holder
// can keep the lock.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// unlockScript deletes the key only when it still carries our token, so an
// expired-and-reacquired lock is never released by the previous holder.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

// RedisLocker implements Locker on a Redis client.
type RedisLocker struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(client *redis.Client, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: client, logger: logger}
}

// Acquire takes the lock with SET NX PX.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	release := func(ctx context.Context) {
		if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn("failed to release lock", "key", key, "error", err)
		}
	}
	return release, nil
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker implements Locker in process memory. Expired entries are
// taken over on the next Acquire.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryLock
	clock func() time.Time
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]memoryLock),
		clock: time.Now,
	}
}

// Acquire takes the lock unless a live entry exists.
func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if existing, ok := l.held[key]; ok && existing.expiresAt.After(now) {
		return nil, ErrNotAcquired
	}

	token := uuid.NewString()
	l.held[key] = memoryLock{token: token, expiresAt: now.Add(ttl)}

	release := func(context.Context) {
		l.mu.Lock()
		defer l.mu.Unlock()
		if existing, ok := l.held[key]; ok && existing.token == token {
			delete(l.held, key)
		}
	}
	return release, nil
}
