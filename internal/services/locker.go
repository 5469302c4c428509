package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	goredis "github.com/go-redsync/redsync/v4/redis/goredis/v8"
)

// Locker serializes balance mutations per participant. Two agents
// scanning the same wallet at the same time must not interleave the
// read-then-write sequence of the ledger.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// RedisLocker distributes the lock across instances via the RedLock
// algorithm.
type RedisLocker struct {
	rs *redsync.Redsync
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	pool := goredis.NewPool(client)
	return &RedisLocker{rs: redsync.New(pool)}
}

// WithLock runs fn while holding the named lock. The lock auto-expires
// so a crashed holder cannot deadlock the wallet.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	mutex := l.rs.NewMutex(
		key,
		redsync.WithExpiry(10*time.Second),
		redsync.WithTries(16),
		redsync.WithRetryDelay(250*time.Millisecond),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	defer func() {
		if ok, err := mutex.UnlockContext(ctx); !ok || err != nil {
			log.Printf("[LOCK] Failed to release %s: ok=%v err=%v", key, ok, err)
		}
	}()

	return fn(ctx)
}

// LocalLocker is the single-instance fallback used when Redis is
// unavailable: a mutex per key, never evicted (key space is bounded by
// the event's participant count).
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	l.mu.Lock()
	keyLock, ok := l.locks[key]
	if !ok {
		keyLock = &sync.Mutex{}
		l.locks[key] = keyLock
	}
	l.mu.Unlock()

	keyLock.Lock()
	defer keyLock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
