package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voyagen/streamvault/internal/cache"
	"github.com/voyagen/streamvault/internal/upstream"
)

// Lease is a held sync lock. Refresh re-arms the TTL so a long detail stage
// cannot outlive the lock and admit a second concurrent run.
type Lease interface {
	Refresh(ctx context.Context) error
	Unlock()
}

// Locker guards one sync run per provider. TryLock returns a Lease on
// success and upstream.ErrSyncRunning when another run holds the lock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// RedisLocker uses the shared Redis SET NX EX lock.
type RedisLocker struct {
	Redis *cache.Redis
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	lock, err := cache.TryLock(ctx, l.Redis, key, ttl)
	if errors.Is(err, cache.ErrLocked) {
		return nil, upstream.ErrSyncRunning
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// LocalLocker is the in-process fallback used when Redis is not configured.
// It gives the same guarantee for a single application instance.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, _ time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, upstream.ErrSyncRunning
	}
	l.held[key] = true
	return &localLease{locker: l, key: key}, nil
}

// localLease never expires, so Refresh has nothing to do.
type localLease struct {
	locker *LocalLocker
	key    string
}

func (l *localLease) Refresh(context.Context) error { return nil }

func (l *localLease) Unlock() {
	l.locker.mu.Lock()
	delete(l.locker.held, l.key)
	l.locker.mu.Unlock()
}
