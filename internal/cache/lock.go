package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// SyncLockKey names the per-provider lock that ensures at most one catalog
// sync runs per provider at a time.
func SyncLockKey(providerID int64) string {
	return fmt.Sprintf("streamvault:lock:sync:%d", providerID)
}

// ErrLocked is returned by TryLock when the lock is already held.
var ErrLocked = errors.New("lock is already held")

// Lock is a held distributed lock. A long-running holder must Refresh it
// before the TTL elapses or another process can acquire the key.
type Lock struct {
	r     *Redis
	key   string
	token string
	ttl   time.Duration
}

// Both scripts check the token so only the holder can touch the key.
const (
	unlockScript = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`
	refreshScript = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`
)

// TryLock attempts to acquire a distributed lock identified by key.
// It uses the Redis SET NX EX pattern. On success the returned Lock MUST be
// released with Unlock (typically via defer). If the lock is already held,
// ErrLocked is returned.
func TryLock(ctx context.Context, r *Redis, key string, ttl time.Duration) (*Lock, error) {
	// Random token ensures only the holder can release the lock.
	token := randomToken()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("cache lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{r: r, key: key, token: token, ttl: ttl}, nil
}

// Refresh re-arms the lock's TTL. It fails if the key expired and was taken
// by someone else in the meantime.
func (l *Lock) Refresh(ctx context.Context) error {
	n, err := l.r.client.Eval(ctx, refreshScript, []string{l.key}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("cache lock refresh %s: %w", l.key, err)
	}
	if n == 0 {
		return fmt.Errorf("cache lock refresh %s: no longer held", l.key)
	}
	return nil
}

// Unlock releases the lock if it is still held by this token.
func (l *Lock) Unlock() {
	// Use a background context so unlock works even if the request context is cancelled.
	_ = l.r.client.Eval(context.Background(), unlockScript, []string{l.key}, l.token).Err()
}

// IsLocked returns true if the lock key exists.
func IsLocked(ctx context.Context, r *Redis, key string) bool {
	n, _ := r.client.Exists(ctx, key).Result()
	return n > 0
}

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
