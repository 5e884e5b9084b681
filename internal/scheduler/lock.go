package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/avyukt/invest-gateway/pkg/redis"
)

// Locker guards single-flight execution per job key. Acquire returns
// false when another holder owns the key; the caller skips the run.
type Locker interface {
	Acquire(key string, ttl time.Duration) (bool, error)
	Release(key string) error
}

const lockKeyPrefix = "jobs:lock:"

// RedisLocker leases keys via SET NX with a TTL, which makes single-flight
// hold across multiple service instances. A crashed holder's lease expires
// on its own.
type RedisLocker struct {
	redis redis.RedisAdapter
}

func NewRedisLocker(adapter redis.RedisAdapter) *RedisLocker {
	return &RedisLocker{redis: adapter}
}

func (l *RedisLocker) Acquire(key string, ttl time.Duration) (bool, error) {
	value := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
	return l.redis.SetNX(lockKeyPrefix+key, value, ttl)
}

func (l *RedisLocker) Release(key string) error {
	return l.redis.Del(lockKeyPrefix + key)
}

// LocalLocker is the in-process fallback for single-instance deployments
// and tests.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time)}
}

func (l *LocalLocker) Acquire(key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if expiry, ok := l.held[key]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	l.held[key] = time.Now().Add(ttl)
	return true, nil
}

func (l *LocalLocker) Release(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}
