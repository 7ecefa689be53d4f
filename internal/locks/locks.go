// Package locks serializes stock mutations per (gateway, country) row.
// Debits against the same row go through one critical section; debits against
// different rows proceed fully in parallel.
//
// Two implementations are provided: KeyedMutex for single-instance
// deployments and RedisLocker for fleets sharing one stock table through
// Redis-coordinated locks.
package locks

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// Locker runs fn while holding an exclusive lock for key
type Locker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}

const stripeCount = 64

// KeyedMutex is an in-process Locker backed by striped mutexes. Keys are
// hashed onto a fixed set of stripes; two distinct keys may share a stripe,
// which costs parallelism but never correctness.
type KeyedMutex struct {
	stripes [stripeCount]sync.Mutex
}

// NewKeyedMutex creates an in-process keyed locker
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

func (k *KeyedMutex) stripe(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &k.stripes[h.Sum32()%stripeCount]
}

// WithLock runs fn while holding the stripe lock for key
func (k *KeyedMutex) WithLock(ctx context.Context, key string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mu := k.stripe(key)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// RedisLockClient is the interface RedisLocker needs from the Redis client
type RedisLockClient interface {
	AcquireLock(ctx context.Context, key string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// RedisLocker coordinates row locks across instances through Redis SetNX.
// Acquisition polls with a short backoff until the context expires.
type RedisLocker struct {
	client     RedisLockClient
	expiration time.Duration
	retryDelay time.Duration
}

// NewRedisLocker creates a distributed locker with a 30s lock expiration
func NewRedisLocker(client RedisLockClient) *RedisLocker {
	return &RedisLocker{
		client:     client,
		expiration: 30 * time.Second,
		retryDelay: 50 * time.Millisecond,
	}
}

// WithLock acquires the distributed lock for key, runs fn and releases it.
// Returns the context error if the lock cannot be acquired before the
// deadline.
func (r *RedisLocker) WithLock(ctx context.Context, key string, fn func() error) error {
	for {
		acquired, err := r.client.AcquireLock(ctx, key, r.expiration)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.client.ReleaseLock(releaseCtx, key)
	}()

	return fn()
}
