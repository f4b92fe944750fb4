package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired is returned when another holder owns the lock
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld is returned when trying to release or extend a lock not held
	ErrLockNotHeld = errors.New("lock not held")
)

// DefaultKeyPrefix is used when NewLocker is given an empty prefix
const DefaultKeyPrefix = "clover:lock:"

var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// Lock is a held lock
type Lock struct {
	client *Client
	key    string
	value  string
	ttl    time.Duration
}

// Key returns the locked redis key
func (lock *Lock) Key() string {
	return lock.key
}

// Locker guards named pipelines against concurrent runs
type Locker struct {
	client    *Client
	keyPrefix string
}

// NewLocker creates a new distributed locker
func NewLocker(client *Client, keyPrefix string) *Locker {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Locker{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (l *Locker) key(name string) string {
	return l.keyPrefix + name
}

// Acquire takes the lock with SET NX or returns ErrLockNotAcquired
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	lockKey := l.key(name)
	lockValue := uuid.New().String()

	ok, err := l.client.rdb.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.client.logger.WithContext(ctx).Debugf("Acquired lock: %s", lockKey)

	return &Lock{
		client: l.client,
		key:    lockKey,
		value:  lockValue,
		ttl:    ttl,
	}, nil
}

// Release deletes the lock if this holder still owns it
func (lock *Lock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.value).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	lock.client.logger.WithContext(ctx).Debugf("Released lock: %s", lock.key)
	return nil
}

// Extend resets the lock's TTL if this holder still owns it
func (lock *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, lock.client.rdb, []string{lock.key}, lock.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	lock.ttl = ttl
	return nil
}

// WithLock runs fn while holding the named lock, extending it every half TTL
// until fn returns.
func (l *Locker) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lock, err := l.Acquire(ctx, name, ttl)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go lock.keepAlive(ctx, done)

	defer func() {
		close(done)
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			l.client.logger.WithContext(ctx).WithError(err).Warnf("Failed to release lock: %s", lock.key)
		}
	}()

	return fn(ctx)
}

func (lock *Lock) keepAlive(ctx context.Context, done <-chan struct{}) {
	interval := lock.ttl / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.Extend(ctx, lock.ttl); err != nil {
				lock.client.logger.WithContext(ctx).WithError(err).Warnf("Failed to extend lock: %s", lock.key)
			}
		}
	}
}
