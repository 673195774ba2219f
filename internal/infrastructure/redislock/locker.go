// Package redislock provides a lock.Locker backed by Redis, so that
// several ledger processes serialize writers of the same item.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"storeledger/internal/core/apperror"
	"storeledger/internal/core/lock"
	"storeledger/pkg/logger"
)

// Config holds Redis lock settings.
type Config struct {
	Addr     string
	Password string
	DB       int

	// TTL bounds how long a crashed holder can block an item.
	TTL time.Duration
	// RetryInterval and MaxRetries bound how long Lock waits for a busy item.
	RetryInterval time.Duration
	MaxRetries    int
}

// DefaultConfig returns defaults for addr.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:          addr,
		TTL:           30 * time.Second,
		RetryInterval: 50 * time.Millisecond,
		MaxRetries:    40,
	}
}

// Locker implements lock.Locker with redislock.
type Locker struct {
	client *redislock.Client
	cfg    Config
}

var _ lock.Locker = (*Locker)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Locker, *redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return NewWithClient(rdb, cfg), rdb, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb redislock.RedisClient, cfg Config) *Locker {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	return &Locker{client: redislock.New(rdb), cfg: cfg}
}

// Lock obtains every key or none. A key still busy after the retry budget
// fails fast with a CONFLICT error instead of waiting indefinitely.
func (l *Locker) Lock(ctx context.Context, keys ...string) (lock.Release, error) {
	keys = lock.SortedKeys(keys)
	held := make([]*redislock.Lock, 0, len(keys))

	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			// Background context: release must run even if ctx was cancelled.
			if err := held[i].Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				logger.Warn(ctx, "release redis lock failed", "key", held[i].Key(), "error", err)
			}
		}
	}

	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.cfg.RetryInterval), l.cfg.MaxRetries),
	}

	for _, key := range keys {
		lk, err := l.client.Obtain(ctx, key, l.cfg.TTL, opts)
		if errors.Is(err, redislock.ErrNotObtained) {
			releaseAll()
			return nil, apperror.NewConflict("item is locked by another movement").WithDetail("key", key)
		}
		if err != nil {
			releaseAll()
			return nil, fmt.Errorf("obtain lock %s: %w", key, err)
		}
		held = append(held, lk)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		releaseAll()
	}, nil
}
