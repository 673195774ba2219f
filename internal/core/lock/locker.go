// Package lock provides per-item mutual exclusion for snapshot writers.
package lock

import (
	"context"
	"slices"
	"sync"
)

// Release frees every key obtained by one Lock call.
type Release func()

// Locker serializes writers per key. Lock acquires all keys or none.
// Keys are acquired in sorted order so that two callers locking
// overlapping sets cannot deadlock.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (Release, error)
}

// ItemKey is the lock key of a stock item.
func ItemKey(itemID string) string {
	return "stock:item:" + itemID
}

// SortedKeys returns the distinct keys in acquisition order.
func SortedKeys(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}

// Local is an in-process Locker.
type Local struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*keyLock)}
}

// Lock blocks until every key is held or ctx is done.
func (l *Local) Lock(ctx context.Context, keys ...string) (Release, error) {
	keys = SortedKeys(keys)
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := l.acquire(ctx, key); err != nil {
			l.releaseAll(held)
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(func() { l.releaseAll(held) }) }, nil
}

func (l *Local) acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	k, ok := l.locks[key]
	if !ok {
		k = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = k
	}
	k.refs++
	l.mu.Unlock()

	select {
	case k.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		l.unref(key, k)
		l.mu.Unlock()
		return ctx.Err()
	}
}

func (l *Local) releaseAll(keys []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(keys) - 1; i >= 0; i-- {
		k := l.locks[keys[i]]
		<-k.ch
		l.unref(keys[i], k)
	}
}

func (l *Local) unref(key string, k *keyLock) {
	k.refs--
	if k.refs == 0 {
		delete(l.locks, key)
	}
}

var _ Locker = (*Local)(nil)
