// Package lock provides keyed mutual exclusion used to serialize
// check-then-commit sequences on a single catalog item. LocalLocker
// covers a single process; RedisLocker extends the guarantee to every
// replica sharing a Redis instance.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned when a lock could not be taken within the
// configured retry budget.
var ErrNotAcquired = errors.New("lock not acquired")

// Unlock releases a held lock. Calling it more than once is harmless.
type Unlock func()

// Locker hands out exclusive locks per key.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// LocalLocker is an in-process keyed mutex. Entries are dropped once no
// goroutine holds or waits for them, so the map does not grow with the
// number of keys ever seen.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{keys: make(map[string]*localEntry)}
}

// Lock blocks until key is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	e := l.keys[key]
	if e == nil {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *LocalLocker) release(key string, e *localEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
	l.mu.Unlock()
}
