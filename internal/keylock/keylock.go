// Package keylock serializes work per key without a lock shared across keys.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	ch   chan struct{}
	refs int
}

// Locker hands out one exclusive lock per key. Idle keys are dropped.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done. The returned func releases the lock.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
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

func (l *Locker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// Len reports the number of keys currently held or waited on.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
