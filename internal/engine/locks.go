package engine

import (
	"context"
	"sync"
)

// KeyedLock serializes mutating operations per item and per request. The
// contract is at-most-one in-flight mutation per key; acquisition respects
// context deadlines and fails with lock_timeout, never partially.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*lockState
}

type lockState struct {
	ch   chan struct{}
	refs int
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*lockState)}
}

// Acquire blocks until the key is held or ctx expires. The returned release
// function must be called exactly once.
func (l *KeyedLock) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	st, ok := l.locks[key]
	if !ok {
		st = &lockState{ch: make(chan struct{}, 1)}
		l.locks[key] = st
	}
	st.refs++
	l.mu.Unlock()

	select {
	case st.ch <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-st.ch
				l.drop(key, st)
			})
		}
		return release, nil
	case <-ctx.Done():
		l.drop(key, st)
		return nil, NewError(CodeLockTimeout, "timed out waiting for lock on %s", key)
	}
}

// AcquireMany takes locks in the order given. Callers use a fixed key order
// (item before request) so two operations never deadlock on each other.
func (l *KeyedLock) AcquireMany(ctx context.Context, keys ...string) (func(), error) {
	releases := make([]func(), 0, len(keys))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, key := range keys {
		release, err := l.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

func (l *KeyedLock) drop(key string, st *lockState) {
	l.mu.Lock()
	st.refs--
	if st.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

func itemKey(id string) string    { return "item:" + id }
func requestKey(id string) string { return "request:" + id }
