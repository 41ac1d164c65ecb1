// Package lock provides the per-request exclusive section the engine holds
// across each read-modify-audit-write sequence. Requests are independent, so
// locks are keyed by request identifier; there is no global lock.
package lock

import (
	"context"
	"sync"
)

// Locker serializes transitions per request. Acquire blocks until the key is
// held or ctx is done; the returned release function must be called exactly
// once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// KeyedMutex is the in-process Locker used by single-process deployments and
// tests.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

func (m *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()

	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{}
		m.locks[key] = kl
	}

	kl.refs++
	m.mu.Unlock()

	kl.mu.Lock()

	release := func() {
		kl.mu.Unlock()

		m.mu.Lock()

		kl.refs--
		if kl.refs == 0 {
			delete(m.locks, key)
		}

		m.mu.Unlock()
	}

	return release, nil
}
