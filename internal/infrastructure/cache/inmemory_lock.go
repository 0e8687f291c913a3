package cache

import (
	"context"
	"sync"
)

// InMemoryLocker implements Locker inside one process.
// A lease lives exactly as long as its holder: it is freed by release and
// never expires underneath a running sync.
type InMemoryLocker struct {
	mu     sync.Mutex
	leases map[string]uint64
	seq    uint64
}

// NewInMemoryLocker creates a process-local locker
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{leases: make(map[string]uint64)}
}

// Acquire takes the key if it is free
func (l *InMemoryLocker) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.leases[key]; ok {
		return nil, ErrLockNotAcquired
	}

	l.seq++
	token := l.seq
	l.leases[key] = token

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.leases[key] == token {
				delete(l.leases, key)
			}
		})
		return nil
	}, nil
}

// Held reports whether key currently has a lease
func (l *InMemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.leases[key]
	return ok
}

var _ Locker = (*InMemoryLocker)(nil)
