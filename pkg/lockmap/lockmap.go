// Package `lockmap` serializes operations on string keys, such as folder
// paths.  `Lock()` supports context cancelation while waiting.
package lockmap

import (
	"context"
	"sync"
)

// `L` is a map of locks.  The zero value is ready to use.
type L struct {
	mu sync.Mutex
	// - not in map: unlocked.
	// - in map: locked; the channel is closed on unlock to wake waiters.
	held map[string]chan struct{}
}

// `Lock()` blocks until the key is acquired or the context is canceled.  A
// canceled context fails even if the key is uncontended.
func (l *L) Lock(ctx context.Context, key string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.mu.Lock()
		if l.held == nil {
			l.held = make(map[string]chan struct{})
		}
		released, ok := l.held[key]
		if !ok {
			l.held[key] = make(chan struct{})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-released:
			// Retry; another waiter may have taken the key first.
		}
	}
}

func (l *L) Unlock(key string) {
	l.mu.Lock()
	released, ok := l.held[key]
	if !ok {
		l.mu.Unlock()
		panic("lockmap: unlock of unlocked key")
	}
	delete(l.held, key)
	l.mu.Unlock()
	close(released)
}
