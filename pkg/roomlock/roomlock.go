package roomlock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Locker hands out one exclusive slot per key. Writes for the same key are
// totally ordered by slot acquisition; distinct keys never contend. Entries
// for idle keys are reaped so the map does not grow with every key ever seen.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem *semaphore.Weighted
	// refs counts holders plus waiters; the entry is reaped at zero.
	refs int
}

func New() *Locker {
	return &Locker{slots: make(map[string]*slot)}
}

// Acquire blocks until the key's slot is free or ctx is done.
func (l *Locker) Acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		l.drop(key)
		return err
	}
	return nil
}

// Release frees the slot for key. It must pair with a successful Acquire.
func (l *Locker) Release(key string) {
	l.mu.Lock()
	s, ok := l.slots[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	s.sem.Release(1)
	l.drop(key)
}

func (l *Locker) drop(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.slots[key]; ok {
		s.refs--
		if s.refs == 0 {
			delete(l.slots, key)
		}
	}
}

// Live reports how many keys currently hold a slot entry.
func (l *Locker) Live() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
