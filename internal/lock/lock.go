// Package lock provides per-table action locks with strict FIFO ordering.
// Contenders for the same table are granted the lock in arrival order;
// different tables never contend.
package lock

import "sync"

type waiter chan struct{}

type entry struct {
	held    bool
	waiters []waiter
}

// Keyed is a set of named FIFO mutexes.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Acquire blocks until the lock for key is held and returns the release
// function. Release must be called exactly once.
func (k *Keyed) Acquire(key string) (release func()) {
	k.mu.Lock()
	e := k.entries[key]
	if e == nil {
		e = &entry{}
		k.entries[key] = e
	}
	if !e.held {
		e.held = true
		k.mu.Unlock()
		return func() { k.release(key) }
	}
	w := make(waiter)
	e.waiters = append(e.waiters, w)
	k.mu.Unlock()

	<-w
	return func() { k.release(key) }
}

func (k *Keyed) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e := k.entries[key]
	if len(e.waiters) == 0 {
		delete(k.entries, key)
		return
	}
	next := e.waiters[0]
	e.waiters = e.waiters[1:]
	close(next)
}
