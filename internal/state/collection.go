// Package state holds observable collection snapshots. Controllers own and
// write collections; the view layer reads snapshots or subscribes.
package state

import (
	"slices"
	"sync"
)

// Snapshot is an immutable copy of a collection's state.
type Snapshot[T any] struct {
	Items   []T
	Page    int
	HasMore bool
	Loading bool
	Err     error
}

// View is the read side handed to the view layer.
type View[T any] interface {
	Snapshot() Snapshot[T]
	Subscribe(fn func(Snapshot[T])) (unsubscribe func())
}

// Collection is a mutex-guarded snapshot with subscribers.
type Collection[T any] struct {
	mu     sync.RWMutex
	snap   Snapshot[T]
	subs   map[uint64]func(Snapshot[T])
	nextID uint64
}

var _ View[int] = (*Collection[int])(nil)

// NewCollection returns an empty collection that still expects a first page.
func NewCollection[T any]() *Collection[T] {
	return &Collection[T]{
		snap: Snapshot[T]{HasMore: true},
		subs: make(map[uint64]func(Snapshot[T])),
	}
}

func (c *Collection[T]) Snapshot() Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyLocked()
}

func (c *Collection[T]) copyLocked() Snapshot[T] {
	s := c.snap
	s.Items = slices.Clone(c.snap.Items)
	return s
}

// Len avoids copying the item slice.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snap.Items)
}

// Subscribe registers fn for every committed change. fn runs on the goroutine
// that committed the change and must not block.
func (c *Collection[T]) Subscribe(fn func(Snapshot[T])) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Apply mutates the snapshot under the lock and returns a notify func that
// the caller invokes once it has released any locks of its own. Subscribers
// always receive the latest state, so out-of-order notifies are harmless.
func (c *Collection[T]) Apply(fn func(s *Snapshot[T])) (notify func()) {
	c.mu.Lock()
	fn(&c.snap)
	c.mu.Unlock()
	return c.notify
}

// Update is Apply followed by notify.
func (c *Collection[T]) Update(fn func(s *Snapshot[T])) {
	c.Apply(fn)()
}

func (c *Collection[T]) notify() {
	c.mu.RLock()
	snap := c.copyLocked()
	subs := make([]func(Snapshot[T]), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.RUnlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// UpdateItem replaces the first item matching pred with fn(item) and reports
// whether one was found.
func (c *Collection[T]) UpdateItem(pred func(T) bool, fn func(T) T) bool {
	found := false
	c.Update(func(s *Snapshot[T]) {
		for i, it := range s.Items {
			if pred(it) {
				s.Items[i] = fn(it)
				found = true
				return
			}
		}
	})
	return found
}

// Find returns a copy of the first item matching pred.
func (c *Collection[T]) Find(pred func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.snap.Items {
		if pred(it) {
			return it, true
		}
	}
	var zero T
	return zero, false
}
