// Package handle owns native resources on behalf of host code that can only
// hold opaque integers. A table is the single point of truth for resource
// liveness: double-destroy and use-after-destroy surface as lookup misses,
// never as memory errors.
package handle

import "sync"

// ID identifies one live resource within its table. The zero value is never
// issued.
type ID uint64

// Nil is the invalid handle.
const Nil ID = 0

// Table owns resources of one kind. Keep one table per resource kind so
// contention on one kind does not block another.
type Table[T any] struct {
	mu    sync.Mutex
	next  uint64
	items map[ID]T
}

func NewTable[T any]() *Table[T] {
	return &Table[T]{items: make(map[ID]T)}
}

// Create inserts item and returns a fresh handle. Handles increase
// monotonically for the life of the process and are never reissued after
// Destroy; 64 bits do not wrap within realistic process lifetimes.
func (t *Table[T]) Create(item T) ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	id := ID(t.next)
	t.items[id] = item
	return id
}

// Get returns a copy of the stored value. A miss is not an error; callers
// decide whether absence matters.
func (t *Table[T]) Get(id ID) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[id]
	return item, ok
}

// Mutate runs fn against the stored value under the table lock and reports
// whether the handle was live. fn must not block or call back into the table.
func (t *Table[T]) Mutate(id ID, fn func(item *T)) bool {
	if fn == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[id]
	if !ok {
		return false
	}
	fn(&item)
	t.items[id] = item
	return true
}

// Destroy removes the entry and returns ownership of the item so the caller
// can run resource-specific teardown. Exactly one of two racing destroys
// observes ok; the other gets a miss.
func (t *Table[T]) Destroy(id ID) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	delete(t.items, id)
	return item, true
}

func (t *Table[T]) Contains(id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.items[id]
	return ok
}

func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Reset destroys every entry, invoking teardown for each item outside the
// lock, and returns the number of entries removed. The counter keeps
// advancing so recycled tables still never reissue handles.
func (t *Table[T]) Reset(teardown func(item T)) int {
	t.mu.Lock()
	drained := make([]T, 0, len(t.items))
	for id, item := range t.items {
		drained = append(drained, item)
		delete(t.items, id)
	}
	t.mu.Unlock()

	if teardown != nil {
		for _, item := range drained {
			teardown(item)
		}
	}
	return len(drained)
}

// Drop implements the registry Entry contract; it is Reset without teardown.
func (t *Table[T]) Drop() int {
	return t.Reset(nil)
}
