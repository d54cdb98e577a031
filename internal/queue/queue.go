// Package queue provides the mutex guarded buffer used to hand poses from a
// sampler goroutine to the recorder loop.
package queue

import (
	"sync"
)

// Queue is a generic thread-safe buffer whose consumer only ever wants the
// newest item.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates a new empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
	}
}

// Push appends items to the queue.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// Latest returns the newest item without removing anything.
func (q *Queue[T]) Latest() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.items[len(q.items)-1], true
}

// Clear removes all items from the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// DrainLatest clears the queue and returns only the newest item. Older items
// are dropped along with their count.
func (q *Queue[T]) DrainLatest() (latest T, dropped int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if n == 0 {
		return latest, 0, false
	}
	latest = q.items[n-1]
	q.items = q.items[:0]
	return latest, n - 1, true
}
