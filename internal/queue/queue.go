// Package queue provides a growable FIFO ring buffer.
package queue

import (
	"sync"
)

// Queue is a thread-safe FIFO ring buffer that doubles its backing array
// when it reaches 70% full. A positive limit bounds the number of items.
type Queue[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	limit    int // 0 = unbounded

	// Stats
	totalPushed  int64
	totalPopped  int64
	totalDropped int64
	resizeCount  int
}

// Stats contains queue statistics.
type Stats struct {
	Count        int
	Capacity     int
	Limit        int
	TotalPushed  int64
	TotalPopped  int64
	TotalDropped int64
	ResizeCount  int
}

// New creates a queue with the given initial capacity and item limit.
// A limit of 0 or less means unbounded.
func New[T any](initialCapacity, limit int) *Queue[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if limit < 0 {
		limit = 0
	}
	return &Queue[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
		limit:    limit,
	}
}

// Push appends an item. Returns false if the queue is at its limit.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit > 0 && q.count >= q.limit {
		return false
	}

	threshold := (q.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.grow()
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.totalPushed++
	return true
}

// Peek returns the oldest item without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.buf[q.head], true
}

// Pop removes and returns the oldest item.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	item := q.popLocked()
	q.totalPopped++
	return item, true
}

// Drop removes the oldest item and counts it as dropped rather than
// delivered.
func (q *Queue[T]) Drop() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return false
	}
	q.popLocked()
	q.totalDropped++
	return true
}

// Snapshot returns a copy of the queued items, oldest first.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, q.count)
	for i := 0; i < q.count; i++ {
		out[i] = q.buf[(q.head+i)%q.capacity]
	}
	return out
}

// Clear discards every item and returns how many were removed.
func (q *Queue[T]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	for q.count > 0 {
		q.popLocked()
	}
	q.head, q.tail = 0, 0
	q.totalDropped += int64(n)
	return n
}

// Len returns the current number of items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Count:        q.count,
		Capacity:     q.capacity,
		Limit:        q.limit,
		TotalPushed:  q.totalPushed,
		TotalPopped:  q.totalPopped,
		TotalDropped: q.totalDropped,
		ResizeCount:  q.resizeCount,
	}
}

// popLocked must be called with the lock held and count > 0.
func (q *Queue[T]) popLocked() T {
	item := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero // Clear reference for GC
	q.head = (q.head + 1) % q.capacity
	q.count--
	return item
}

// grow doubles the capacity. Must be called with lock held.
func (q *Queue[T]) grow() {
	newCapacity := q.capacity * 2
	newBuf := make([]T, newCapacity)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			// Wrapped: [head...end) + [0...tail)
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
	q.capacity = newCapacity
	q.resizeCount++
}
