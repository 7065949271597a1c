package ringbuf

import "sync"

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 128

// Ring is a concurrent-safe bounded FIFO buffer.
//
// Capacity is fixed at construction. When the buffer is full, Append
// evicts the oldest entry before inserting, so the length never
// exceeds the capacity.
type Ring[T any] struct {
	mu    sync.RWMutex
	items []T
	head  int // index of the oldest entry
	size  int
}

// New creates a ring buffer with the given capacity.
// A capacity <= 0 falls back to DefaultCapacity.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring[T]{
		items: make([]T, capacity),
	}
}

// Append inserts an entry, evicting the oldest one when full.
func (r *Ring[T]) Append(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tail := (r.head + r.size) % len(r.items)
	r.items[tail] = item

	if r.size == len(r.items) {
		// Full: the slot just written replaced the oldest entry.
		r.head = (r.head + 1) % len(r.items)
		return
	}
	r.size++
}

// Latest returns the most recently appended entry.
// The second return value is false when the buffer is empty.
func (r *Ring[T]) Latest() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.size == 0 {
		var zero T
		return zero, false
	}
	idx := (r.head + r.size - 1) % len(r.items)
	return r.items[idx], true
}

// Snapshot returns a copy of the buffer contents, oldest to newest.
// The returned slice is independent of the buffer: later appends do
// not mutate a previously returned snapshot.
func (r *Ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.head+i)%len(r.items)]
	}
	return out
}

// Clear empties the buffer. Capacity is unchanged.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.size = 0
}

// Len returns the number of entries currently buffered.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the fixed capacity of the buffer.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}
