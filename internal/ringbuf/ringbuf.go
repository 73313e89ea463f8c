// Package ringbuf provides a fixed-capacity ring that keeps the most recent
// values, evicting the oldest on overflow. It backs the bot's recent tick
// history, where readers want an ordered snapshot rather than a queue.
package ringbuf

import "sync"

// Ring is a concurrency-safe evicting buffer of the last Cap() values.
// Capacity is rounded up to the next power of two for bitwise indexing.
type Ring[T any] struct {
	mu    sync.Mutex
	buf   []T
	mask  uint64
	head  uint64 // next write slot
	count int
}

// New creates a ring holding at least capacity values. Minimum capacity is 2.
func New[T any](capacity int) *Ring[T] {
	c := nextPow2(capacity)
	if c < 2 {
		c = 2
	}
	return &Ring[T]{
		buf:  make([]T, c),
		mask: uint64(c - 1),
	}
}

// Push appends v, evicting the oldest value when the ring is full.
func (r *Ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.head&r.mask] = v
	r.head++
	if r.count < len(r.buf) {
		r.count++
	}
}

// Snapshot returns the retained values, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, 0, r.count)
	start := r.head - uint64(r.count)
	for i := uint64(0); i < uint64(r.count); i++ {
		out = append(out, r.buf[(start+i)&r.mask])
	}
	return out
}

// Len returns the number of retained values.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
