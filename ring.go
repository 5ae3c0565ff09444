package ripple

import "sync"

// ring is a thread-safe fixed-size buffer keeping the most recent values.
// A nil ring is valid and discards everything.
type ring[T any] struct {
	mu     sync.RWMutex
	values []T
	head   int
	count  int
}

// newRing returns a ring holding up to size values, or nil if size <= 0.
func newRing[T any](size int) *ring[T] {
	if size <= 0 {
		return nil
	}
	return &ring[T]{values: make([]T, size)}
}

func (r *ring[T]) push(v T) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[r.head] = v
	r.head = (r.head + 1) % len(r.values)
	if r.count < len(r.values) {
		r.count++
	}
}

func (r *ring[T]) clear() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.values {
		r.values[i] = zero
	}
	r.head = 0
	r.count = 0
}

// all returns the retained values, oldest first, or nil when empty.
func (r *ring[T]) all() []T {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}
	size := len(r.values)
	out := make([]T, r.count)
	start := (r.head - r.count + size) % size
	for i := range out {
		out[i] = r.values[(start+i)%size]
	}
	return out
}
