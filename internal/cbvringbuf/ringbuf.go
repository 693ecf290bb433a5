package cbvringbuf

import (
	"sync"
)

// RingBuffer keeps the most recent values added to it, up to a fixed capacity.
type RingBuffer[T any] struct {
	mtx sync.Mutex
	buf []T // allocated once
	cur int // next write index
	len int // number of valid values
}

// New returns an empty ring buffer with the given capacity. A capacity less
// than 1 is treated as 1.
func New[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{
		buf: make([]T, capacity),
	}
}

// Add a value to the ring buffer. If the buffer was full, the oldest value is
// overwritten and returned with true.
func (rb *RingBuffer[T]) Add(val T) (dropped T, ok bool) {
	rb.mtx.Lock()
	defer rb.mtx.Unlock()

	if rb.len >= len(rb.buf) {
		dropped, ok = rb.buf[rb.cur], true
	} else {
		rb.len++
	}

	rb.buf[rb.cur] = val
	rb.cur = (rb.cur + 1) % len(rb.buf)

	return dropped, ok
}

// Walk calls fn for each value, newest first. If fn returns an error, the walk
// stops and the error is returned. The buffer is locked for the duration.
func (rb *RingBuffer[T]) Walk(fn func(T) error) error {
	rb.mtx.Lock()
	defer rb.mtx.Unlock()

	for i := 0; i < rb.len; i++ {
		idx := rb.cur - 1 - i
		if idx < 0 {
			idx += len(rb.buf)
		}
		if err := fn(rb.buf[idx]); err != nil {
			return err
		}
	}

	return nil
}

// Len returns the number of values currently held.
func (rb *RingBuffer[T]) Len() int {
	rb.mtx.Lock()
	defer rb.mtx.Unlock()
	return rb.len
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer[T]) Cap() int {
	return len(rb.buf) // immutable
}

//
//
//

// Set is a collection of ring buffers keyed by name, all with the same
// capacity. Buffers are created on first use and never removed.
type Set[T any] struct {
	mtx      sync.Mutex
	capacity int
	bufs     map[string]*RingBuffer[T]
}

// NewSet returns an empty set whose buffers will have the given capacity.
func NewSet[T any](capacity int) *Set[T] {
	return &Set[T]{
		capacity: capacity,
		bufs:     map[string]*RingBuffer[T]{},
	}
}

// GetOrCreate returns the buffer for the given name, creating it if needed.
func (s *Set[T]) GetOrCreate(name string) *RingBuffer[T] {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	rb, ok := s.bufs[name]
	if !ok {
		rb = New[T](s.capacity)
		s.bufs[name] = rb
	}

	return rb
}

// All returns a copy of the buffers in the set, keyed by name.
func (s *Set[T]) All() map[string]*RingBuffer[T] {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	all := make(map[string]*RingBuffer[T], len(s.bufs))
	for name, rb := range s.bufs {
		all[name] = rb
	}

	return all
}
