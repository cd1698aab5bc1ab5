// Package ringbuf is a bounded single-producer single-consumer queue. The
// trading loop uses it to hand cycle reports to a background reporter
// without ever blocking on a slow sink.
package ringbuf

import (
	"math/bits"
	"sync/atomic"
)

// counter is an atomic index kept on its own cache line so the producer and
// consumer do not contend.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

// Ring is a lock-free SPSC queue. Exactly one goroutine may Push and one may
// Pop or Drain.
type Ring[T any] struct {
	slots   []T
	mask    uint64
	written counter // producer side
	read    counter // consumer side
	dropped atomic.Uint64
}

// New returns a ring holding at least capacity items, rounded up to a power
// of two (minimum 2).
func New[T any](capacity int) *Ring[T] {
	size := 2
	if capacity > 2 {
		size = 1 << bits.Len(uint(capacity-1))
	}
	return &Ring[T]{slots: make([]T, size), mask: uint64(size - 1)}
}

// Push enqueues v, or counts it as dropped and returns false when full.
func (r *Ring[T]) Push(v T) bool {
	w := r.written.Load()
	if w-r.read.Load() == uint64(len(r.slots)) {
		r.dropped.Add(1)
		return false
	}
	r.slots[w&r.mask] = v
	r.written.Store(w + 1)
	return true
}

// Pop dequeues the oldest item.
func (r *Ring[T]) Pop() (v T, ok bool) {
	rd := r.read.Load()
	if rd == r.written.Load() {
		return v, false
	}
	v = r.take(rd)
	r.read.Store(rd + 1)
	return v, true
}

// Drain passes every queued item to fn in order and returns how many it saw.
// Items pushed while draining are included.
func (r *Ring[T]) Drain(fn func(T)) int {
	n := 0
	for {
		v, ok := r.Pop()
		if !ok {
			return n
		}
		fn(v)
		n++
	}
}

func (r *Ring[T]) take(i uint64) T {
	var zero T
	slot := &r.slots[i&r.mask]
	v := *slot
	*slot = zero
	return v
}

func (r *Ring[T]) Len() int        { return int(r.written.Load() - r.read.Load()) }
func (r *Ring[T]) Cap() int        { return len(r.slots) }
func (r *Ring[T]) Dropped() uint64 { return r.dropped.Load() }
