package arena

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrRingFull is returned when a ring has no free slots. Like
// ErrBufferFull, this is a sizing error.
var ErrRingFull = errors.New("arena: ring full")

// Ring is a fixed-capacity slot ring for values that cannot live inside a
// raw byte buffer: closures, descriptors with release callbacks, anything
// the garbage collector must keep seeing. A command record stores the slot
// index; taking the slot hands the value out and zeroes it, which is the
// explicit destruct step of the record lifecycle.
//
// Put is producer-only, Take is consumer-only. Indices are monotonic and
// masked into power-of-two storage, so an index remains valid across
// wraparound of the underlying slice.
type Ring[T any] struct {
	slots []T
	mask  uint32

	// put is the producer's monotonic slot counter. Producer goroutine only.
	put uint32

	taken atomic.Uint32
}

// NewRing creates a ring with at least capacity slots, rounded up to a
// power of two (minimum 8).
func NewRing[T any](capacity int) *Ring[T] {
	n := 8
	for n < capacity {
		n <<= 1
	}
	return &Ring[T]{
		slots: make([]T, n),
		mask:  uint32(n - 1),
	}
}

// Put stores v in the next free slot and returns its index.
func (r *Ring[T]) Put(v T) (uint32, error) {
	if r.put-r.taken.Load() >= uint32(len(r.slots)) {
		return 0, fmt.Errorf("%w: %d slots", ErrRingFull, len(r.slots))
	}
	idx := r.put
	r.slots[idx&r.mask] = v
	r.put++
	return idx, nil
}

// Take removes and returns the value at idx, zeroing the slot so any
// captured resources are released to the garbage collector exactly once.
func (r *Ring[T]) Take(idx uint32) T {
	var zero T
	v := r.slots[idx&r.mask]
	r.slots[idx&r.mask] = zero
	r.taken.Add(1)
	return v
}

// Len returns the number of in-flight slots. Producer side.
func (r *Ring[T]) Len() int {
	return int(r.put - r.taken.Load())
}

// Capacity returns the total slot count.
func (r *Ring[T]) Capacity() int {
	return len(r.slots)
}

// Reset clears all slots and counters. Only legal when producer and
// consumer are quiescent.
func (r *Ring[T]) Reset() {
	clear(r.slots)
	r.put = 0
	r.taken.Store(0)
}
