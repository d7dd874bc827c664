package arena

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Align is the alignment of every allocation, in bytes. Command records
// begin and end on Align boundaries so a linear walk can advance by record
// size alone.
const Align = 8

// MinCapacity is the smallest usable buffer capacity.
const MinCapacity = 64

// ErrBufferFull is returned when an allocation would overrun the buffer's
// in-flight capacity. This is a sizing error: the buffer was configured too
// small for one generation of commands.
var ErrBufferFull = errors.New("arena: buffer full")

// AlignUp rounds n up to the next Align boundary.
func AlignUp(n int) int {
	return (n + Align - 1) &^ (Align - 1)
}

// Buffer is a fixed-capacity circular byte buffer with an aligned bump
// cursor. The producer allocates spans with Alloc; the consumer returns
// drained spans with Release. The buffer never moves or zeroes its storage.
//
// Space accounting uses two monotonic counters so that Alloc (producer
// goroutine) and Release (consumer goroutine) can race safely: used bytes
// are written minus released.
type Buffer struct {
	data []byte

	// head is the producer's write offset. Producer goroutine only.
	head int

	written  atomic.Int64
	released atomic.Int64
}

// NewBuffer creates a buffer of the given capacity, rounded up to Align.
// Capacities below MinCapacity are raised to MinCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	return &Buffer{data: make([]byte, AlignUp(capacity))}
}

// Alloc reserves n contiguous bytes and returns their offset. n must be a
// positive multiple of Align.
//
// When the contiguous tail of the buffer is too small for n, the span is
// placed at offset 0 instead: wrapped is true and tail is the offset of the
// abandoned tail span, which the caller must stamp with a skip marker so a
// linear walk follows the wrap. The tail span is at least Align bytes;
// Alloc maintains the invariant that one marker slot always fits after the
// cursor.
//
// Alloc fails with ErrBufferFull when the request would push in-flight
// bytes past the capacity, or when n alone can never fit. It never blocks
// and never overwrites unreleased spans.
func (b *Buffer) Alloc(n int) (off, tail int, wrapped bool, err error) {
	if n <= 0 || n%Align != 0 {
		return 0, 0, false, fmt.Errorf("arena: invalid allocation size %d", n)
	}
	c := len(b.data)
	if n+Align > c {
		return 0, 0, false, fmt.Errorf("%w: %d bytes in a %d byte buffer", ErrBufferFull, n, c)
	}

	grow := int64(n)
	if b.head+n+Align > c {
		// Wrap: the skipped tail still occupies space until released.
		grow += int64(c - b.head)
	}
	if b.written.Load()-b.released.Load()+grow+Align > int64(c) {
		return 0, 0, false, fmt.Errorf("%w: %d bytes requested, %d in flight, capacity %d",
			ErrBufferFull, n, b.Used(), c)
	}

	if b.head+n+Align > c {
		tail = b.head
		off = 0
		b.head = n
		b.written.Add(grow)
		return off, tail, true, nil
	}
	off = b.head
	b.head += n
	b.written.Add(grow)
	return off, 0, false, nil
}

// Bytes returns the backing storage. Callers index it with offsets from
// Alloc; the slice itself must not be retained across Reset.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Head returns the current write offset. Producer goroutine only.
func (b *Buffer) Head() int {
	return b.head
}

// Capacity returns the buffer capacity in bytes.
func (b *Buffer) Capacity() int {
	return len(b.data)
}

// Used returns the number of in-flight bytes: allocated but not yet
// released.
func (b *Buffer) Used() int {
	return int(b.written.Load() - b.released.Load())
}

// Written returns the monotonic total of bytes ever allocated, including
// tail spans skipped at wraparound. Slice boundaries are computed from
// deltas of this counter.
func (b *Buffer) Written() int64 {
	return b.written.Load()
}

// Release returns n drained bytes to the buffer. Consumer side.
func (b *Buffer) Release(n int) {
	b.released.Add(int64(n))
}

// Reset logically clears the buffer: the cursor returns to offset 0 and all
// space becomes available. The storage is not zeroed. Only legal when no
// spans are in flight between producer and consumer.
func (b *Buffer) Reset() {
	b.head = 0
	b.written.Store(0)
	b.released.Store(0)
}
