// Package queue turns one command stream's circular arena into a sequence
// of drainable generations. The producer records commands and calls Flush
// to publish a slice of the arena; the consumer waits for slices, executes
// them, and releases their space. Backpressure is applied at Flush time,
// never at enqueue time: recording itself stays non-blocking.
package queue

import (
	"sync"

	"github.com/gogpu/cmdstream"
	"github.com/gogpu/cmdstream/arena"
)

// Slice is one published generation of the arena: the records between two
// Flush calls, terminated by an end-of-stream sentinel.
type Slice struct {
	// Start is the arena offset of the slice's first record, to be passed
	// to CommandStream.Execute.
	Start int

	bytes int
}

// Bytes returns the arena bytes the slice occupies, markers and skipped
// wraparound tails included.
func (s Slice) Bytes() int {
	return s.bytes
}

// Queue coordinates one producer and one consumer around a single
// CommandStream. The producer side is Flush and Close; the consumer side
// is WaitForCommands and ReleaseBuffer. A slice's records are drained by
// calling stream.Execute(slice.Start) and then releasing the slice.
type Queue struct {
	mu    sync.Mutex
	space sync.Cond // producer waits for released arena space
	work  sync.Cond // consumer waits for published slices

	stream *cmdstream.CommandStream
	buf    *arena.Buffer

	// required is the free-space budget one slice is expected to need.
	// Flush blocks the producer while free space is below it.
	required int

	lastFlush int64
	pending   []Slice
	closed    bool
}

// New creates a queue over a stream and its arena buffer. slices is the
// number of generations expected in flight at once (minimum 2); it sets
// the per-slice space budget to capacity/slices.
func New(stream *cmdstream.CommandStream, buf *arena.Buffer, slices int) *Queue {
	if slices < 2 {
		slices = 2
	}
	q := &Queue{
		stream:   stream,
		buf:      buf,
		required: buf.Capacity() / slices,
	}
	q.space.L = &q.mu
	q.work.L = &q.mu
	return q
}

// Flush publishes all records since the previous flush as one slice and
// wakes the consumer. If the stream has no new records, Flush is a no-op.
// After publishing, Flush blocks until the arena has one slice budget of
// free space, so a producer that outruns the consumer is paced here rather
// than corrupting the arena.
//
// Producer side only.
func (q *Queue) Flush() {
	if !q.stream.HasCommands() {
		return
	}
	start := q.stream.MarkEndOfStream()
	written := q.buf.Written()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, Slice{
		Start: start,
		bytes: int(written - q.lastFlush),
	})
	q.lastFlush = written
	q.work.Signal()

	for !q.closed && q.buf.Capacity()-q.buf.Used() < q.required {
		q.space.Wait()
	}
}

// WaitForCommands blocks until at least one slice is pending, then returns
// all pending slices in FIFO order. It returns nil once the queue is
// closed and fully drained.
//
// Consumer side only.
func (q *Queue) WaitForCommands() []Slice {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && !q.closed {
		q.work.Wait()
	}
	out := q.pending
	q.pending = nil
	return out
}

// ReleaseBuffer returns a drained slice's bytes to the arena and wakes a
// producer blocked in Flush. Call only after the slice has been executed.
//
// Consumer side only.
func (q *Queue) ReleaseBuffer(s Slice) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buf.Release(s.bytes)
	q.space.Signal()
}

// Pending returns the number of published, not yet collected slices.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close publishes any remaining records and marks the queue closed. The
// consumer collects the leftovers from WaitForCommands, which returns nil
// after the last slice. Producer side only.
func (q *Queue) Close() {
	if q.stream.HasCommands() {
		start := q.stream.MarkEndOfStream()
		written := q.buf.Written()
		q.mu.Lock()
		q.pending = append(q.pending, Slice{
			Start: start,
			bytes: int(written - q.lastFlush),
		})
		q.lastFlush = written
		q.mu.Unlock()
	}
	q.mu.Lock()
	q.closed = true
	q.work.Broadcast()
	q.space.Broadcast()
	q.mu.Unlock()
}
