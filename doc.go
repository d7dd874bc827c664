// Package cmdstream decouples an engine's main-thread graphics calls from
// their execution on a driver. The producer records typed driver
// invocations as self-describing records in a circular byte arena; the
// consumer later replays them in FIFO order against a concrete
// driver.Driver, on whatever thread calls Execute.
//
// One CommandStream serves exactly one producer and one consumer. The two
// must never operate on the same generation of the arena at the same time;
// a double-buffered embedding (see package queue) lets the producer fill
// the next generation while the consumer drains the previous one.
//
// Operations flagged synchronous in the driver's dispatch table bypass
// recording entirely and run on the calling thread. Everything else is a
// bounded-time copy into the arena: enqueueing never blocks and never
// allocates on the hot path once the arena and slot rings are warm.
package cmdstream
