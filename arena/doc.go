// Package arena provides the fixed-capacity memory primitives backing the
// command stream: a circular byte buffer for command records and a slot
// ring for values the byte buffer cannot hold.
//
// Both types follow a strict single-producer/single-consumer discipline.
// The producer advances a write cursor, the consumer returns space after
// draining; neither side ever blocks inside this package. Space accounting
// uses two monotonic atomic counters (bytes written, bytes released), so
// the producer and consumer can run on different goroutines as long as the
// consumer only touches regions the producer has already published.
package arena
