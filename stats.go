package cmdstream

import "time"

// StreamStats are cumulative counters for one stream. All counters are
// monotonic; Recorded and CustomCommands grow on the producer side,
// Executed and Drains on the consumer side.
type StreamStats struct {
	// Recorded is the number of records enqueued, custom commands included.
	Recorded int64

	// CustomCommands is the number of custom commands enqueued.
	CustomCommands int64

	// Executed is the number of records replayed against the driver.
	Executed int64

	// Drains is the number of completed Execute walks.
	Drains int64
}

// DrainStats describes one completed Execute walk.
type DrainStats struct {
	// Records is the number of records executed, custom commands included.
	Records int

	// CustomCommands is the number of custom commands executed.
	CustomCommands int

	// Bytes is the number of record bytes walked, markers included.
	Bytes int

	// Duration is the wall time of the walk.
	Duration time.Duration
}

// Observer receives drain notifications. Observational only: an observer
// must not enqueue into or reset the stream it observes, and record
// semantics do not change whether one is installed or not.
type Observer interface {
	// BeginDrain is called on the consumer thread before the walk starts.
	BeginDrain()

	// EndDrain is called on the consumer thread after the sentinel is
	// reached.
	EndDrain(stats DrainStats)
}
