package driver

// Dispatcher is a driver's fixed table of synchronous operations. A
// synchronous operation is invoked directly on the enqueuing thread,
// bypassing the command arena; everything else is recorded and replayed on
// the drain thread.
//
// The table is a property of the driver implementation, declared once at
// driver construction and queried once by the command stream. It must not
// change while a stream is using it.
type Dispatcher struct {
	synchronous [OpCount]bool
}

// NewDispatcher returns a dispatcher with every operation deferred, marking
// the given operations synchronous.
func NewDispatcher(synchronous ...Op) Dispatcher {
	var d Dispatcher
	d.MarkSynchronous(synchronous...)
	return d
}

// MarkSynchronous flags the given operations as synchronous.
func (d *Dispatcher) MarkSynchronous(ops ...Op) {
	for _, op := range ops {
		if op < OpCount {
			d.synchronous[op] = true
		}
	}
}

// Synchronous reports whether op dispatches directly on the calling thread.
func (d *Dispatcher) Synchronous(op Op) bool {
	return op < OpCount && d.synchronous[op]
}
